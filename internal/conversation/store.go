package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/summit-agent/summit/internal/httperr"
)

// Store is the persistence boundary for conversations. Implementations
// must keep message sequences append-only and preserve creation order in
// ListByRepository.
type Store interface {
	// Create registers a fresh empty conversation for the repository and
	// returns it.
	Create(ctx context.Context, repository string) (*Conversation, error)

	// Append adds a message to the end of the conversation's sequence.
	// Returns a NotFound error when the id is unknown.
	Append(ctx context.Context, id string, msg Message) error

	// Get returns the conversation for the id, or a NotFound error.
	Get(ctx context.Context, id string) (*Conversation, error)

	// ListByRepository returns every conversation created for the
	// repository name, in creation order. An empty slice, not an error,
	// when none exist.
	ListByRepository(ctx context.Context, repository string) ([]*Conversation, error)
}

// MemoryStore keeps conversations in process memory, bounded by an LRU so
// abandoned conversations age out instead of growing without limit.
type MemoryStore struct {
	mu     sync.Mutex
	cache  *lru.Cache[string, *Conversation]
	byRepo map[string][]string // repository -> conversation ids, creation order
}

// NewMemoryStore creates a memory store retaining at most capacity
// conversations.
func NewMemoryStore(capacity int) (*MemoryStore, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("store capacity must be positive, got %d", capacity)
	}

	s := &MemoryStore{
		byRepo: make(map[string][]string),
	}

	// The eviction callback fires while the store lock is held (every
	// cache mutation happens under it), so it must touch byRepo directly
	// without re-locking.
	cache, err := lru.NewWithEvict[string, *Conversation](capacity, func(id string, c *Conversation) {
		s.unlink(c.Repository, id)
		log.Debug().Str("conversation_id", id).Str("repository", c.Repository).Msg("Evicted conversation from memory store")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation cache: %w", err)
	}
	s.cache = cache

	return s, nil
}

// unlink removes id from the repository index. Called with the lock held.
func (s *MemoryStore) unlink(repository, id string) {
	ids := s.byRepo[repository]
	for i, candidate := range ids {
		if candidate == id {
			s.byRepo[repository] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.byRepo[repository]) == 0 {
		delete(s.byRepo, repository)
	}
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, repository string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:         uuid.NewString(),
		Repository: repository,
		Messages:   []Message{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Add(conv.ID, conv)
	s.byRepo[repository] = append(s.byRepo[repository], conv.ID)

	return copyConversation(conv), nil
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, id string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.cache.Get(id)
	if !ok {
		return httperr.NotFound(fmt.Sprintf("conversation %s not found", id))
	}

	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.cache.Get(id)
	if !ok {
		return nil, httperr.NotFound(fmt.Sprintf("conversation %s not found", id))
	}

	return copyConversation(conv), nil
}

// ListByRepository implements Store.
func (s *MemoryStore) ListByRepository(ctx context.Context, repository string) ([]*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byRepo[repository]
	result := make([]*Conversation, 0, len(ids))
	for _, id := range ids {
		// Peek keeps listing from disturbing eviction recency.
		if conv, ok := s.cache.Peek(id); ok {
			result = append(result, copyConversation(conv))
		}
	}

	return result, nil
}

// copyConversation returns a defensive copy so callers never alias
// store-owned message slices.
func copyConversation(c *Conversation) *Conversation {
	dup := *c
	dup.Messages = make([]Message, len(c.Messages))
	copy(dup.Messages, c.Messages)
	return &dup
}
