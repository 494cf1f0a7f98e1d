package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/summit-agent/summit/internal/httperr"
)

// PostgresStore persists conversations in Postgres for deployments that
// need history to survive restarts. Same semantics as MemoryStore; no
// eviction, retention is the operator's problem at this layer.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and verifies the connection.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the conversation tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			repository TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_repository
			ON conversations (repository, created_at)`,
		`CREATE TABLE IF NOT EXISTS conversation_messages (
			id BIGSERIAL PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations (id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON conversation_messages (conversation_id, id)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, repository string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:         uuid.NewString(),
		Repository: repository,
		Messages:   []Message{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, repository, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		conv.ID, conv.Repository, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}

	return conv, nil
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, id string, msg Message) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE conversations SET updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return httperr.NotFound(fmt.Sprintf("conversation %s not found", id))
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO conversation_messages (conversation_id, role, content, created_at) VALUES ($1, $2, $3, $4)`,
		id, string(msg.Role), msg.Content, msg.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return tx.Commit(ctx)
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Conversation, error) {
	conv := &Conversation{ID: id}
	err := s.pool.QueryRow(ctx,
		`SELECT repository, created_at, updated_at FROM conversations WHERE id = $1`, id,
	).Scan(&conv.Repository, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httperr.NotFound(fmt.Sprintf("conversation %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}

	messages, err := s.loadMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	conv.Messages = messages

	return conv, nil
}

// ListByRepository implements Store.
func (s *PostgresStore) ListByRepository(ctx context.Context, repository string) ([]*Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, created_at, updated_at FROM conversations WHERE repository = $1 ORDER BY created_at, id`,
		repository,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	result := []*Conversation{}
	for rows.Next() {
		conv := &Conversation{Repository: repository}
		if err := rows.Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		result = append(result, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}

	for _, conv := range result {
		messages, err := s.loadMessages(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		conv.Messages = messages
	}

	return result, nil
}

func (s *PostgresStore) loadMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, content, created_at FROM conversation_messages WHERE conversation_id = $1 ORDER BY id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var msg Message
		var role string
		if err := rows.Scan(&role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msg.Role = Role(role)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, nil
}
