package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/summit-agent/summit/internal/conversation"
	"github.com/summit-agent/summit/internal/httperr"
	"github.com/summit-agent/summit/pkg/models"
)

// stubAgent answers via a caller-supplied function and counts calls.
type stubAgent struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, prompt string) (string, error)
}

func (s *stubAgent) Ask(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, prompt)
	}
	return fmt.Sprintf("answer %d", n), nil
}

func (s *stubAgent) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestOrchestrator(t *testing.T, ag *stubAgent) (*Orchestrator, conversation.Store) {
	t.Helper()
	store, err := conversation.NewMemoryStore(64)
	require.NoError(t, err)
	return NewOrchestrator(store, ag, 5*time.Second), store
}

func TestChatEmptyQuestion(t *testing.T) {
	orch, store := newTestOrchestrator(t, &stubAgent{})

	_, err := orch.Chat(context.Background(), Request{Question: "   ", Repository: "owner/repo"})
	require.Error(t, err)
	assert.True(t, httperr.IsValidation(err))

	// Validation happens before any conversation is created.
	convs, err := store.ListByRepository(context.Background(), "owner/repo")
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestChatCreatesConversationAndRecordsPair(t *testing.T) {
	ag := &stubAgent{fn: func(ctx context.Context, prompt string) (string, error) {
		return "It is a web framework.", nil
	}}
	orch, store := newTestOrchestrator(t, ag)

	res, err := orch.Chat(context.Background(), Request{
		Question:   "What does this repository do?",
		Repository: "owner/repo",
	})
	require.NoError(t, err)
	assert.Equal(t, "It is a web framework.", res.Answer)
	require.NotEmpty(t, res.ConversationID)

	conv, err := store.Get(context.Background(), res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "owner/repo", conv.Repository)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, conversation.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "What does this repository do?", conv.Messages[0].Content)
	assert.Equal(t, conversation.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "It is a web framework.", conv.Messages[1].Content)
}

func TestChatContinuesExistingConversation(t *testing.T) {
	ag := &stubAgent{}
	orch, store := newTestOrchestrator(t, ag)

	first, err := orch.Chat(context.Background(), Request{Question: "first?", Repository: "owner/repo"})
	require.NoError(t, err)

	second, err := orch.Chat(context.Background(), Request{
		Question:       "second?",
		Repository:     "owner/repo",
		ConversationID: first.ConversationID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	conv, err := store.Get(context.Background(), first.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 4)
	for i, m := range conv.Messages {
		if i%2 == 0 {
			assert.Equal(t, conversation.RoleUser, m.Role, "message %d", i)
		} else {
			assert.Equal(t, conversation.RoleAssistant, m.Role, "message %d", i)
		}
	}
}

func TestChatUnknownConversationIDStartsFresh(t *testing.T) {
	ag := &stubAgent{}
	orch, store := newTestOrchestrator(t, ag)

	res, err := orch.Chat(context.Background(), Request{
		Question:       "hello?",
		Repository:     "owner/repo",
		ConversationID: "no-such-conversation",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "no-such-conversation", res.ConversationID)

	conv, err := store.Get(context.Background(), res.ConversationID)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)
}

func TestChatFailureKeepsUserMessage(t *testing.T) {
	ag := &stubAgent{fn: func(ctx context.Context, prompt string) (string, error) {
		return "", fmt.Errorf("invalid api key")
	}}
	orch, store := newTestOrchestrator(t, ag)

	first, err := orch.Chat(context.Background(), Request{Question: "anyone home?", Repository: "owner/repo"})
	require.Error(t, err)
	assert.True(t, httperr.IsUpstream(err))
	require.Nil(t, first)

	convs, err := store.ListByRepository(context.Background(), "owner/repo")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Len(t, convs[0].Messages, 1)
	assert.Equal(t, conversation.RoleUser, convs[0].Messages[0].Role)

	// A retried turn on the same conversation still yields an alternating
	// user and assistant sequence once the agent recovers.
	ag.mu.Lock()
	ag.fn = nil
	ag.mu.Unlock()

	res, err := orch.Chat(context.Background(), Request{
		Question:       "anyone home?",
		Repository:     "owner/repo",
		ConversationID: convs[0].ID,
	})
	require.NoError(t, err)

	conv, err := store.Get(context.Background(), res.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, conversation.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, conversation.RoleUser, conv.Messages[1].Role)
	assert.Equal(t, conversation.RoleAssistant, conv.Messages[2].Role)
}

func TestChatPromptCarriesHistoryAndRepository(t *testing.T) {
	var prompts []string
	ag := &stubAgent{fn: func(ctx context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "ok", nil
	}}
	orch, _ := newTestOrchestrator(t, ag)

	first, err := orch.Chat(context.Background(), Request{Question: "what language?", Repository: "owner/repo"})
	require.NoError(t, err)

	_, err = orch.Chat(context.Background(), Request{
		Question:       "and the license?",
		Repository:     "owner/repo",
		ConversationID: first.ConversationID,
	})
	require.NoError(t, err)

	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], `"owner/repo"`)
	assert.Contains(t, prompts[0], "User's question: what language?")
	assert.NotContains(t, prompts[0], "Conversation so far:")

	assert.Contains(t, prompts[1], "Conversation so far:")
	assert.Contains(t, prompts[1], "User: what language?")
	assert.Contains(t, prompts[1], "Assistant: ok")
	assert.Contains(t, prompts[1], "User's question: and the license?")
}

func TestChatPriorMessagesSeedNewConversationOnly(t *testing.T) {
	var prompts []string
	ag := &stubAgent{fn: func(ctx context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "ok", nil
	}}
	orch, store := newTestOrchestrator(t, ag)

	prior := []models.ChatMessage{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	res, err := orch.Chat(context.Background(), Request{
		Question:   "follow up?",
		Repository: "owner/repo",
		Prior:      prior,
	})
	require.NoError(t, err)

	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "User: earlier question")
	assert.Contains(t, prompts[0], "Assistant: earlier answer")

	// Advisory history is context only, never persisted.
	conv, err := store.Get(context.Background(), res.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "follow up?", conv.Messages[0].Content)
}

func TestChatRetriesTransientAgentFailure(t *testing.T) {
	ag := &stubAgent{}
	ag.fn = func(ctx context.Context, prompt string) (string, error) {
		if ag.callCount() < 2 {
			return "", fmt.Errorf("503 service unavailable")
		}
		return "recovered", nil
	}
	orch, _ := newTestOrchestrator(t, ag)

	res, err := orch.Chat(context.Background(), Request{Question: "still there?", Repository: "owner/repo"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Answer)
	assert.Equal(t, 2, ag.callCount())
}

func TestChatConcurrentTurnsSameConversationSerialize(t *testing.T) {
	ag := &stubAgent{}
	orch, store := newTestOrchestrator(t, ag)

	seed, err := orch.Chat(context.Background(), Request{Question: "seed", Repository: "owner/repo"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := orch.Chat(context.Background(), Request{
				Question:       fmt.Sprintf("question %d", i),
				Repository:     "owner/repo",
				ConversationID: seed.ConversationID,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	conv, err := store.Get(context.Background(), seed.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 18)
	for i, m := range conv.Messages {
		want := conversation.RoleUser
		if i%2 == 1 {
			want = conversation.RoleAssistant
		}
		assert.Equal(t, want, m.Role, "message %d", i)
	}
}

func TestChatConcurrentTurnsBuildPromptsFromFreshHistory(t *testing.T) {
	var mu sync.Mutex
	var prompts []string
	ag := &stubAgent{}
	ag.fn = func(ctx context.Context, prompt string) (string, error) {
		mu.Lock()
		prompts = append(prompts, prompt)
		n := len(prompts)
		mu.Unlock()
		return fmt.Sprintf("answer %d", n), nil
	}
	orch, _ := newTestOrchestrator(t, ag)

	seed, err := orch.Chat(context.Background(), Request{Question: "seed", Repository: "owner/repo"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := orch.Chat(context.Background(), Request{
				Question:       fmt.Sprintf("racing question %d", i),
				Repository:     "owner/repo",
				ConversationID: seed.ConversationID,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Turns serialize on the conversation lock, so whichever racing turn
	// ran second must see the first racer's full exchange in its prompt.
	require.Len(t, prompts, 3)
	assert.Contains(t, prompts[1], "Assistant: answer 1")
	assert.Contains(t, prompts[2], "Assistant: answer 1")
	assert.Contains(t, prompts[2], "Assistant: answer 2")
}

func TestChatIndependentConversationsDoNotSerialize(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 2)
	ag := &stubAgent{fn: func(ctx context.Context, prompt string) (string, error) {
		started <- prompt
		<-release
		return "done", nil
	}}
	orch, _ := newTestOrchestrator(t, ag)

	var wg sync.WaitGroup
	for _, repo := range []string{"owner/alpha", "owner/beta"} {
		wg.Add(1)
		go func(repo string) {
			defer wg.Done()
			_, err := orch.Chat(context.Background(), Request{Question: "q", Repository: repo})
			assert.NoError(t, err)
		}(repo)
	}

	// Both turns must reach the agent concurrently. If distinct
	// conversations shared a lock, the second would never start.
	for i := 0; i < 2; i++ {
		select {
		case p := <-started:
			assert.True(t, strings.Contains(p, "alpha") || strings.Contains(p, "beta"))
		case <-time.After(2 * time.Second):
			t.Fatal("second conversation blocked behind the first")
		}
	}
	close(release)
	wg.Wait()
}
