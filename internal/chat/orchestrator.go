// Package chat orchestrates a conversational turn between a user and the
// AI agent about a selected repository. It owns the conversation lifecycle
// (resolving or creating conversations in the store), prompt assembly, and
// the reliability policy around the agent call.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/summit-agent/summit/internal/agent"
	"github.com/summit-agent/summit/internal/conversation"
	"github.com/summit-agent/summit/internal/httperr"
	"github.com/summit-agent/summit/internal/retry"
	"github.com/summit-agent/summit/pkg/models"
)

// Request carries one user turn. Prior holds client-supplied history and is
// advisory only: it seasons the prompt when the turn starts a new
// conversation, but it is never persisted. ConversationID may be empty to
// start a fresh conversation.
type Request struct {
	Question       string
	Repository     string
	Prior          []models.ChatMessage
	ConversationID string
}

// Result is the completed turn.
type Result struct {
	Answer         string
	ConversationID string
}

// Orchestrator runs chat turns against a conversation store and an agent.
type Orchestrator struct {
	store    conversation.Store
	agent    agent.Agent
	timeout  time.Duration
	retryCfg retry.Config
	locks    *convLocks
}

// NewOrchestrator wires the orchestrator. timeout bounds a single agent
// call; a non-positive value falls back to 90 seconds.
func NewOrchestrator(store conversation.Store, ag agent.Agent, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Orchestrator{
		store:    store,
		agent:    ag,
		timeout:  timeout,
		retryCfg: retry.AgentConfig(),
		locks:    newConvLocks(),
	}
}

// Chat executes one turn: it resolves (or creates) the conversation,
// records the user message, asks the agent with the conversation history as
// context, and records the agent's answer. The user message stays recorded
// even when the agent fails, so a retried turn produces an alternating
// user/assistant sequence rather than losing input.
func (o *Orchestrator) Chat(ctx context.Context, req Request) (*Result, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, httperr.Validation("question must not be empty")
	}

	conv, fresh, err := o.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	release := o.locks.acquire(conv.ID)
	defer release()

	// Reload under the lock: a turn that raced us to the same conversation
	// may have appended an exchange since the resolve above, and the prompt
	// must carry the full history.
	if !fresh {
		latest, err := o.store.Get(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("loading conversation %s: %w", conv.ID, err)
		}
		conv = latest
	}

	// History before this turn. Advisory prior messages only apply when the
	// store has nothing for this conversation yet.
	history := historyFromStored(conv.Messages)
	if fresh && len(history) == 0 {
		history = req.Prior
	}

	userMsg := conversation.Message{
		Role:      conversation.RoleUser,
		Content:   req.Question,
		Timestamp: time.Now().UTC(),
	}
	if err := o.store.Append(ctx, conv.ID, userMsg); err != nil {
		return nil, fmt.Errorf("recording user message: %w", err)
	}

	prompt := buildPrompt(conv.Repository, history, question)

	answer, err := o.askAgent(ctx, prompt)
	if err != nil {
		log.Warn().
			Err(err).
			Str("conversation_id", conv.ID).
			Str("repository", conv.Repository).
			Msg("Agent call failed for chat turn")
		return nil, httperr.Upstream("the assistant could not produce an answer", err)
	}

	assistantMsg := conversation.Message{
		Role:      conversation.RoleAssistant,
		Content:   answer,
		Timestamp: time.Now().UTC(),
	}
	if err := o.store.Append(ctx, conv.ID, assistantMsg); err != nil {
		return nil, fmt.Errorf("recording assistant message: %w", err)
	}

	return &Result{Answer: answer, ConversationID: conv.ID}, nil
}

// resolveConversation loads the requested conversation or creates a new
// one. An unknown id is treated like an absent id: the turn proceeds in a
// fresh conversation instead of failing.
func (o *Orchestrator) resolveConversation(ctx context.Context, req Request) (*conversation.Conversation, bool, error) {
	if req.ConversationID != "" {
		conv, err := o.store.Get(ctx, req.ConversationID)
		if err == nil {
			return conv, false, nil
		}
		if !httperr.IsNotFound(err) {
			return nil, false, fmt.Errorf("loading conversation %s: %w", req.ConversationID, err)
		}
		log.Debug().
			Str("conversation_id", req.ConversationID).
			Msg("Unknown conversation id, starting a new conversation")
	}

	conv, err := o.store.Create(ctx, req.Repository)
	if err != nil {
		return nil, false, fmt.Errorf("creating conversation: %w", err)
	}
	return conv, true, nil
}

func (o *Orchestrator) askAgent(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var answer string
	result := retry.Do(callCtx, o.retryCfg, func() error {
		resp, err := o.agent.Ask(callCtx, prompt)
		if err != nil {
			return err
		}
		if strings.TrimSpace(resp) == "" {
			return fmt.Errorf("agent returned an empty response")
		}
		answer = resp
		return nil
	})
	if !result.Success {
		return "", result.LastError
	}
	return answer, nil
}

func historyFromStored(msgs []conversation.Message) []models.ChatMessage {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]models.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, models.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// buildPrompt assembles the single-prompt context for the agent: the
// repository restriction, the role-tagged history, and the current
// question.
func buildPrompt(repository string, history []models.ChatMessage, question string) string {
	var b strings.Builder

	b.WriteString("You are an AI assistant that helps developers understand and analyze GitHub repositories.\n")
	fmt.Fprintf(&b, "The user has selected the repository %q.\n", repository)
	b.WriteString("IMPORTANT: Only answer questions about this repository. ")
	b.WriteString("If the user asks about anything unrelated to it, politely remind them that you can only discuss the selected repository.\n")
	b.WriteString("Base your answers on the repository's code, structure, and history. If you do not know something, say so rather than guessing.\n\n")

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			role := strings.TrimSpace(m.Role)
			if role == "" {
				role = "user"
			}
			fmt.Fprintf(&b, "%s: %s\n", capitalize(role), m.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "User's question: %s\n\nAssistant: ", question)

	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
