package conversation

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn half. Immutable once created; ordering is
// insertion order within its conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is an append-only sequence of messages tied to one
// repository. The id is the only handle clients ever see; a given id
// always resolves to the same repository.
type Conversation struct {
	ID         string    `json:"id"`
	Repository string    `json:"repo_name"`
	Messages   []Message `json:"messages"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Summary is the compact listing shape used by the history endpoint.
type Summary struct {
	ID           string    `json:"id"`
	Repository   string    `json:"repo_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	LastMessage  string    `json:"last_message,omitempty"`
}

// Summarize collapses a conversation into its listing shape.
func Summarize(c *Conversation) Summary {
	s := Summary{
		ID:           c.ID,
		Repository:   c.Repository,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: len(c.Messages),
	}
	if len(c.Messages) > 0 {
		s.LastMessage = c.Messages[len(c.Messages)-1].Content
	}
	return s
}
