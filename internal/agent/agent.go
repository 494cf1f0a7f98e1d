// Package agent wraps the external AI service that answers questions
// about repositories. The service is a black box behind the Agent
// interface; everything else in this repo talks to that interface so
// tests can substitute stubs.
package agent

import "context"

// Agent asks the AI backend a question with fully assembled context and
// returns its raw text answer. Calls can take seconds; implementations
// must honor ctx cancellation and deadlines.
type Agent interface {
	Ask(ctx context.Context, prompt string) (string, error)
}
