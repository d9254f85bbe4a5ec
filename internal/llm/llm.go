// Package llm is the chat completion surface shared by the LLM backends.
package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrEmptyReply = errors.New("llm: empty reply")

type Message struct {
	Role    string
	Content string
}

// Completer produces the assistant's next turn for a conversation.
type Completer interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
}

// Params tunes a completion.
type Params struct {
	Model       string
	MaxTokens   int
	Temperature float64
}
