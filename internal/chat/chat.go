// Package chat keeps per-user LLM conversations.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kakusiA/discord-bot-v1/internal/llm"
	"github.com/kakusiA/discord-bot-v1/internal/store"
)

const SystemPrompt = "당신은 이름은 도형이야. 사용자의 질문에 정확하고 간결하게 답변하며, 필요한 경우 예시를 들어 설명합니다."

var (
	ErrEmptyQuestion = errors.New("chat: empty question")
	ErrNoHistory     = errors.New("chat: no history")
)

// History is where conversations are persisted.
type History interface {
	Get(userID string) ([]store.Message, bool)
	Put(userID string, msgs []store.Message) error
	Reset(userID string, seed []store.Message) (bool, error)
}

type Service struct {
	llm     llm.Completer
	history History

	// one in-flight question per user keeps histories linear
	mu    sync.Mutex
	users map[string]*sync.Mutex
}

func NewService(completer llm.Completer, history History) *Service {
	return &Service{
		llm:     completer,
		history: history,
		users:   make(map[string]*sync.Mutex),
	}
}

func seed() []store.Message {
	return []store.Message{{Role: llm.RoleSystem, Content: SystemPrompt}}
}

func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.users[userID]
	if !ok {
		m = &sync.Mutex{}
		s.users[userID] = m
	}
	return m
}

// Ask sends question in the user's conversation and records the reply. The
// history is only saved when the model answers.
func (s *Service) Ask(ctx context.Context, userID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	msgs, ok := s.history.Get(userID)
	if !ok {
		msgs = seed()
	}
	msgs = append(msgs, store.Message{Role: llm.RoleUser, Content: question})

	reply, err := s.llm.Complete(ctx, toLLM(msgs))
	if err != nil {
		return "", fmt.Errorf("failed to get reply: %w", err)
	}

	msgs = append(msgs, store.Message{Role: llm.RoleAssistant, Content: reply})
	if err := s.history.Put(userID, msgs); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to save conversation")
	}

	return reply, nil
}

// Clear resets the user's conversation to the system prompt.
func (s *Service) Clear(userID string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	existed, err := s.history.Reset(userID, seed())
	if err != nil {
		return fmt.Errorf("failed to reset conversation: %w", err)
	}
	if !existed {
		return ErrNoHistory
	}
	return nil
}

// Recent returns the last n user and assistant turns of the conversation.
func (s *Service) Recent(userID string, n int) ([]store.Message, error) {
	msgs, ok := s.history.Get(userID)
	if !ok {
		return nil, ErrNoHistory
	}
	if n <= 0 {
		n = 5
	}
	if n > len(msgs) {
		n = len(msgs)
	}
	if limit := n * 2; len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := msgs[:0]
	for _, m := range msgs {
		if m.Role == llm.RoleUser || m.Role == llm.RoleAssistant {
			out = append(out, m)
		}
	}
	return out, nil
}

// FormatHistory renders messages the way the history command posts them.
func FormatHistory(n int, msgs []store.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**최근 %d개의 대화 기록:**\n", n)
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleUser:
			fmt.Fprintf(&b, "**User:** %s\n", m.Content)
		case llm.RoleAssistant:
			fmt.Fprintf(&b, "**GPT:** %s\n", m.Content)
		}
	}
	return b.String()
}

func toLLM(msgs []store.Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
