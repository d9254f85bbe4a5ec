package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/kakusiA/discord-bot-v1/internal/llm"
)

type Client struct {
	client *genai.Client
	params llm.Params
}

// New returns a Gemini chat client. httpClient may be nil.
func New(ctx context.Context, apiKey string, httpClient *http.Client, params llm.Params) (*Client, error) {
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client: client,
		params: params,
	}, nil
}

func (c *Client) Complete(ctx context.Context, msgs []llm.Message) (string, error) {
	history, last, err := toHistory(msgs)
	if err != nil {
		return "", err
	}

	model := c.client.GenerativeModel(c.params.Model)
	if c.params.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(c.params.MaxTokens))
	}
	model.SetTemperature(float32(c.params.Temperature))

	chat := model.StartChat()
	chat.History = history

	resp, err := chat.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", llm.ErrEmptyReply
	}

	var reply strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			reply.WriteString(string(text))
		}
	}

	content := strings.TrimSpace(reply.String())
	if content == "" {
		return "", llm.ErrEmptyReply
	}

	log.Debug().
		Str("model", c.params.Model).
		Int("messages", len(msgs)).
		Int("reply_length", len(content)).
		Msg("Gemini reply generated")

	return content, nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// toHistory splits msgs into prior chat turns and the final user prompt.
// System messages are folded into the text of the next user turn.
func toHistory(msgs []llm.Message) ([]*genai.Content, string, error) {
	if len(msgs) == 0 || msgs[len(msgs)-1].Role != llm.RoleUser {
		return nil, "", errors.New("gemini: conversation must end with a user message")
	}

	var (
		history []*genai.Content
		system  []string
	)
	for _, m := range msgs[:len(msgs)-1] {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			text := withSystem(system, m.Content)
			system = nil
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(text)}})
		}
	}

	return history, withSystem(system, msgs[len(msgs)-1].Content), nil
}

func withSystem(system []string, text string) string {
	if len(system) == 0 {
		return text
	}
	return strings.Join(system, "\n") + "\n\n" + text
}
