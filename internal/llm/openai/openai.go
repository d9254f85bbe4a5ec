package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog/log"

	"github.com/kakusiA/discord-bot-v1/internal/llm"
)

type Client struct {
	client openai.Client
	params llm.Params
}

// New returns an OpenAI chat client. httpClient may be nil.
func New(apiKey string, httpClient *http.Client, params llm.Params) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &Client{
		client: openai.NewClient(opts...),
		params: params,
	}
}

func (c *Client) Complete(ctx context.Context, msgs []llm.Message) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            toParams(msgs),
		Model:               openai.ChatModel(c.params.Model),
		MaxCompletionTokens: openai.Int(int64(c.params.MaxTokens)),
		Temperature:         openai.Float(c.params.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response: %w", llm.ErrEmptyReply)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", llm.ErrEmptyReply
	}

	log.Debug().
		Str("model", c.params.Model).
		Int("messages", len(msgs)).
		Int("reply_length", len(content)).
		Msg("Chat completion done")

	return content, nil
}

func toParams(msgs []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
