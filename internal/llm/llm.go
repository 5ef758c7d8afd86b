package llm

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"

	"voxpilot/internal/agent"
)

var ErrEmptyReply = errors.New("empty completion")

type Options struct {
	Model string
	// MaxTokens caps the reply; spoken replies should stay short.
	MaxTokens int64
}

// Client answers dialogue turns through the chat completions API.
type Client struct {
	api  openai.Client
	opts Options
}

func New(api openai.Client, opts Options) *Client {
	if opts.Model == "" {
		opts.Model = string(openai.ChatModelGPT5Nano)
	}
	return &Client{api: api, opts: opts}
}

func (c *Client) Complete(ctx context.Context, req agent.CompletionRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.opts.Model),
		Messages: messages(req),
	}
	if c.opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.opts.MaxTokens)
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}

	log.Debug("Completion usage", "model", resp.Model, "prompt", resp.Usage.PromptTokens, "completion", resp.Usage.CompletionTokens)
	return reply, nil
}

// messages lays out the system prompt, the screen, the history and the new
// utterance in that order.
func messages(req agent.CompletionRequest) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+3)

	if req.System != "" {
		out = append(out, openai.SystemMessage(req.System))
	}
	if req.Screen != "" {
		out = append(out, openai.SystemMessage("Current screen:\n"+req.Screen))
	}

	for _, t := range req.History {
		switch t.Role {
		case agent.RoleUser:
			out = append(out, openai.UserMessage(t.Text))
		case agent.RoleAssistant:
			out = append(out, openai.AssistantMessage(t.Text))
		case agent.RoleSystem:
			out = append(out, openai.SystemMessage(t.Text))
		}
	}

	return append(out, openai.UserMessage(req.User))
}
