package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"tripsmith/internal/adapters/observability"
	"tripsmith/internal/domain"
)

// Completer implements the completion port on the OpenAI chat completions
// API. Transient failures are retried by the SDK with backoff; the cap here
// mirrors the bounded-retry policy of the maps client.
type Completer struct {
	cl openai.Client
}

func New(apiKey string) (*Completer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return &Completer{
		cl: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(3),
			option.WithRequestTimeout(60*time.Second),
		),
	}, nil
}

func (c *Completer) Complete(ctx context.Context, req domain.Completion) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}

	start := time.Now()
	resp, err := c.cl.Chat.Completions.New(ctx, params)
	observability.ObserveExternal("openai", "chat_completions", statusOf(err), time.Since(start))
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func statusOf(err error) int {
	if err == nil {
		return 200
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode
	}
	return 0
}
