// Package dispatch routes a canonical conversation to the provider backend
// named by a model descriptor's tag. Routing is by tag lookup only; the
// dispatcher never inspects client types.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/models"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/llm"
)

// ErrUnknownProvider means the catalog references a provider tag no client
// was registered for. That is operator misconfiguration, not a runtime
// condition; callers surface it immediately and never retry.
var ErrUnknownProvider = errors.New("dispatch: unknown provider")

type Dispatcher struct {
	clients map[string]llm.Client
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		clients: make(map[string]llm.Client),
		logger:  logger,
	}
}

func (d *Dispatcher) Register(tag string, client llm.Client) {
	d.clients[tag] = client
}

// Complete builds the canonical request (system prompt turn, stored history,
// new user turn, chronological) and returns the provider's reply text.
// Provider failures come back as *llm.BackendError carrying the original
// error text; chat completions are never retried here.
func (d *Dispatcher) Complete(ctx context.Context, desc models.Descriptor, systemPrompt string, turns []llm.Message, userText string) (string, error) {
	client, ok := d.clients[desc.Provider]
	if !ok {
		return "", fmt.Errorf("%w: %q (model %q)", ErrUnknownProvider, desc.Provider, desc.Name)
	}

	msgs := make([]llm.Message, 0, len(turns)+2)
	if strings.TrimSpace(systemPrompt) != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, turns...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: userText})

	res, err := client.Chat(ctx, llm.Request{
		Model:       desc.ID,
		Messages:    msgs,
		Temperature: desc.Temp,
		MaxTokens:   desc.MaxTokens,
	})
	if err != nil {
		return "", &llm.BackendError{Provider: desc.Provider, Err: err}
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", &llm.BackendError{Provider: desc.Provider, Err: errors.New("empty reply")}
	}

	d.logger.Info("chat_completed",
		"provider", desc.Provider,
		"model", desc.ID,
		"input_tokens", res.Usage.InputTokens,
		"output_tokens", res.Usage.OutputTokens,
		"duration", res.Duration.String(),
	)
	return text, nil
}
