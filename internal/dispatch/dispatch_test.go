package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/models"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/llm"
)

type fakeClient struct {
	lastReq llm.Request
	reply   string
	err     error
}

func (f *fakeClient) Chat(_ context.Context, req llm.Request) (llm.Result, error) {
	f.lastReq = req
	if f.err != nil {
		return llm.Result{}, f.err
	}
	return llm.Result{Text: f.reply}, nil
}

var testDesc = models.Descriptor{
	Name:      "Test 1B",
	Provider:  models.ProviderGroq,
	ID:        "test-1b",
	MaxTokens: 512,
	Temp:      0.3,
}

func TestCompleteBuildsCanonicalRequest(t *testing.T) {
	t.Parallel()

	fake := &fakeClient{reply: "pong"}
	d := New(nil)
	d.Register(models.ProviderGroq, fake)

	turns := []llm.Message{
		{Role: llm.RoleUser, Content: "earlier"},
		{Role: llm.RoleAssistant, Content: "reply"},
	}
	got, err := d.Complete(context.Background(), testDesc, "be terse", turns, "ping")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "pong" {
		t.Fatalf("Complete() = %q, want %q", got, "pong")
	}

	req := fake.lastReq
	if req.Model != "test-1b" || req.MaxTokens != 512 || req.Temperature != 0.3 {
		t.Fatalf("unexpected request parameters: %+v", req)
	}
	wantRoles := []string{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleUser}
	if len(req.Messages) != len(wantRoles) {
		t.Fatalf("messages = %d, want %d", len(req.Messages), len(wantRoles))
	}
	for i, role := range wantRoles {
		if req.Messages[i].Role != role {
			t.Fatalf("messages[%d].Role = %q, want %q", i, req.Messages[i].Role, role)
		}
	}
	if req.Messages[len(req.Messages)-1].Content != "ping" {
		t.Fatalf("last message = %q, want the new user turn", req.Messages[len(req.Messages)-1].Content)
	}
}

func TestCompleteOmitsEmptySystemPrompt(t *testing.T) {
	t.Parallel()

	fake := &fakeClient{reply: "ok"}
	d := New(nil)
	d.Register(models.ProviderGroq, fake)

	if _, err := d.Complete(context.Background(), testDesc, "  ", nil, "hi"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(fake.lastReq.Messages) != 1 {
		t.Fatalf("messages = %d, want 1 (no system turn)", len(fake.lastReq.Messages))
	}
}

func TestCompleteUnknownProvider(t *testing.T) {
	t.Parallel()

	d := New(nil)
	_, err := d.Complete(context.Background(), testDesc, "", nil, "hi")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("Complete() error = %v, want ErrUnknownProvider", err)
	}
}

func TestCompleteWrapsBackendError(t *testing.T) {
	t.Parallel()

	cause := errors.New("http 500: boom")
	d := New(nil)
	d.Register(models.ProviderGroq, &fakeClient{err: cause})

	_, err := d.Complete(context.Background(), testDesc, "", nil, "hi")
	var backendErr *llm.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("Complete() error = %T, want *llm.BackendError", err)
	}
	if backendErr.Provider != models.ProviderGroq {
		t.Fatalf("BackendError.Provider = %q, want %q", backendErr.Provider, models.ProviderGroq)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("BackendError does not wrap the original cause")
	}
}
