package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"

	"github.com/0FL01/Another-Chat-with-LLM-sub000/llm"
)

func TestSplitSystem(t *testing.T) {
	t.Parallel()

	system, turns := splitSystem([]llm.Message{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
		{Role: llm.RoleUser, Content: "again"},
	})
	if system != "be brief" {
		t.Fatalf("system = %q, want %q", system, "be brief")
	}
	if len(turns) != 3 {
		t.Fatalf("turns = %d, want 3", len(turns))
	}
	if turns[0].Role != llm.RoleUser || turns[2].Content != "again" {
		t.Fatalf("unexpected turns: %+v", turns)
	}
}

func TestToHistoryRoleMapping(t *testing.T) {
	t.Parallel()

	hist := toHistory([]llm.Message{
		{Role: llm.RoleUser, Content: "q"},
		{Role: llm.RoleAssistant, Content: "a"},
	})
	if len(hist) != 2 {
		t.Fatalf("history = %d entries, want 2", len(hist))
	}
	if hist[0].Role != "user" {
		t.Fatalf("hist[0].Role = %q, want %q", hist[0].Role, "user")
	}
	if hist[1].Role != "model" {
		t.Fatalf("hist[1].Role = %q, want %q", hist[1].Role, "model")
	}
}

func TestAwaitActiveReturnsActiveFile(t *testing.T) {
	t.Parallel()

	deletes := 0
	del := func(context.Context, string) error { deletes++; return nil }
	get := func(context.Context, string) (*genai.File, error) {
		return &genai.File{Name: "files/abc", URI: "uri://abc", State: genai.FileStateActive}, nil
	}

	file := &genai.File{Name: "files/abc", State: genai.FileStateProcessing}
	got, err := awaitActive(context.Background(), file, get, del, time.Now().Add(time.Minute), time.Millisecond)
	if err != nil {
		t.Fatalf("awaitActive() error = %v", err)
	}
	if got.URI != "uri://abc" {
		t.Fatalf("awaitActive() URI = %q, want %q", got.URI, "uri://abc")
	}
	if deletes != 0 {
		t.Fatalf("deletes = %d, want 0 on success", deletes)
	}
}

func TestAwaitActiveFailedStateDeletesFile(t *testing.T) {
	t.Parallel()

	var deleted []string
	del := func(_ context.Context, name string) error { deleted = append(deleted, name); return nil }
	get := func(context.Context, string) (*genai.File, error) {
		t.Fatalf("get should not be called for an already-failed file")
		return nil, nil
	}

	file := &genai.File{Name: "files/abc", State: genai.FileStateFailed}
	_, err := awaitActive(context.Background(), file, get, del, time.Now().Add(time.Minute), time.Millisecond)
	if err == nil {
		t.Fatalf("awaitActive() expected error for failed processing")
	}
	if len(deleted) != 1 || deleted[0] != "files/abc" {
		t.Fatalf("deleted = %v, want the remote file cleaned up", deleted)
	}
}

func TestAwaitActiveTimeoutDeletesAndClassifiesTransient(t *testing.T) {
	t.Parallel()

	deletes := 0
	del := func(context.Context, string) error { deletes++; return nil }
	get := func(context.Context, string) (*genai.File, error) {
		return &genai.File{Name: "files/abc", State: genai.FileStateProcessing}, nil
	}

	file := &genai.File{Name: "files/abc", State: genai.FileStateProcessing}
	_, err := awaitActive(context.Background(), file, get, del, time.Now().Add(-time.Second), time.Millisecond)
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("awaitActive() error = %v, want transient classification on timeout", err)
	}
	if deletes != 1 {
		t.Fatalf("deletes = %d, want 1 on timeout", deletes)
	}
}

func TestAwaitActiveGetErrorDeletesFile(t *testing.T) {
	t.Parallel()

	deletes := 0
	del := func(context.Context, string) error { deletes++; return nil }
	get := func(context.Context, string) (*genai.File, error) {
		return nil, errors.New("lookup failed")
	}

	file := &genai.File{Name: "files/abc", State: genai.FileStateProcessing}
	_, err := awaitActive(context.Background(), file, get, del, time.Now().Add(time.Minute), time.Millisecond)
	if err == nil {
		t.Fatalf("awaitActive() expected error")
	}
	if deletes != 1 {
		t.Fatalf("deletes = %d, want 1 after a poll failure", deletes)
	}
}

func TestClassifyTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "http_503", err: &googleapi.Error{Code: 503, Message: "overloaded"}, transient: true},
		{name: "http_429", err: &googleapi.Error{Code: 429, Message: "quota"}, transient: true},
		{name: "http_400", err: &googleapi.Error{Code: 400, Message: "invalid argument"}, transient: false},
		{name: "text_overloaded", err: errors.New("the model is overloaded"), transient: true},
		{name: "plain", err: errors.New("bad file"), transient: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := errors.Is(classify(tt.err), llm.ErrUnavailable)
			if got != tt.transient {
				t.Fatalf("classify(%v) transient = %v, want %v", tt.err, got, tt.transient)
			}
		})
	}
}
