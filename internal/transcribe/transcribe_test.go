package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/0FL01/Another-Chat-with-LLM-sub000/llm"
)

type fakeBackend struct {
	uploadErrs   []error
	generateErrs []error
	transcript   string

	uploads   int
	generates int
	deletes   int
}

var errTransient = fmt.Errorf("backend overloaded: %w", llm.ErrUnavailable)

func (f *fakeBackend) Upload(context.Context, string, string) (string, string, error) {
	f.uploads++
	if len(f.uploadErrs) > 0 {
		err := f.uploadErrs[0]
		f.uploadErrs = f.uploadErrs[1:]
		if err != nil {
			return "", "", err
		}
	}
	return "files/abc", "uri://abc", nil
}

func (f *fakeBackend) Generate(context.Context, string, string, string, string) (string, error) {
	f.generates++
	if len(f.generateErrs) > 0 {
		err := f.generateErrs[0]
		f.generateErrs = f.generateErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.transcript, nil
}

func (f *fakeBackend) Delete(context.Context, string) error {
	f.deletes++
	return nil
}

func newClient(backend *fakeBackend, sleeps *[]time.Duration) *Client {
	logger := slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(backend, "speech-model", logger,
		WithRetries(3, 5*time.Second),
		WithSleep(func(d time.Duration) { *sleeps = append(*sleeps, d) }),
	)
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestUploadRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		uploadErrs: []error{errTransient, errTransient, nil},
		transcript: "hello world",
	}
	var sleeps []time.Duration
	c := newClient(backend, &sleeps)

	got, err := c.AudioToText(context.Background(), "/tmp/v.ogg", "audio/ogg")
	if err != nil {
		t.Fatalf("AudioToText() error = %v", err)
	}
	if got != "hello world" {
		t.Fatalf("AudioToText() = %q, want %q", got, "hello world")
	}
	if backend.uploads != 3 {
		t.Fatalf("uploads = %d, want 3", backend.uploads)
	}
	if len(sleeps) != 2 {
		t.Fatalf("sleeps = %d, want 2", len(sleeps))
	}
	if sleeps[0] != 5*time.Second || sleeps[1] != 10*time.Second {
		t.Fatalf("sleep durations = %v, want [5s 10s]", sleeps)
	}
	if backend.deletes != 1 {
		t.Fatalf("deletes = %d, want exactly 1", backend.deletes)
	}
}

func TestUploadExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		uploadErrs: []error{errTransient, errTransient, errTransient},
	}
	var sleeps []time.Duration
	c := newClient(backend, &sleeps)

	_, err := c.AudioToText(context.Background(), "/tmp/v.ogg", "audio/ogg")
	if err == nil {
		t.Fatalf("AudioToText() expected terminal error")
	}
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("terminal error = %v, want to wrap ErrUnavailable", err)
	}
	if backend.uploads != 3 {
		t.Fatalf("uploads = %d, want exactly MAX_RETRIES", backend.uploads)
	}
	if len(sleeps) != 2 {
		t.Fatalf("sleeps = %d, want MAX_RETRIES-1", len(sleeps))
	}
	if backend.generates != 0 {
		t.Fatalf("generates = %d, want 0", backend.generates)
	}
	if backend.deletes != 0 {
		t.Fatalf("deletes = %d, want 0 (upload never succeeded)", backend.deletes)
	}
}

func TestNonTransientUploadFailsFast(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		uploadErrs: []error{errors.New("invalid argument: bad file")},
	}
	var sleeps []time.Duration
	c := newClient(backend, &sleeps)

	_, err := c.AudioToText(context.Background(), "/tmp/v.ogg", "audio/ogg")
	if err == nil {
		t.Fatalf("AudioToText() expected error")
	}
	if backend.uploads != 1 {
		t.Fatalf("uploads = %d, want 1 (no retry budget consumed)", backend.uploads)
	}
	if len(sleeps) != 0 {
		t.Fatalf("sleeps = %d, want 0", len(sleeps))
	}
	if backend.deletes != 0 {
		t.Fatalf("deletes = %d, want 0", backend.deletes)
	}
}

func TestGenerateFailureStillDeletesUpload(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		generateErrs: []error{errors.New("invalid argument")},
	}
	var sleeps []time.Duration
	c := newClient(backend, &sleeps)

	_, err := c.AudioToText(context.Background(), "/tmp/v.ogg", "audio/ogg")
	if err == nil {
		t.Fatalf("AudioToText() expected error")
	}
	if backend.deletes != 1 {
		t.Fatalf("deletes = %d, want exactly 1 after successful upload", backend.deletes)
	}
}

func TestGenerateRetriesIndependently(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		uploadErrs:   []error{errTransient, nil},
		generateErrs: []error{errTransient, nil},
		transcript:   "ok",
	}
	var sleeps []time.Duration
	c := newClient(backend, &sleeps)

	got, err := c.AudioToText(context.Background(), "/tmp/v.ogg", "audio/ogg")
	if err != nil {
		t.Fatalf("AudioToText() error = %v", err)
	}
	if got != "ok" {
		t.Fatalf("AudioToText() = %q, want %q", got, "ok")
	}
	// One transient failure per step; each step restarts at attempt 1.
	if len(sleeps) != 2 || sleeps[0] != 5*time.Second || sleeps[1] != 5*time.Second {
		t.Fatalf("sleep durations = %v, want [5s 5s]", sleeps)
	}
	if backend.deletes != 1 {
		t.Fatalf("deletes = %d, want exactly 1", backend.deletes)
	}
}

func TestNoSpeechIsInformational(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{transcript: "NO_SPEECH_DETECTED"}
	var sleeps []time.Duration
	c := newClient(backend, &sleeps)

	got, err := c.AudioToText(context.Background(), "/tmp/v.ogg", "audio/ogg")
	if err != nil {
		t.Fatalf("AudioToText() error = %v, want informational result", err)
	}
	if got != NoSpeechNotice {
		t.Fatalf("AudioToText() = %q, want %q", got, NoSpeechNotice)
	}
	if backend.deletes != 1 {
		t.Fatalf("deletes = %d, want exactly 1", backend.deletes)
	}
}
