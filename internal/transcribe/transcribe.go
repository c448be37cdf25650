// Package transcribe turns a local audio/video file into text via a remote
// speech backend. The flow is a two-state machine, UPLOAD then GENERATE,
// each with its own linear-backoff retry budget. A successful upload owns
// exactly one remote delete, performed on every exit path.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/0FL01/Another-Chat-with-LLM-sub000/llm"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second

	// noSpeechMarker is what the prompt instructs the model to answer when
	// the file contains no recognizable speech.
	noSpeechMarker = "NO_SPEECH_DETECTED"

	// NoSpeechNotice is returned (not raised) when the backend reports that
	// the file contains no speech.
	NoSpeechNotice = "Note: no speech was detected in this file."

	transcriptPrompt = "Transcribe the speech in this file verbatim. " +
		"Reply with the transcript text only, no commentary. " +
		"If the file contains no recognizable speech, reply with exactly " + noSpeechMarker + "."
)

// Backend is the remote speech service: upload a file, generate content over
// it, delete it. Implemented by providers/gemini.
type Backend interface {
	Upload(ctx context.Context, path, mimeType string) (name, uri string, err error)
	Generate(ctx context.Context, modelID, uri, mimeType, prompt string) (string, error)
	Delete(ctx context.Context, name string) error
}

type Client struct {
	backend    Backend
	modelID    string
	maxRetries int
	retryDelay time.Duration
	sleep      func(time.Duration)
	logger     *slog.Logger
}

type Option func(*Client)

// WithRetries overrides the per-call-site retry budget and base delay.
func WithRetries(maxRetries int, delay time.Duration) Option {
	return func(c *Client) {
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// WithSleep replaces the backoff sleep. Tests use this to observe delays.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func New(backend Backend, modelID string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		backend:    backend,
		modelID:    modelID,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		sleep:      time.Sleep,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AudioToText uploads the file, runs generation over it and returns the
// transcript. Transient backend failures (llm.ErrUnavailable) are retried up
// to the budget with linear backoff (delay * attempt number); anything else
// fails immediately. The uploaded remote file is deleted exactly once if the
// upload succeeded, whatever happens afterwards.
func (c *Client) AudioToText(ctx context.Context, path, mimeType string) (string, error) {
	var name, uri string
	err := c.withRetry(ctx, "upload", func() error {
		var err error
		name, uri, err = c.backend.Upload(ctx, path, mimeType)
		return err
	})
	if err != nil {
		return "", err
	}
	defer func() {
		if delErr := c.backend.Delete(ctx, name); delErr != nil {
			c.logger.Warn("transcribe_delete_error", "file", name, "error", delErr.Error())
		}
	}()

	var transcript string
	err = c.withRetry(ctx, "generate", func() error {
		var err error
		transcript, err = c.backend.Generate(ctx, c.modelID, uri, mimeType, transcriptPrompt)
		return err
	})
	if err != nil {
		return "", err
	}

	transcript = strings.TrimSpace(transcript)
	if strings.Contains(transcript, noSpeechMarker) {
		return NoSpeechNotice, nil
	}
	return transcript, nil
}

// withRetry runs fn up to maxRetries times, sleeping delay*attempt between
// transient failures. Non-transient errors consume no retry budget.
func (c *Client) withRetry(ctx context.Context, step string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, llm.ErrUnavailable) {
			return fmt.Errorf("transcribe %s: %w", step, err)
		}
		lastErr = err
		if attempt == c.maxRetries {
			break
		}
		delay := c.retryDelay * time.Duration(attempt)
		c.logger.Warn("transcribe_retry",
			"step", step,
			"attempt", attempt,
			"max_retries", c.maxRetries,
			"delay", delay.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		c.sleep(delay)
	}
	return fmt.Errorf("transcribe %s: service unavailable after %d attempts: %w", step, c.maxRetries, lastErr)
}
