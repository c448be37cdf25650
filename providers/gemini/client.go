// Package gemini implements llm.Client and the transcription backend over
// the Google generative-ai-go SDK. Gemini distinguishes only the "user" and
// "model" roles; system turns are collapsed into the model's system
// instruction and assistant turns are mapped to "model".
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/0FL01/Another-Chat-with-LLM-sub000/llm"
)

const roleModel = "model"

// fileActiveTimeout bounds the wait for an uploaded file to leave the
// PROCESSING state before generation.
const fileActiveTimeout = 2 * time.Minute

type Client struct {
	genai *genai.Client
}

func New(ctx context.Context, apiKey string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini: missing api key")
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{genai: gc}, nil
}

func (c *Client) Close() error {
	if c == nil || c.genai == nil {
		return nil
	}
	return c.genai.Close()
}

func (c *Client) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	start := time.Now()

	model := c.genai.GenerativeModel(req.Model)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	system, turns := splitSystem(req.Messages)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(turns) == 0 {
		return llm.Result{}, fmt.Errorf("gemini: no user message in request")
	}
	last := turns[len(turns)-1]
	if last.Role != llm.RoleUser {
		return llm.Result{}, fmt.Errorf("gemini: last message role is %q, want %q", last.Role, llm.RoleUser)
	}

	chat := model.StartChat()
	chat.History = toHistory(turns[:len(turns)-1])

	resp, err := chat.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return llm.Result{}, classify(err)
	}
	text := responseText(resp)
	if text == "" {
		return llm.Result{}, fmt.Errorf("gemini: empty response")
	}

	res := llm.Result{Text: text, Duration: time.Since(start)}
	if resp.UsageMetadata != nil {
		res.Usage = llm.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return res, nil
}

// Upload pushes a local media file to the Gemini Files API and waits for it
// to become ACTIVE. Returns the remote file name (for deletion) and URI (for
// generation).
func (c *Client) Upload(ctx context.Context, path, mimeType string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("gemini: open %s: %w", path, err)
	}
	defer f.Close()

	file, err := c.genai.UploadFile(ctx, "", f, &genai.UploadFileOptions{MIMEType: mimeType})
	if err != nil {
		return "", "", classify(err)
	}

	active, err := awaitActive(ctx, file, c.genai.GetFile, c.genai.DeleteFile, time.Now().Add(fileActiveTimeout), 2*time.Second)
	if err != nil {
		return "", "", err
	}
	return active.Name, active.URI, nil
}

// awaitActive polls until the uploaded file leaves the PROCESSING state. On
// any failure the remote file is deleted best-effort so that retried uploads
// do not accumulate orphaned Files API objects.
func awaitActive(ctx context.Context, file *genai.File, get func(context.Context, string) (*genai.File, error), del func(context.Context, string) error, deadline time.Time, poll time.Duration) (*genai.File, error) {
	for file.State == genai.FileStateProcessing {
		if time.Now().After(deadline) {
			discardFile(del, file.Name)
			return nil, fmt.Errorf("gemini: file %s still processing: %w", file.Name, llm.ErrUnavailable)
		}
		select {
		case <-ctx.Done():
			discardFile(del, file.Name)
			return nil, ctx.Err()
		case <-time.After(poll):
		}
		updated, err := get(ctx, file.Name)
		if err != nil {
			discardFile(del, file.Name)
			return nil, classify(err)
		}
		file = updated
	}
	if file.State == genai.FileStateFailed {
		discardFile(del, file.Name)
		return nil, fmt.Errorf("gemini: file %s processing failed", file.Name)
	}
	return file, nil
}

// discardFile uses its own context: the caller's may already be canceled.
func discardFile(del func(context.Context, string) error, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = del(ctx, name)
}

// Generate runs a generate-content call over an uploaded file.
func (c *Client) Generate(ctx context.Context, modelID, uri, mimeType, prompt string) (string, error) {
	model := c.genai.GenerativeModel(modelID)
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx,
		genai.FileData{MIMEType: mimeType, URI: uri},
		genai.Text(prompt),
	)
	if err != nil {
		return "", classify(err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return text, nil
}

// Delete removes an uploaded file from the Files API.
func (c *Client) Delete(ctx context.Context, name string) error {
	if err := c.genai.DeleteFile(ctx, name); err != nil {
		return classify(err)
	}
	return nil
}

func splitSystem(msgs []llm.Message) (string, []llm.Message) {
	var system []string
	turns := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == llm.RoleSystem {
			if strings.TrimSpace(m.Content) != "" {
				system = append(system, m.Content)
			}
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, "\n\n"), turns
}

func toHistory(msgs []llm.Message) []*genai.Content {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := llm.RoleUser
		if m.Role == llm.RoleAssistant {
			role = roleModel
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

// classify wraps transient service conditions with llm.ErrUnavailable so
// callers can decide whether a retry is worthwhile.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusServiceUnavailable:
			return fmt.Errorf("gemini http %d: %s: %w", apiErr.Code, apiErr.Message, llm.ErrUnavailable)
		}
		return fmt.Errorf("gemini http %d: %s", apiErr.Code, apiErr.Message)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unavailable") || strings.Contains(msg, "overloaded") || strings.Contains(msg, "resource has been exhausted") {
		return fmt.Errorf("gemini: %v: %w", err, llm.ErrUnavailable)
	}
	return fmt.Errorf("gemini: %w", err)
}
