package models

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	c := Default()
	if c.DefaultName() == "" {
		t.Fatalf("DefaultName() is empty")
	}
	d, err := c.Lookup(c.DefaultName())
	if err != nil {
		t.Fatalf("Lookup(default) error = %v", err)
	}
	if d.MaxTokens <= 0 {
		t.Fatalf("default descriptor max tokens = %d, want > 0", d.MaxTokens)
	}
}

func TestLookupUnknown(t *testing.T) {
	t.Parallel()

	_, err := Default().Lookup("nope")
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("Lookup() error = %v, want ErrUnknownModel", err)
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "models.yaml")
	content := `default: "Tiny"
models:
  - name: "Tiny"
    provider: groq
    id: tiny-1
    max_tokens: 1024
    temperature: 0.5
  - name: "Flash"
    provider: gemini
    id: gemini-2.0-flash
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := c.DefaultName(); got != "Tiny" {
		t.Fatalf("DefaultName() = %q, want %q", got, "Tiny")
	}
	d, err := c.Lookup("Flash")
	if err != nil {
		t.Fatalf("Lookup(Flash) error = %v", err)
	}
	if d.MaxTokens != 4096 {
		t.Fatalf("Flash max tokens = %d, want fallback 4096", d.MaxTokens)
	}
	got := c.Providers()
	want := []string{"gemini", "groq"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Providers() = %v, want %v", got, want)
	}
}

func TestLoadFileRejectsUnknownProvider(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "models.yaml")
	content := `models:
  - name: "Weird"
    provider: octoai
    id: weird-1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("LoadFile() expected error for unknown provider tag")
	}
}
