package objstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	bs, err := NewBoltStore(filepath.Join(t.TempDir(), "objects.bolt"))
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	t.Cleanup(func() { _ = bs.Close() })
	return map[string]Store{"file": fs, "bolt": bs}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	type doc struct {
		Name string `json:"name"`
		N    int    `json:"n"`
	}

	for name, s := range openStores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "users/42/settings.json"

			found, err := s.GetJSON(ctx, key, &doc{})
			if err != nil {
				t.Fatalf("GetJSON(missing) error = %v", err)
			}
			if found {
				t.Fatalf("GetJSON(missing) found = true, want false")
			}

			in := doc{Name: "alpha", N: 3}
			if err := s.PutJSON(ctx, key, in); err != nil {
				t.Fatalf("PutJSON() error = %v", err)
			}
			exists, err := s.Exists(ctx, key)
			if err != nil {
				t.Fatalf("Exists() error = %v", err)
			}
			if !exists {
				t.Fatalf("Exists() = false after PutJSON")
			}

			var out doc
			found, err = s.GetJSON(ctx, key, &out)
			if err != nil {
				t.Fatalf("GetJSON() error = %v", err)
			}
			if !found {
				t.Fatalf("GetJSON() found = false, want true")
			}
			if out != in {
				t.Fatalf("GetJSON() = %+v, want %+v", out, in)
			}

			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("Delete(again) error = %v, want idempotent nil", err)
			}
			exists, err = s.Exists(ctx, key)
			if err != nil {
				t.Fatalf("Exists() error = %v", err)
			}
			if exists {
				t.Fatalf("Exists() = true after Delete")
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	t.Parallel()

	valid := []string{"users/access.json", "users/42/history.json", "a/b/c"}
	for _, key := range valid {
		if err := ValidateKey(key); err != nil {
			t.Fatalf("ValidateKey(%q) error = %v, want nil", key, err)
		}
	}

	invalid := []string{"", "/abs", "trailing/", "a//b", "../escape", "users/../access.json", "users/.hidden"}
	for _, key := range invalid {
		err := ValidateKey(key)
		if err == nil {
			t.Fatalf("ValidateKey(%q) expected error", key)
		}
		if !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("ValidateKey(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}
