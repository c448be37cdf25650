// Package objstore is the bot's persistence boundary: JSON documents keyed
// by deterministic slash-separated paths such as users/42/history.json. The
// store gives no guarantee beyond last-write-wins; callers own their keys and
// serialize their writes.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidKey  = errors.New("objstore: invalid key")
	ErrEncodeFail  = errors.New("objstore: encode failed")
	ErrDecodeFail  = errors.New("objstore: decode failed")
	ErrWriteFailed = errors.New("objstore: write failed")
)

// Store is the object-storage contract the bot depends on.
//
// GetJSON reports found=false (and leaves out untouched) when the key has no
// document. PutJSON overwrites unconditionally. Delete is idempotent.
type Store interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	PutJSON(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ValidateKey enforces the key grammar shared by all backends: relative
// slash-separated segments, no empty or dot-prefixed segments.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.HasPrefix(seg, ".") {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
