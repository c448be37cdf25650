package llm

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks a transient provider condition (429/5xx, overloaded
// model). Transcription wraps it with a retry loop; chat completions surface
// it to the user without retrying.
var ErrUnavailable = errors.New("service unavailable")

// BackendError carries a provider call failure back to the handler boundary.
// The original error text is preserved so it can be shown to the user.
type BackendError struct {
	Provider string
	Err      error
}

func (e *BackendError) Error() string {
	if e == nil {
		return "backend error"
	}
	if e.Provider == "" {
		return fmt.Sprintf("backend error: %v", e.Err)
	}
	return fmt.Sprintf("%s backend error: %v", e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
