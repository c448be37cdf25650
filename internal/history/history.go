// Package history owns the per-user conversation turn list. Every call is a
// full read-modify-write against the object store; the platform delivers one
// message per user at a time, so last-write-wins is acceptable.
package history

import (
	"context"
	"fmt"

	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/objstore"
	"github.com/0FL01/Another-Chat-with-LLM-sub000/llm"
)

// DefaultCap is the number of most-recent turns retained per user. It bounds
// the prompt size sent to providers.
const DefaultCap = 10

type Manager struct {
	store objstore.Store
	cap   int
}

func NewManager(store objstore.Store, turnCap int) *Manager {
	if turnCap <= 0 {
		turnCap = DefaultCap
	}
	return &Manager{store: store, cap: turnCap}
}

func key(userID int64) string {
	return fmt.Sprintf("users/%d/history.json", userID)
}

// Get returns the stored turns, oldest first. A missing document is an empty
// history.
func (m *Manager) Get(ctx context.Context, userID int64) ([]llm.Message, error) {
	var turns []llm.Message
	if _, err := m.store.GetJSON(ctx, key(userID), &turns); err != nil {
		return nil, fmt.Errorf("history: load user %d: %w", userID, err)
	}
	return turns, nil
}

// Save appends one turn and truncates to the most recent cap turns, oldest
// evicted first.
func (m *Manager) Save(ctx context.Context, userID int64, role, content string) error {
	turns, err := m.Get(ctx, userID)
	if err != nil {
		return err
	}
	turns = append(turns, llm.Message{Role: role, Content: content})
	if len(turns) > m.cap {
		turns = turns[len(turns)-m.cap:]
	}
	if err := m.store.PutJSON(ctx, key(userID), turns); err != nil {
		return fmt.Errorf("history: save user %d: %w", userID, err)
	}
	return nil
}

// Clear deletes the user's history document.
func (m *Manager) Clear(ctx context.Context, userID int64) error {
	if err := m.store.Delete(ctx, key(userID)); err != nil {
		return fmt.Errorf("history: clear user %d: %w", userID, err)
	}
	return nil
}
