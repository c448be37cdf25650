// Package settings persists per-user preferences: the selected model display
// name and an optional custom system prompt.
package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/objstore"
)

type Settings struct {
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

type Manager struct {
	store objstore.Store
}

func NewManager(store objstore.Store) *Manager {
	return &Manager{store: store}
}

func key(userID int64) string {
	return fmt.Sprintf("users/%d/settings.json", userID)
}

func (m *Manager) Get(ctx context.Context, userID int64) (Settings, error) {
	var s Settings
	if _, err := m.store.GetJSON(ctx, key(userID), &s); err != nil {
		return Settings{}, fmt.Errorf("settings: load user %d: %w", userID, err)
	}
	return s, nil
}

func (m *Manager) SetModel(ctx context.Context, userID int64, model string) error {
	return m.update(ctx, userID, func(s *Settings) {
		s.Model = strings.TrimSpace(model)
	})
}

// SetSystemPrompt stores a custom system prompt; an empty prompt reverts the
// user to the bot default.
func (m *Manager) SetSystemPrompt(ctx context.Context, userID int64, prompt string) error {
	return m.update(ctx, userID, func(s *Settings) {
		s.SystemPrompt = strings.TrimSpace(prompt)
	})
}

func (m *Manager) update(ctx context.Context, userID int64, mutate func(*Settings)) error {
	s, err := m.Get(ctx, userID)
	if err != nil {
		return err
	}
	mutate(&s)
	if err := m.store.PutJSON(ctx, key(userID), s); err != nil {
		return fmt.Errorf("settings: save user %d: %w", userID, err)
	}
	return nil
}
