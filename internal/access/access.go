// Package access maintains the allow-list gating every bot handler. The list
// is one JSON document in the object store mapping user ID → role; the
// configured admin ID is always ADMIN no matter what the document says.
package access

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/0FL01/Another-Chat-with-LLM-sub000/internal/objstore"
)

const listKey = "users/access.json"

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

var ErrDenied = errors.New("access denied")

func ParseRole(s string) (Role, error) {
	switch s {
	case "admin", "ADMIN":
		return RoleAdmin, nil
	case "user", "USER", "":
		return RoleUser, nil
	}
	return "", fmt.Errorf("access: unknown role %q", s)
}

type Manager struct {
	store   objstore.Store
	adminID int64
}

func NewManager(store objstore.Store, adminID int64) *Manager {
	return &Manager{store: store, adminID: adminID}
}

// RoleOf reports the user's role. found=false means the user is not on the
// allow-list. The admin ID never touches the store.
func (m *Manager) RoleOf(ctx context.Context, userID int64) (Role, bool, error) {
	if userID == m.adminID && m.adminID != 0 {
		return RoleAdmin, true, nil
	}
	list, err := m.load(ctx)
	if err != nil {
		return "", false, err
	}
	role, ok := list[idKey(userID)]
	if !ok {
		return "", false, nil
	}
	return role, true, nil
}

func (m *Manager) IsAllowed(ctx context.Context, userID int64) (bool, error) {
	_, found, err := m.RoleOf(ctx, userID)
	return found, err
}

// Add upserts the user. Store failures propagate; the triggering admin
// command reports them and nothing is retried.
func (m *Manager) Add(ctx context.Context, userID int64, role Role) error {
	list, err := m.load(ctx)
	if err != nil {
		return err
	}
	list[idKey(userID)] = role
	return m.save(ctx, list)
}

// Remove deletes the user from the list; removing an absent user is a no-op.
func (m *Manager) Remove(ctx context.Context, userID int64) error {
	list, err := m.load(ctx)
	if err != nil {
		return err
	}
	key := idKey(userID)
	if _, ok := list[key]; !ok {
		return nil
	}
	delete(list, key)
	return m.save(ctx, list)
}

// List returns the persisted allow-list (admin ID included only when stored
// explicitly).
func (m *Manager) List(ctx context.Context) (map[int64]Role, error) {
	list, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]Role, len(list))
	for key, role := range list {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		out[id] = role
	}
	return out, nil
}

func (m *Manager) load(ctx context.Context) (map[string]Role, error) {
	list := map[string]Role{}
	if _, err := m.store.GetJSON(ctx, listKey, &list); err != nil {
		return nil, fmt.Errorf("access: load allow-list: %w", err)
	}
	return list, nil
}

func (m *Manager) save(ctx context.Context, list map[string]Role) error {
	if err := m.store.PutJSON(ctx, listKey, list); err != nil {
		return fmt.Errorf("access: save allow-list: %w", err)
	}
	return nil
}

func idKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
