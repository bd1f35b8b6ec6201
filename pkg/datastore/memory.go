package datastore

import (
	"fmt"
	"sync"

	"github.com/NicolasHaas/gotalk/pkg/model"
)

// MemoryStore provides an in-memory UserStore implementation for tests.
// It mirrors SQLite behavior for uniqueness constraints and role handling.
type MemoryStore struct {
	mu sync.RWMutex

	nextUserID int64

	usersByID    map[int64]*model.User
	usersByLogin map[string]*model.User
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		nextUserID:   1,
		usersByID:    make(map[int64]*model.User),
		usersByLogin: make(map[string]*model.User),
	}
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

// LoadAllUsers returns all users ordered by ID.
func (s *MemoryStore) LoadAllUsers() ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*model.User, 0, len(s.usersByID))
	for id := int64(1); id < s.nextUserID; id++ {
		if u, ok := s.usersByID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

// InsertUser stores a new user with one initial role.
func (s *MemoryStore) InsertUser(login, passwordHash, name string, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("datastore: insert user: %w", model.ErrInvalidRole)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByLogin[login]; exists {
		return nil, fmt.Errorf("datastore: insert user: UNIQUE constraint failed: users.login")
	}
	for _, u := range s.usersByID {
		if u.Name() == name {
			return nil, fmt.Errorf("datastore: insert user: UNIQUE constraint failed: users.name")
		}
	}

	user := model.NewUser(s.nextUserID, login, passwordHash, name, model.NewRoleSet(role))
	s.nextUserID++
	s.usersByID[user.ID] = user
	s.usersByLogin[login] = user
	return user, nil
}

// RenameUser changes a user's display name.
func (s *MemoryStore) RenameUser(id int64, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usersByID[id]
	if !ok {
		return fmt.Errorf("datastore: rename user: no user with id %d", id)
	}
	u.SetName(newName)
	return nil
}

// AddRole grants a role. Idempotent.
func (s *MemoryStore) AddRole(userID int64, role model.Role) error {
	if !role.Valid() {
		return fmt.Errorf("datastore: add role: %w", model.ErrInvalidRole)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usersByID[userID]
	if !ok {
		return fmt.Errorf("datastore: add role: no user with id %d", userID)
	}
	u.AddRole(role)
	return nil
}

// RemoveRole revokes a role. No-op if the user does not hold it.
func (s *MemoryStore) RemoveRole(userID int64, role model.Role) error {
	if !role.Valid() {
		return fmt.Errorf("datastore: remove role: %w", model.ErrInvalidRole)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usersByID[userID]
	if !ok {
		return fmt.Errorf("datastore: remove role: no user with id %d", userID)
	}
	u.RemoveRole(role)
	return nil
}
