package datastore

import "github.com/NicolasHaas/gotalk/pkg/model"

// UserStore defines the persistence interface consumed by the chat core.
// Implementations include the default SQLite store and an in-memory store
// for tests; any backend that can satisfy these calls can be swapped in.
//
// Calls are synchronous and safe to invoke from any connection goroutine.
// No transaction spans multiple calls.
type UserStore interface {
	UserReadProvider
	UserWriteProvider
	Close() error
}

type UserReadProvider interface {
	// LoadAllUsers returns every registered user with their role sets.
	LoadAllUsers() ([]*model.User, error)
}

type UserWriteProvider interface {
	// InsertUser persists a new user with one initial role and returns it
	// with the assigned ID. The password must already be hashed.
	InsertUser(login, passwordHash, name string, role model.Role) (*model.User, error)

	// RenameUser changes a user's display name.
	RenameUser(id int64, newName string) error

	// AddRole grants a role. Idempotent: granting an already-held role
	// succeeds without effect.
	AddRole(userID int64, role model.Role) error

	// RemoveRole revokes a role. No-op if the user does not hold it.
	RemoveRole(userID int64, role model.Role) error
}

// Compile-time checks: both stores implement UserStore.
var (
	_ UserStore = (*Store)(nil)
	_ UserStore = (*MemoryStore)(nil)
)
