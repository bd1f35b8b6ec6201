package model

import "sync"

// User is a registered identity. Sessions hold a pointer to the User they
// authenticated as, so a rename or role change made through one session is
// visible to every reader without a fresh store lookup. The mutable fields
// (display name and role set) are guarded by an internal mutex; ID, Login
// and PasswordHash never change after construction.
type User struct {
	ID    int64
	Login string

	// PasswordHash is the encoded Argon2id hash of the user's password.
	PasswordHash string

	mu    sync.RWMutex
	name  string
	roles RoleSet
}

// NewUser constructs a User with the given identity and roles.
func NewUser(id int64, login, passwordHash, name string, roles RoleSet) *User {
	if roles == nil {
		roles = NewRoleSet()
	}
	return &User{
		ID:           id,
		Login:        login,
		PasswordHash: passwordHash,
		name:         name,
		roles:        roles,
	}
}

// Name returns the current display name.
func (u *User) Name() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.name
}

// SetName changes the display name.
func (u *User) SetName(name string) {
	u.mu.Lock()
	u.name = name
	u.mu.Unlock()
}

// HasRole reports whether the role is present in the user's role set.
func (u *User) HasRole(r Role) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.roles.Has(r)
}

// IsAdmin reports whether ADMIN appears anywhere in the role set.
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// AddRole adds a role to the set. Idempotent.
func (u *User) AddRole(r Role) {
	u.mu.Lock()
	u.roles.Add(r)
	u.mu.Unlock()
}

// RemoveRole removes a role from the set. No-op if absent.
func (u *User) RemoveRole(r Role) {
	u.mu.Lock()
	u.roles.Remove(r)
	u.mu.Unlock()
}

// Roles returns a snapshot copy of the role set.
func (u *User) Roles() RoleSet {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.roles.Clone()
}
