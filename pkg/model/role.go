package model

import "sort"

// Role represents a user's permission level.
//
// The integer value doubles as the storage identifier in the roles table,
// so the constants must stay in sync with the seeded rows.
type Role int

const (
	RoleAdmin Role = 1 // full control: change roles, kick users
	RoleUser  Role = 2 // default role, can chat and message
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "ADMIN"
	case RoleUser:
		return "USER"
	default:
		return "UNKNOWN"
	}
}

// StorageID returns the numeric identifier persisted by the user store.
func (r Role) StorageID() int64 {
	return int64(r)
}

// ParseRole converts a role token to a Role. ok is false for
// unrecognized tokens.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "ADMIN":
		return RoleAdmin, true
	case "USER":
		return RoleUser, true
	default:
		return 0, false
	}
}

// Valid returns true if the role is a recognised value.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// RoleSet is a set of roles keyed by role kind. Add and Remove are
// idempotent; membership is order-independent.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

func (s RoleSet) Add(r Role)      { s[r] = struct{}{} }
func (s RoleSet) Remove(r Role)   { delete(s, r) }
func (s RoleSet) Has(r Role) bool { _, ok := s[r]; return ok }

// Clone returns an independent copy of the set.
func (s RoleSet) Clone() RoleSet {
	c := make(RoleSet, len(s))
	for r := range s {
		c[r] = struct{}{}
	}
	return c
}

// Names returns the role names in a stable order.
func (s RoleSet) Names() []string {
	names := make([]string, 0, len(s))
	for r := range s {
		names = append(names, r.String())
	}
	sort.Strings(names)
	return names
}

// String renders the set like "[ADMIN USER]" for chat replies.
func (s RoleSet) String() string {
	out := "["
	for i, n := range s.Names() {
		if i > 0 {
			out += " "
		}
		out += n
	}
	return out + "]"
}
