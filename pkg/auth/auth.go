// Package auth implements the pre-login handshake: parsing /auth, /reg and
// /exit lines and validating them against a pluggable provider.
package auth

import "github.com/NicolasHaas/gotalk/pkg/model"

// Session is the per-connection surface the handshake drives. It is
// implemented by the server's session type.
type Session interface {
	// Send delivers one text frame to the client. Safe for concurrent use.
	Send(text string)

	// Bind sets the session's identity and registers it in the session
	// registry as a single atomic step. It returns
	// model.ErrNameAlreadyBusy if the user's display name is already
	// bound to a live session.
	Bind(user *model.User) error
}

// Provider validates credentials and registers new accounts. Implementations
// must treat a missing user as a first-class failure path: a lookup that
// matches nothing sends a generic invalid-credentials message rather than
// touching fields of an absent result.
type Provider interface {
	// Initialize prepares the provider (e.g. loads the user cache).
	Initialize() error

	// Authenticate validates login/password, binds the matched user to
	// the session and confirms with "/authok <name>". Returns true only
	// if the session is now authenticated.
	Authenticate(sess Session, login, password string) bool

	// Register creates a new account, binds it to the session and
	// confirms with "/regok <name>". Returns true only if the session is
	// now authenticated.
	Register(sess Session, login, password, name string, role model.Role) bool
}
