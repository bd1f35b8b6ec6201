package auth

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/NicolasHaas/gotalk/pkg/crypto"
	"github.com/NicolasHaas/gotalk/pkg/datastore"
	"github.com/NicolasHaas/gotalk/pkg/model"
	"github.com/NicolasHaas/gotalk/pkg/protocol"
)

// StoreProvider is a Provider backed by a UserStore. All known users are
// cached in memory at startup; the store is only written to, never re-read,
// so a cache mutation is applied only after the matching write succeeds.
type StoreProvider struct {
	store datastore.UserStore

	// mu guards users and serializes every check-then-act sequence so two
	// concurrent registrations cannot race on the same login or name.
	mu    sync.Mutex
	users []*model.User
}

// NewStoreProvider creates a provider over the given store. Initialize must
// be called before use.
func NewStoreProvider(store datastore.UserStore) *StoreProvider {
	return &StoreProvider{store: store}
}

// Initialize loads the user cache from the store.
func (p *StoreProvider) Initialize() error {
	users, err := p.store.LoadAllUsers()
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.users = users
	p.mu.Unlock()

	slog.Info("authentication service ready", "mode", "database", "users", len(users))
	return nil
}

// Authenticate validates credentials against the cache and binds the matched
// user to the session.
func (p *StoreProvider) Authenticate(sess Session, login, password string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	user := p.findByCredentials(login, password)
	if user == nil {
		// No matching user is an expected outcome, not a missing-field access.
		sess.Send("Invalid login or password")
		return false
	}

	if err := sess.Bind(user); err != nil {
		if errors.Is(err, model.ErrNameAlreadyBusy) {
			sess.Send("Account is already in use")
		} else {
			slog.Error("bind failed during authentication", "login", login, "err", err)
			sess.Send("Authentication failed, try again")
		}
		return false
	}

	sess.Send(protocol.TokenAuthOK + " " + user.Name())
	return true
}

// Register validates the new account, persists it, then mutates the cache
// and binds the session. Persistence failures leave the cache untouched.
func (p *StoreProvider) Register(sess Session, login, password, name string, role model.Role) bool {
	login = strings.TrimSpace(login)
	name = strings.TrimSpace(name)

	if err := model.ValidateCredentials(login, password, name); err != nil {
		sess.Send("Registration rejected: " + err.Error())
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loginExists(login) {
		sess.Send("The specified login is already taken")
		return false
	}
	if p.nameExists(name) {
		sess.Send("The specified name is already taken")
		return false
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		slog.Error("password hashing failed", "login", login, "err", err)
		sess.Send("Registration failed, try again")
		return false
	}

	user, err := p.store.InsertUser(login, hash, name, role)
	if err != nil {
		slog.Error("user insert failed", "login", login, "err", err)
		sess.Send("Registration failed, try again")
		return false
	}
	p.users = append(p.users, user)

	if err := sess.Bind(user); err != nil {
		// The account exists now; the client can still /auth into it.
		slog.Error("bind failed after registration", "login", login, "err", err)
		sess.Send("Registration succeeded but login failed, use /auth")
		return false
	}

	sess.Send(protocol.TokenRegOK + " " + user.Name())
	return true
}

// findByCredentials scans the whole cache; absence of a match after the full
// scan means unknown credentials, never an early conclusion.
func (p *StoreProvider) findByCredentials(login, password string) *model.User {
	for _, u := range p.users {
		if u.Login != login {
			continue
		}
		ok, err := crypto.VerifyPassword(password, u.PasswordHash)
		if err != nil {
			slog.Error("stored password hash unreadable", "login", login, "err", err)
			return nil
		}
		if ok {
			return u
		}
	}
	return nil
}

func (p *StoreProvider) loginExists(login string) bool {
	for _, u := range p.users {
		if u.Login == login {
			return true
		}
	}
	return false
}

func (p *StoreProvider) nameExists(name string) bool {
	for _, u := range p.users {
		if u.Name() == name {
			return true
		}
	}
	return false
}
