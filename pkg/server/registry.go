package server

import (
	"sort"
	"sync"

	"github.com/NicolasHaas/gotalk/pkg/model"
	"github.com/NicolasHaas/gotalk/pkg/protocol"
)

// Registry is the authoritative table of authenticated, connected sessions
// keyed by display name. Every compound operation (check-then-insert,
// find-then-act) runs under one lock; message sends and transport closes
// always happen outside it, on a snapshot of the affected sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Subscribe atomically binds user to sess and registers it under the user's
// display name. Returns model.ErrNameAlreadyBusy if the name is taken, so
// two concurrent authentications for the same account cannot both win.
func (r *Registry) Subscribe(sess *Session, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := user.Name()
	if _, busy := r.sessions[name]; busy {
		return model.ErrNameAlreadyBusy
	}
	sess.attach(user)
	r.sessions[name] = sess
	return nil
}

// Unsubscribe removes sess from the registry. Idempotent: a session that was
// never registered, or was already removed, is a no-op.
func (r *Registry) Unsubscribe(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := sess.Name()
	if cur, ok := r.sessions[name]; ok && cur == sess {
		delete(r.sessions, name)
		return
	}
	// Key may be stale if a rename raced termination; fall back to an
	// identity scan so the session never lingers.
	for n, cur := range r.sessions {
		if cur == sess {
			delete(r.sessions, n)
			return
		}
	}
}

// LookupByName returns the live session with the given display name, or nil.
func (r *Registry) LookupByName(name string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[name]
}

// IsNameBusy reports whether a live session holds the given display name.
func (r *Registry) IsNameBusy(name string) bool {
	return r.LookupByName(name) != nil
}

// UserIDByName returns the user ID behind a display name.
func (r *Registry) UserIDByName(name string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[name]
	if !ok {
		return 0, false
	}
	return sess.User().ID, true
}

// ActiveNames returns a sorted snapshot of all registered display names.
func (r *Registry) ActiveNames() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.sessions))
	for n := range r.sessions {
		names = append(names, n)
	}
	r.mu.Unlock()

	sort.Strings(names)
	return names
}

// Snapshot returns all registered sessions at call time.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Rename re-keys sess under newName. The persist callback runs inside the
// critical section so the name check, the store write and the re-key are one
// atomic step; store calls are synchronous and never block on the network.
func (r *Registry) Rename(sess *Session, newName string, persist func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if other, busy := r.sessions[newName]; busy && other != sess {
		return model.ErrNameAlreadyBusy
	}

	// Capture the current key before persisting: a store may share the
	// *model.User and rename it as part of the write.
	user := sess.User()
	oldName := user.Name()

	if err := persist(); err != nil {
		return err
	}

	delete(r.sessions, oldName)
	user.SetName(newName)
	r.sessions[newName] = sess
	return nil
}

// Kick terminates the session with the given display name after notifying
// it. Absence is concluded only from the full table lookup, never from the
// first non-matching entry. The notice and the close happen after the lock
// is released.
func (r *Registry) Kick(name string) error {
	r.mu.Lock()
	target, ok := r.sessions[name]
	r.mu.Unlock()

	if !ok {
		return model.ErrUserNotFound
	}

	target.Send("You have been disconnected from the server by the administrator.")
	target.Send(protocol.TokenExitOK)
	target.Terminate()
	return nil
}
