package server

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NicolasHaas/gotalk/pkg/model"
	"github.com/NicolasHaas/gotalk/pkg/protocol"
)

// SessionState tracks a session through its lifecycle:
// Connecting → Authenticating → Authenticated → Terminated.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAuthenticating
	StateAuthenticated
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session owns one client connection: its transport, its identity once
// authenticated, and its activity timestamp. Inbound reads belong
// exclusively to the connection's goroutine; Send and Terminate are safe to
// call from any goroutine (broadcast fan-out, kick, idle reaper).
type Session struct {
	conn     net.Conn
	registry *Registry
	metrics  *Metrics

	user       atomic.Pointer[model.User] // set exactly once, under the registry lock
	state      atomic.Int32
	lastActive atomic.Int64 // unix nanoseconds, monotonically non-decreasing

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newSession(conn net.Conn, registry *Registry, metrics *Metrics) *Session {
	s := &Session{
		conn:     conn,
		registry: registry,
		metrics:  metrics,
	}
	s.state.Store(int32(StateConnecting))
	s.lastActive.Store(time.Now().UnixNano())
	return s
}

// User returns the session's identity, or nil before authentication.
func (s *Session) User() *model.User {
	return s.user.Load()
}

// Name returns the identity's display name, or "" before authentication.
func (s *Session) Name() string {
	if u := s.user.Load(); u != nil {
		return u.Name()
	}
	return ""
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// LastActive returns the time of the last inbound activity.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Touch advances the activity timestamp. It never moves backwards, even if
// the wall clock does.
func (s *Session) Touch() {
	now := time.Now().UnixNano()
	for {
		prev := s.lastActive.Load()
		if now <= prev || s.lastActive.CompareAndSwap(prev, now) {
			return
		}
	}
}

// Bind sets the session's identity and registers it, atomically with the
// registry's name-uniqueness check.
func (s *Session) Bind(user *model.User) error {
	return s.registry.Subscribe(s, user)
}

// attach is called by the registry under its lock, once per session.
func (s *Session) attach(user *model.User) {
	s.user.Store(user)
	s.state.Store(int32(StateAuthenticated))
	s.Touch()
}

// Send delivers one text frame to the client. Safe for concurrent use; write
// failures are logged and otherwise ignored, teardown is driven by the
// reader discovering the dead transport.
func (s *Session) Send(text string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := protocol.WriteFrame(s.conn, text); err != nil {
		slog.Debug("send failed", "user", s.Name(), "err", err)
	}
}

// Terminate unregisters the session and closes its transport. Idempotent and
// safe to invoke from multiple triggers racing (reader teardown, /exit,
// kick, idle reaper): only the first call closes resources.
func (s *Session) Terminate() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateTerminated))
		s.registry.Unsubscribe(s)
		_ = s.conn.Close()

		if s.metrics != nil {
			s.metrics.ActiveConnections.Add(-1)
			s.metrics.TotalDisconnects.Add(1)
		}
	})
}
