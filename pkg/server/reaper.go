package server

import (
	"log/slog"
	"time"
)

// startReaper runs the idle sweep on a fixed interval until the server
// context is cancelled.
func (s *Server) startReaper() {
	go func() {
		ticker := time.NewTicker(s.cfg.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.reapIdle()
			}
		}
	}()
}

// reapIdle disconnects every session whose last activity predates the idle
// cutoff. Victims are collected from a registry snapshot; a session that
// terminates concurrently just makes the notification a no-op.
func (s *Server) reapIdle() {
	cutoff := time.Now().Add(-s.cfg.IdleTimeout)

	for _, sess := range s.registry.Snapshot() {
		if sess.LastActive().Before(cutoff) {
			slog.Info("reaping idle session", "user", sess.Name(), "idle_since", sess.LastActive())
			sess.Send("You have been disconnected due to inactivity.")
			sess.Terminate()
			s.metrics.ReapedSessions.Add(1)
		}
	}
}
