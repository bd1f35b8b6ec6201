package server

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Run starts the server and blocks until shutdown signal.
func (s *Server) Run() error {
	if s.store == nil {
		return fmt.Errorf("server: missing store dependency")
	}
	defer func() { _ = s.store.Close() }()

	// Seed users from YAML config if provided
	if s.cfg.UsersFile != "" {
		if err := LoadUsersFromYAML(s.cfg.UsersFile, s.store); err != nil {
			slog.Error("failed to load users config", "err", err)
		}
	}

	if err := s.provider.Initialize(); err != nil {
		return fmt.Errorf("server: init auth provider: %w", err)
	}

	if err := s.Start(); err != nil {
		return err
	}
	s.startReaper()

	slog.Info("gotalk server running",
		"addr", s.cfg.Addr,
		"idle_timeout", s.cfg.IdleTimeout,
	)

	// Start Prometheus metrics HTTP endpoint
	s.StartMetricsHTTP()

	// Start periodic metrics logging (every 60s)
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	s.Shutdown()
	return nil
}

// Shutdown gracefully stops the server: stop accepting, then drop every
// active session.
func (s *Server) Shutdown() {
	s.cancel()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	for _, sess := range s.registry.Snapshot() {
		sess.Terminate()
	}
}
