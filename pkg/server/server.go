// Package server implements the gotalk chat server: the session registry,
// the per-connection protocol state machine, command dispatch, message
// fan-out and the idle reaper.
package server

import (
	"context"
	"net"
	"time"

	"github.com/NicolasHaas/gotalk/pkg/auth"
	"github.com/NicolasHaas/gotalk/pkg/datastore"
)

// Config holds server configuration.
type Config struct {
	Addr         string        // TCP bind address (e.g. ":8189")
	DBPath       string        // SQLite database path
	MetricsAddr  string        // HTTP bind address for /metrics (empty = disabled)
	UsersFile    string        // YAML file of users to seed on startup
	IdleTimeout  time.Duration // inactivity threshold before a session is reaped
	ReapInterval time.Duration // how often the idle sweep runs

	// CLI-only action (run and exit)
	ExportUsers bool // export all users as YAML and exit
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8189",
		MetricsAddr:  ":8190",
		DBPath:       "gotalk.db",
		IdleTimeout:  20 * time.Minute,
		ReapInterval: time.Minute,
	}
}

// Dependencies holds external collaborators for the server.
// Server assumes ownership of Store and will Close() it on shutdown.
type Dependencies struct {
	Store datastore.UserStore

	// Provider overrides the default store-backed authentication
	// provider. Nil selects auth.NewStoreProvider(Store).
	Provider auth.Provider
}

// Server is the central chat server process.
type Server struct {
	cfg      Config
	registry *Registry
	messages *MessageService
	metrics  *Metrics
	store    datastore.UserStore
	provider auth.Provider
	ln       net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	provider := deps.Provider
	if provider == nil && deps.Store != nil {
		provider = auth.NewStoreProvider(deps.Store)
	}

	registry := NewRegistry()
	metrics := NewMetrics()
	return &Server{
		cfg:      cfg,
		registry: registry,
		messages: NewMessageService(registry, metrics),
		metrics:  metrics,
		store:    deps.Store,
		provider: provider,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Registry returns the session registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Messages returns the message service.
func (s *Server) Messages() *MessageService {
	return s.messages
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}
