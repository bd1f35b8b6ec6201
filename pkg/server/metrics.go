package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime TCP connections accepted
	ActiveConnections atomic.Int64 // current active connections
	FailedAuths       atomic.Int64 // failed authentication attempts
	SuccessfulAuths   atomic.Int64 // successful authentication attempts
	TotalDisconnects  atomic.Int64 // total client disconnects (clean + unclean)

	// Message counters
	BroadcastsSent     atomic.Int64 // messages fanned out to all sessions
	DirectMessagesSent atomic.Int64 // private messages delivered

	// Account counters
	UsersRegistered atomic.Int64 // accounts created during this run

	// Admin counters
	KickCount      atomic.Int64 // users kicked by administrators
	ReapedSessions atomic.Int64 // sessions disconnected by the idle reaper
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable
// struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	SuccessfulAuths   int64 `json:"successful_auths"`
	FailedAuths       int64 `json:"failed_auths"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	BroadcastsSent     int64 `json:"broadcasts_sent"`
	DirectMessagesSent int64 `json:"direct_messages_sent"`

	UsersRegistered int64 `json:"users_registered"`

	KickCount      int64 `json:"kick_count"`
	ReapedSessions int64 `json:"reaped_sessions"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:             uptime.Truncate(time.Second).String(),
		UptimeSeconds:      int64(uptime.Seconds()),
		ActiveConnections:  m.ActiveConnections.Load(),
		TotalConnections:   m.TotalConnections.Load(),
		SuccessfulAuths:    m.SuccessfulAuths.Load(),
		FailedAuths:        m.FailedAuths.Load(),
		TotalDisconnects:   m.TotalDisconnects.Load(),
		BroadcastsSent:     m.BroadcastsSent.Load(),
		DirectMessagesSent: m.DirectMessagesSent.Load(),
		UsersRegistered:    m.UsersRegistered.Load(),
		KickCount:          m.KickCount.Load(),
		ReapedSessions:     m.ReapedSessions.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"broadcasts", s.BroadcastsSent,
		"directs", s.DirectMessagesSent,
		"reaped", s.ReapedSessions,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
