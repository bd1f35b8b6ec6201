package server

import (
	"strings"
	"time"
)

// TimestampLayout is the prefix format on every delivered chat message,
// matching what existing clients expect.
const TimestampLayout = "2006-01-02 15:04:05"

// MessageService handles broadcast and direct delivery. Recipients are
// always snapshotted from the registry first; sends happen outside any lock.
type MessageService struct {
	registry *Registry
	metrics  *Metrics
	now      func() time.Time
}

// NewMessageService creates a message service over the given registry.
func NewMessageService(registry *Registry, metrics *Metrics) *MessageService {
	return &MessageService{
		registry: registry,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (m *MessageService) stamp(text string) string {
	return m.now().Format(TimestampLayout) + " " + text
}

// Broadcast sends a timestamped message to every session registered at call
// time.
func (m *MessageService) Broadcast(text string) {
	stamped := m.stamp(text)
	for _, sess := range m.registry.Snapshot() {
		sess.Send(stamped)
	}
	m.metrics.BroadcastsSent.Add(1)
}

// Direct delivers a timestamped message to toName and echoes it back to the
// sender. If the recipient does not exist, only the sender is notified.
func (m *MessageService) Direct(text, toName, fromName string) {
	to := m.registry.LookupByName(toName)
	from := m.registry.LookupByName(fromName)

	if to == nil {
		if from != nil {
			from.Send("User with nickname " + toName + " does not exist")
		}
		return
	}

	stamped := m.stamp(text)
	to.Send(stamped)
	if from != nil {
		from.Send(stamped)
	}
	m.metrics.DirectMessagesSent.Add(1)
}

// BroadcastActiveNames broadcasts the current list of display names.
func (m *MessageService) BroadcastActiveNames() {
	names := m.registry.ActiveNames()
	m.Broadcast("Active clients: [" + strings.Join(names, ", ") + "]")
}
