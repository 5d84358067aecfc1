// Package notify delivers shutdown events to the outside world. Delivery
// is best effort by contract: an unreachable webhook or topic must never
// undo or block a shutdown that already happened.
package notify

import (
	"context"

	"github.com/solarekm/reaper/telemetry"
	"github.com/solarekm/reaper/types"
)

// Publisher delivers one shutdown event to a backend
type Publisher interface {
	Publish(ctx context.Context, event types.ShutdownEvent) error
}

// MultiPublisher fans out to every registered publisher. Each endpoint
// attempt is independent; failures are logged with the endpoint identity
// and never raised. Zero endpoints is a no-op.
type MultiPublisher struct {
	logger  *telemetry.Logger
	entries []entry
}

type entry struct {
	name string
	pub  Publisher
}

// NewMultiPublisher creates an empty fan-out publisher
func NewMultiPublisher() *MultiPublisher {
	return &MultiPublisher{logger: telemetry.NewLogger("notifier")}
}

// Add registers a named publisher
func (m *MultiPublisher) Add(name string, pub Publisher) {
	m.entries = append(m.entries, entry{name: name, pub: pub})
}

// Endpoints returns how many publishers are registered
func (m *MultiPublisher) Endpoints() int {
	return len(m.entries)
}

// Publish delivers the event everywhere. Always returns nil; per-endpoint
// failures only show up in the log.
func (m *MultiPublisher) Publish(ctx context.Context, event types.ShutdownEvent) error {
	for _, e := range m.entries {
		if err := e.pub.Publish(ctx, event); err != nil {
			m.logger.WithContext(ctx).Error().
				Err(err).
				Str("publisher", e.name).
				Str("instance_id", event.ResourceID).
				Msg("notification delivery failed")
			continue
		}

		telemetry.NotificationsSent.Add(ctx, 1)
	}

	return nil
}
