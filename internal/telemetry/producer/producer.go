// Package producer defines the interface for publishing funnel events (e.g. to Kafka).
package producer

import (
	"context"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/telemetry"
)

// Producer publishes funnel events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	Emit(ctx context.Context, event *telemetry.Event) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
