// Package worker relays funnel events from Kafka to Loki.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/telemetry"
)

const pushTimeout = 10 * time.Second

// MessageReader is implemented by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Pusher is implemented by *loki.Client.
type Pusher interface {
	PushEvent(ctx context.Context, event *telemetry.Event) error
}

// Relay reads events until ctx is done. Undecodable messages and failed pushes are
// logged and skipped so one bad record does not stall the partition.
func Relay(ctx context.Context, r MessageReader, p Pusher) {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("worker: kafka read error")
			continue
		}
		ev, err := telemetry.Unmarshal(msg.Value)
		if err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("worker: skipping undecodable event")
			continue
		}
		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := p.PushEvent(pushCtx, ev); err != nil {
			log.Warn().Err(err).Str("event_type", ev.Type).Msg("worker: loki push failed")
		}
		cancel()
	}
}
