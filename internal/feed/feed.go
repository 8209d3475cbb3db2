// Package feed fans application events out to attached sinks: the Redis
// publisher for external consumers and the websocket hub for browsers.
package feed

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type EventType string

const (
	EventOpportunity EventType = "opportunity"
	EventTrade       EventType = "trade"
	EventMetrics     EventType = "metrics"
	EventStatus      EventType = "status"
)

// Event is the envelope every sink receives.
type Event struct {
	Type    EventType   `json:"type"`
	At      time.Time   `json:"ts"`
	Payload interface{} `json:"payload"`
}

// Sink receives events. Delivery failures are logged, never propagated:
// a slow or dead sink must not stall the trading loop.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

type Bus struct {
	sinks []Sink
	log   *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{log: log}
}

// Attach registers a sink. Not safe to call after Publish starts; wiring
// happens once at startup.
func (b *Bus) Attach(s Sink) {
	b.sinks = append(b.sinks, s)
}

func (b *Bus) Publish(ctx context.Context, typ EventType, payload interface{}) {
	ev := Event{Type: typ, At: time.Now(), Payload: payload}
	for _, s := range b.sinks {
		if err := s.Deliver(ctx, ev); err != nil {
			b.log.Warn("event sink delivery failed",
				zap.String("sink", s.Name()),
				zap.String("event", string(typ)),
				zap.Error(err))
		}
	}
}
