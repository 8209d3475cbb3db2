package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis pub/sub channels, one per event type.
const (
	ChannelOpportunity = "arb:opportunity"
	ChannelTrade       = "arb:trade"
	ChannelMetrics     = "arb:metrics"
	ChannelStatus      = "arb:status"
)

var channels = map[EventType]string{
	EventOpportunity: ChannelOpportunity,
	EventTrade:       ChannelTrade,
	EventMetrics:     ChannelMetrics,
	EventStatus:      ChannelStatus,
}

// RedisSink publishes events as JSON onto per-type channels.
type RedisSink struct {
	rdb *redis.Client
}

func NewRedisSink(rdb *redis.Client) *RedisSink {
	return &RedisSink{rdb: rdb}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Deliver(ctx context.Context, ev Event) error {
	ch, ok := channels[ev.Type]
	if !ok {
		return fmt.Errorf("no channel for event type %q", ev.Type)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.rdb.Publish(ctx, ch, body).Err()
}
