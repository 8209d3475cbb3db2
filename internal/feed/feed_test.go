package feed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	events []Event
	err    error
}

func (r *recordingSink) Name() string { return "recording" }
func (r *recordingSink) Deliver(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestBusFansOut(t *testing.T) {
	bus := NewBus(zap.NewNop())
	a := &recordingSink{}
	b := &recordingSink{err: assert.AnError} // failing sink must not block others
	bus.Attach(a)
	bus.Attach(b)

	bus.Publish(context.Background(), EventStatus, map[string]string{"status": "running"})
	bus.Publish(context.Background(), EventTrade, nil)

	require.Len(t, a.events, 2)
	assert.Equal(t, EventStatus, a.events[0].Type)
	assert.Equal(t, EventTrade, a.events[1].Type)
	assert.Len(t, b.events, 2)
}

func TestRedisSinkPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	ps := sub.Subscribe(context.Background(), ChannelOpportunity)
	defer ps.Close()
	_, err := ps.Receive(context.Background()) // subscription confirmation
	require.NoError(t, err)

	sink := NewRedisSink(rdb)
	ev := Event{Type: EventOpportunity, At: time.Now(), Payload: map[string]float64{"net": 4.0}}
	require.NoError(t, sink.Deliver(context.Background(), ev))

	msg, err := ps.ReceiveMessage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ChannelOpportunity, msg.Channel)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, EventOpportunity, got.Type)
}

func TestRedisSinkUnknownType(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	sink := NewRedisSink(rdb)
	err := sink.Deliver(context.Background(), Event{Type: "bogus"})
	assert.Error(t, err)
}
