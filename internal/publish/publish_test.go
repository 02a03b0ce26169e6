package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turbidity-monitor/internal/monitor"
	"turbidity-monitor/internal/series"
)

type fakeRedis struct {
	sets      map[string][]byte
	published map[string][][]byte
	failSet   error
	closed    bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{sets: map[string][]byte{}, published: map[string][][]byte{}}
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	if f.failSet != nil {
		return redis.NewStatusResult("", f.failSet)
	}
	f.sets[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.published[channel] = append(f.published[channel], message.([]byte))
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedis_PublishStatus(t *testing.T) {
	fake := newFakeRedis()
	r := &Redis{client: fake}

	st := monitor.Status{State: monitor.Stable, LastState: monitor.Unstable, Changed: true, Samples: 40}
	require.NoError(t, r.PublishStatus(context.Background(), "run-1", st))

	var got monitor.Status
	require.NoError(t, json.Unmarshal(fake.sets["turbidity:status:run-1"], &got))
	assert.Equal(t, monitor.Stable, got.State)
	assert.Equal(t, 40, got.Samples)

	fake.failSet = errors.New("READONLY")
	assert.Error(t, r.PublishStatus(context.Background(), "run-1", st))
}

func TestRedis_PublishEvent(t *testing.T) {
	fake := newFakeRedis()
	r := &Redis{client: fake}

	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	u := monitor.Update{
		Appended:  true,
		Sample:    series.Sample{Stamp: "s", Time: at, Raw: 5, Normalized: 5},
		State:     monitor.Dissolved,
		LastState: monitor.Stable,
		Event:     monitor.EventChangedToDissolved,
	}
	msg, ok := MessageFor("run-1", u)
	require.True(t, ok)
	require.NoError(t, r.PublishEvent(context.Background(), msg))

	require.Len(t, fake.published[eventsChannel], 1)
	var got Message
	require.NoError(t, json.Unmarshal(fake.published[eventsChannel][0], &got))
	assert.Equal(t, monitor.EventChangedToDissolved, got.Event)
	assert.Equal(t, "run-1", got.RunID)
	assert.True(t, got.At.Equal(at))

	require.NoError(t, r.Close())
	assert.True(t, fake.closed)
}

func TestMessageFor_NoEvent(t *testing.T) {
	_, ok := MessageFor("r", monitor.Update{Appended: true, State: monitor.Unstable})
	assert.False(t, ok)
	_, ok = MessageFor("r", monitor.Update{Appended: false, Event: monitor.EventChanged})
	assert.False(t, ok)
}

func TestOpen_EmptyAddrIsNop(t *testing.T) {
	p, err := Open(context.Background(), "")
	require.NoError(t, err)
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.PublishEvent(context.Background(), Message{}))
	assert.NoError(t, p.Close())
}
