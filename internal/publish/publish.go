// Package publish fans out monitor state to external subscribers.
package publish

import (
	"context"
	"time"

	"turbidity-monitor/internal/monitor"
	"turbidity-monitor/internal/series"
)

// Message is the payload sent for every state event.
type Message struct {
	RunID     string        `json:"run_id"`
	Event     monitor.Event `json:"event"`
	State     monitor.State `json:"state"`
	LastState monitor.State `json:"last_state"`
	Sample    series.Sample `json:"sample"`
	At        time.Time     `json:"at"`
}

// Publisher receives the latest status after every tick and the events that
// tick produced.
type Publisher interface {
	PublishStatus(ctx context.Context, runID string, st monitor.Status) error
	PublishEvent(ctx context.Context, msg Message) error
	Close() error
}

// Nop discards everything. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishStatus(context.Context, string, monitor.Status) error { return nil }
func (Nop) PublishEvent(context.Context, Message) error                 { return nil }
func (Nop) Close() error                                                { return nil }

// MessageFor builds the event message for an update, or reports false when
// the update carries no event.
func MessageFor(runID string, u monitor.Update) (Message, bool) {
	if !u.Appended || u.Event == monitor.EventNone {
		return Message{}, false
	}
	return Message{
		RunID:     runID,
		Event:     u.Event,
		State:     u.State,
		LastState: u.LastState,
		Sample:    u.Sample,
		At:        u.Sample.Time,
	}, true
}
