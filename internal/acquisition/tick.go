package acquisition

import (
	"context"
	"errors"
	"fmt"
	"time"

	frame "turbidity-monitor/internal/image"
	"turbidity-monitor/internal/metrics"
	"turbidity-monitor/internal/monitor"
	"turbidity-monitor/internal/publish"
	"turbidity-monitor/internal/store"
)

// ErrCapture wraps a failure to read frames from the source.
var ErrCapture = errors.New("capture failed")

// Tick captures one batch, measures it and fans the result out. Capture and
// measurement errors are returned; persistence and publishing failures are
// logged and counted so the run continues.
func (l *Loop) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.ObserveTick(time.Since(start).Seconds()) }()

	frames, err := l.src.CaptureN(l.images)
	if err != nil {
		metrics.Failure(metrics.StageCapture)
		return fmt.Errorf("%w: %w", ErrCapture, err)
	}
	u, err := l.mon.AddMeasurement(frames)
	frame.CloseAll(frames)
	if err != nil {
		metrics.Failure(metrics.StageMeasure)
		return err
	}
	metrics.ObserveUpdate(u)
	l.log.Debug("measured", "normalized", u.Sample.Normalized, "state", u.State)

	l.persist(u)
	l.publish(ctx, u)
	return nil
}

func (l *Loop) persist(u monitor.Update) {
	if l.out.Snapshot != "" {
		if err := l.mon.SaveJSON(l.out.Snapshot); err != nil {
			l.persistFailed("snapshot", err)
		}
	}
	if l.out.CSV != "" {
		if err := l.mon.SaveCSV(l.out.CSV); err != nil {
			l.persistFailed("csv", err)
		}
	}
	if l.rec != nil && u.Appended {
		if err := l.rec.RecordSample(l.runID, u.Sample); err != nil {
			metrics.Failure(metrics.StageStore)
			l.log.Warn("could not record sample", "error", err)
		}
		if u.State != u.LastState {
			t := store.Transition{
				RunID:      l.runID,
				From:       string(u.LastState),
				To:         string(u.State),
				Event:      string(u.Event),
				Samples:    l.mon.Series().Len(),
				OccurredAt: u.Sample.Time,
			}
			if err := l.rec.RecordTransition(t); err != nil {
				metrics.Failure(metrics.StageStore)
				l.log.Warn("could not record transition", "error", err)
			}
		}
	}
	if l.out.Status != "" {
		if err := l.mon.SaveStatus(l.out.Status); err != nil {
			l.persistFailed("status", err)
		}
	}
}

func (l *Loop) persistFailed(what string, err error) {
	metrics.Failure(metrics.StagePersist)
	l.log.Warn("could not save "+what, "error", err)
}

func (l *Loop) publish(ctx context.Context, u monitor.Update) {
	if err := l.pub.PublishStatus(ctx, l.runID, l.mon.Status()); err != nil {
		metrics.Failure(metrics.StagePublish)
		l.log.Warn("could not publish status", "error", err)
	}
	msg, ok := publish.MessageFor(l.runID, u)
	if !ok {
		return
	}
	if err := l.pub.PublishEvent(ctx, msg); err != nil {
		metrics.Failure(metrics.StagePublish)
		l.log.Warn("could not publish event", "event", msg.Event, "error", err)
	}
}
