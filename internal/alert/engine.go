// Package alert turns threshold-crossing readings into notifications.
package alert

import (
	"context"
	"log/slog"

	"glucose-bridge/internal/model"
)

// Notifier is the notification collaborator. Delivery is attempted once
// per alert; a stale glucose alert is not worth a retry queue.
type Notifier interface {
	Notify(ctx context.Context, a model.Alert) error
}

// Engine is a stateless evaluator: per-user thresholds in, zero or one
// alert of each kind out per reading. It holds no history.
type Engine struct {
	high     float64
	low      float64
	notifier Notifier
}

func New(high, low float64, n Notifier) *Engine {
	return &Engine{high: high, low: low, notifier: n}
}

// HandleReading is registered as a reading-store subscriber and runs
// synchronously on every append. Notifier failures are logged and
// swallowed so a broken notification surface never blocks ingestion.
func (e *Engine) HandleReading(ctx context.Context, r model.Reading) {
	switch {
	case r.Value > e.high:
		e.emit(ctx, model.Alert{Kind: model.AlertHigh, Reading: r, Threshold: e.high})
	case r.Value < e.low:
		e.emit(ctx, model.Alert{Kind: model.AlertLow, Reading: r, Threshold: e.low})
	}
}

func (e *Engine) emit(ctx context.Context, a model.Alert) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, a); err != nil {
		slog.Error("alert notification failed",
			"kind", a.Kind, "value", a.Reading.Value, "threshold", a.Threshold, "error", err)
	}
}
