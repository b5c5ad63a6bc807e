// Package relay bridges stored readings to the paired wearable display.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"glucose-bridge/internal/model"
)

// ErrNoReading is returned by SendLatest when the store is empty. A
// device-initiated data request treats the same condition as a no-op.
var ErrNoReading = errors.New("no reading to send")

// SendResult is the structured outcome of one transmission attempt.
// Failures travel in here, never as errors across the event boundary.
type SendResult struct {
	Success    bool   `json:"success"`
	DeviceName string `json:"deviceName,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Transport sends one framed payload to the wearable on a named channel.
type Transport interface {
	SendData(ctx context.Context, channel string, payload []byte) (SendResult, error)
}

// LastSentStore persists the single most recent send record ("last sync").
type LastSentStore interface {
	Save(ctx context.Context, rec model.DeviceSendRecord) error
	Load(ctx context.Context) (*model.DeviceSendRecord, error)
}

// LatestSource is the one reading-store query the relay needs.
type LatestSource interface {
	Latest(ctx context.Context) (*model.Reading, error)
}

type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventDataRequest
)

// Event is one inbound device notification. Device is set for
// EventConnected only.
type Event struct {
	Kind   EventKind
	Device model.PairedDevice
}

const defaultSendTimeout = 5 * time.Second

// Relay is a two-state machine (disconnected / connected) driven by device
// events and on-demand sync requests.
type Relay struct {
	readings    LatestSource
	lastSent    LastSentStore
	transport   Transport
	high        float64
	low         float64
	sendTimeout time.Duration

	mu     sync.Mutex
	device *model.PairedDevice
}

func New(readings LatestSource, lastSent LastSentStore, transport Transport, high, low float64, sendTimeout time.Duration) *Relay {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Relay{
		readings:    readings,
		lastSent:    lastSent,
		transport:   transport,
		high:        high,
		low:         low,
		sendTimeout: sendTimeout,
	}
}

// Run consumes device events until the context is cancelled. Handlers
// never panic or return errors, so a misbehaving device cannot take the
// event loop down.
func (r *Relay) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case EventConnected:
				r.HandleConnected(ev.Device)
			case EventDisconnected:
				r.HandleDisconnected()
			case EventDataRequest:
				r.HandleDataRequest(ctx)
			}
		}
	}
}

func (r *Relay) HandleConnected(dev model.PairedDevice) {
	r.mu.Lock()
	r.device = &dev
	r.mu.Unlock()
	slog.Info("watch connected", "name", dev.Name, "address", dev.Address)
}

func (r *Relay) HandleDisconnected() {
	r.mu.Lock()
	r.device = nil
	r.mu.Unlock()
	slog.Info("watch disconnected")
}

// Device returns a copy of the session's paired device, or nil when
// disconnected.
func (r *Relay) Device() *model.PairedDevice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.device == nil {
		return nil
	}
	dev := *r.device
	return &dev
}

// HandleDataRequest answers the wearable's pull with the latest reading.
// An empty store means there is nothing to send; that is not an error.
func (r *Relay) HandleDataRequest(ctx context.Context) {
	rd, err := r.readings.Latest(ctx)
	if err != nil {
		slog.Error("watch data request: latest reading query failed", "error", err)
		return
	}
	if rd == nil {
		slog.Debug("watch data request with empty store, nothing to send")
		return
	}
	if res := r.Send(ctx, *rd); !res.Success {
		slog.Warn("watch data request send failed", "error", res.Error)
	}
}

// SendLatest is the manual-sync entry point for the UI layer.
func (r *Relay) SendLatest(ctx context.Context) (SendResult, error) {
	rd, err := r.readings.Latest(ctx)
	if err != nil {
		return SendResult{}, err
	}
	if rd == nil {
		return SendResult{}, ErrNoReading
	}
	return r.Send(ctx, *rd), nil
}

// Send serializes the reading into the watch wire format and transmits it.
// On success the outcome is recorded as the new last-sent value. The
// transport call is bounded by the send timeout so a stuck device cannot
// wedge later sync attempts.
func (r *Relay) Send(ctx context.Context, rd model.Reading) SendResult {
	payload, err := marshalWatchPayload(rd, r.high, r.low)
	if err != nil {
		return SendResult{Error: err.Error()}
	}

	sctx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()
	res, err := r.transport.SendData(sctx, "glucose", payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return SendResult{Error: fmt.Sprintf("send timed out after %s", r.sendTimeout)}
		}
		return SendResult{Error: err.Error()}
	}
	if !res.Success {
		if res.Error == "" {
			res.Error = "device rejected transmission"
		}
		return res
	}

	rec := model.DeviceSendRecord{
		Timestamp:  time.Now().UTC(),
		Value:      rd.Value,
		DeviceName: res.DeviceName,
	}
	if err := r.lastSent.Save(ctx, rec); err != nil {
		// The send itself succeeded; only the bookkeeping is stale.
		slog.Warn("last-sent record save failed", "error", err)
	}
	return res
}

// LastSync returns the most recent successful send record, or nil if
// nothing has been sent yet.
func (r *Relay) LastSync(ctx context.Context) (*model.DeviceSendRecord, error) {
	return r.lastSent.Load(ctx)
}
