// Package watch is the MQTT bridge to the wearable. Outbound it frames
// relay payloads onto data topics; inbound it turns broker messages into
// typed relay events.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"glucose-bridge/internal/model"
	"glucose-bridge/internal/mqtt"
	"glucose-bridge/internal/relay"
)

const (
	dataTopicPrefix        = "glucose-watch/data/"
	helloTopic             = "glucose-watch/provider/hello"
	eventConnectedTopic    = "glucose-watch/event/connected"
	eventDisconnectedTopic = "glucose-watch/event/disconnected"
	eventRequestTopic      = "glucose-watch/event/request"
)

type Bridge struct {
	client     *mqtt.Client
	providerID string
	events     chan relay.Event

	mu         sync.RWMutex
	deviceName string
}

func New(client *mqtt.Client, providerID string) *Bridge {
	if providerID == "" {
		providerID = "glucose_tracker"
	}
	return &Bridge{
		client:     client,
		providerID: providerID,
		events:     make(chan relay.Event, 16),
	}
}

// Events is the stream the relay's Run loop consumes.
func (b *Bridge) Events() <-chan relay.Event { return b.events }

// Start announces this app as the glucose data provider and subscribes to
// the device event topics.
func (b *Bridge) Start(ctx context.Context) error {
	hello, _ := json.Marshal(map[string]string{"provider": b.providerID})
	if err := b.client.Publish(helloTopic, hello); err != nil {
		return fmt.Errorf("provider announce: %w", err)
	}

	if err := b.client.Subscribe(eventConnectedTopic, b.handleConnected); err != nil {
		return err
	}
	if err := b.client.Subscribe(eventDisconnectedTopic, func(mqtt.Message) {
		b.setDeviceName("")
		b.push(relay.Event{Kind: relay.EventDisconnected})
	}); err != nil {
		return err
	}
	if err := b.client.Subscribe(eventRequestTopic, func(mqtt.Message) {
		b.push(relay.Event{Kind: relay.EventDataRequest})
	}); err != nil {
		return err
	}
	slog.Info("watch bridge started", "provider", b.providerID)
	return nil
}

func (b *Bridge) handleConnected(m mqtt.Message) {
	var dev model.PairedDevice
	if err := json.Unmarshal(m.Payload(), &dev); err != nil {
		slog.Warn("watch connect event with bad payload", "error", err)
		return
	}
	b.setDeviceName(dev.Name)
	b.push(relay.Event{Kind: relay.EventConnected, Device: dev})
}

func (b *Bridge) push(ev relay.Event) {
	select {
	case b.events <- ev:
	default:
		slog.Warn("watch event dropped, relay not keeping up", "kind", ev.Kind)
	}
}

func (b *Bridge) setDeviceName(name string) {
	b.mu.Lock()
	b.deviceName = name
	b.mu.Unlock()
}

// DeviceName is the name from the most recent connect event, empty while
// disconnected.
func (b *Bridge) DeviceName() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.deviceName
}

// SendData publishes one payload frame for the wearable. It implements
// relay.Transport and honors the caller's deadline even though the
// underlying publish has no context support.
func (b *Bridge) SendData(ctx context.Context, channel string, payload []byte) (relay.SendResult, error) {
	done := make(chan error, 1)
	go func() {
		done <- b.client.Publish(dataTopicPrefix+channel, payload)
	}()
	select {
	case <-ctx.Done():
		return relay.SendResult{}, ctx.Err()
	case err := <-done:
		if err != nil {
			return relay.SendResult{}, fmt.Errorf("watch publish: %w", err)
		}
	}
	return relay.SendResult{Success: true, DeviceName: b.DeviceName()}, nil
}
