package alert

import (
	"context"
	"encoding/json"
	"time"

	"glucose-bridge/internal/model"
)

const DefaultTopic = "glucose/alert"

// Publisher is the slice of the MQTT client the notifier needs.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// MQTTNotifier publishes alerts for the app frontend (the alerts tab) and
// anything else listening on the broker.
type MQTTNotifier struct {
	pub   Publisher
	topic string
}

func NewMQTTNotifier(pub Publisher, topic string) *MQTTNotifier {
	if topic == "" {
		topic = DefaultTopic
	}
	return &MQTTNotifier{pub: pub, topic: topic}
}

type alertMessage struct {
	Kind      model.AlertKind `json:"kind"`
	Value     float64         `json:"value"`
	Threshold float64         `json:"threshold"`
	Trend     string          `json:"trend"`
	TS        time.Time       `json:"ts"`
}

func (n *MQTTNotifier) Notify(_ context.Context, a model.Alert) error {
	b, err := json.Marshal(alertMessage{
		Kind:      a.Kind,
		Value:     a.Reading.Value,
		Threshold: a.Threshold,
		Trend:     string(a.Reading.Trend),
		TS:        a.Reading.TS,
	})
	if err != nil {
		return err
	}
	return n.pub.Publish(n.topic, b)
}
