package model

type AlertKind string

const (
	AlertHigh AlertKind = "high"
	AlertLow  AlertKind = "low"
)

// Alert is a transient threshold-crossing signal. It is created per
// qualifying reading, handed to the notification collaborator once and
// then discarded; the core keeps no alert history.
type Alert struct {
	Kind      AlertKind `json:"kind"`
	Reading   Reading   `json:"reading"`
	Threshold float64   `json:"threshold"`
}
