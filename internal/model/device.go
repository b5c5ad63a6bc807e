package model

import "time"

// PairedDevice is the wearable currently connected to the bridge. It is
// discovered from device-connect events and held only for the session.
type PairedDevice struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// DeviceSendRecord captures one successful transmission to the wearable.
// The value is copied from the reading so the record stays meaningful on
// its own. Later sends supersede earlier records.
type DeviceSendRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Value      float64   `json:"value"`
	DeviceName string    `json:"deviceName"`
}
