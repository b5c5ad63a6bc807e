// Package source pulls glucose records out of the companion app's local
// database and feeds them into the reading store on a schedule.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrSourceUnavailable means the foreign database could not be opened at
// all (companion app missing, file absent, no permission). The adapter
// treats it as transient and retries on the next tick.
var ErrSourceUnavailable = errors.New("foreign source unavailable")

// ParseError marks a single malformed foreign record. The record is
// skipped; the rest of the batch is still processed.
type ParseError struct {
	Row    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("foreign record %d: %s", e.Row, e.Reason)
}

// RawRecord is a foreign glucose record in the only shape we depend on:
// when it was measured, the value, and the value before it. Raw carries
// the record as read, for provenance.
type RawRecord struct {
	TS       time.Time
	Value    float64
	Previous *float64
	Raw      json.RawMessage
}

// ForeignReader is the read-only capability over the foreign source.
// Tests substitute deterministic fixtures for the sqlite-backed reader.
type ForeignReader interface {
	ReadBatch(ctx context.Context) ([]RawRecord, error)
}
