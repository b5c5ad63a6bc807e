package source

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"glucose-bridge/internal/model"
	"glucose-bridge/internal/store"
	"glucose-bridge/internal/trend"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeReader struct {
	batch []RawRecord
	err   error
	calls int
}

func (f *fakeReader) ReadBatch(_ context.Context) ([]RawRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.batch, nil
}

func openTestRepo(t *testing.T) *store.Repo {
	t.Helper()
	dsn := "file:source_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo, err := store.New(db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func record(ts time.Time, value float64, previous *float64) RawRecord {
	raw, _ := json.Marshal(map[string]any{"timestamp": ts.UnixMilli(), "value": value})
	return RawRecord{TS: ts, Value: value, Previous: previous, Raw: raw}
}

func TestRunOnceSkipsMalformedRecords(t *testing.T) {
	repo := openTestRepo(t)
	now := time.Now().UTC()
	prev := 5.0
	reader := &fakeReader{batch: []RawRecord{
		record(now.Add(-4*time.Minute), 5.0, nil),
		record(now.Add(-3*time.Minute), 5.2, &prev),
		record(now.Add(-2*time.Minute), -1.0, nil), // junk value
		record(time.Time{}, 5.4, nil),              // missing timestamp
		record(now.Add(-1*time.Minute), 5.6, &prev),
	}}
	adapter := New(reader, repo, trend.DefaultThresholds(), time.Minute, time.Minute)

	n, err := adapter.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 readings ingested, got %d", n)
	}

	rows, err := repo.Recent(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 readings stored, got %d", len(rows))
	}
	for _, rd := range rows {
		if rd.Source != SourceLibreLink {
			t.Fatalf("unexpected source %q", rd.Source)
		}
	}
}

func TestRunOnceDeduplicates(t *testing.T) {
	repo := openTestRepo(t)
	now := time.Now().UTC().Truncate(time.Millisecond)
	reader := &fakeReader{batch: []RawRecord{
		record(now.Add(-2*time.Minute), 5.0, nil),
		record(now.Add(-1*time.Minute), 5.2, nil),
		// Same timestamp and value again within the batch.
		record(now.Add(-1*time.Minute), 5.2, nil),
	}}
	adapter := New(reader, repo, trend.DefaultThresholds(), time.Minute, time.Minute)

	n, err := adapter.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 ingested on first run, got %d", n)
	}

	// The foreign DB keeps old rows; a second pass over the same batch must
	// ingest nothing.
	n, err = adapter.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 ingested on second run, got %d", n)
	}

	rows, err := repo.Recent(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 readings stored, got %d", len(rows))
	}
}

func TestRunOnceClassifiesAgainstForeignPrevious(t *testing.T) {
	repo := openTestRepo(t)
	now := time.Now().UTC()
	prev := 5.0
	reader := &fakeReader{batch: []RawRecord{
		record(now.Add(-2*time.Minute), 5.15, &prev), // +0.15/min
		record(now.Add(-1*time.Minute), 5.3, nil),    // no previous
	}}
	adapter := New(reader, repo, trend.DefaultThresholds(), time.Minute, time.Minute)

	if _, err := adapter.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	rows, err := repo.Recent(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(rows))
	}
	if rows[0].Trend != model.TrendRapidlyRising {
		t.Fatalf("expected RapidlyRising for steep delta, got %q", rows[0].Trend)
	}
	if rows[1].Trend != model.TrendStable {
		t.Fatalf("expected Stable without previous value, got %q", rows[1].Trend)
	}
}

func TestRunOnceSourceUnavailable(t *testing.T) {
	repo := openTestRepo(t)
	reader := &fakeReader{err: ErrSourceUnavailable}
	adapter := New(reader, repo, trend.DefaultThresholds(), time.Minute, time.Minute)

	n, err := adapter.RunOnce(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 ingested, got %d", n)
	}

	rows, err := repo.Recent(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("store must stay untouched on a failed read, got %d rows", len(rows))
	}
}

func TestStopWithoutStart(t *testing.T) {
	adapter := New(&fakeReader{}, openTestRepo(t), trend.DefaultThresholds(), time.Minute, time.Minute)
	adapter.Stop()
}
