package source

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// writeFixtureDB builds a throwaway copy of the companion app's database
// with just the columns the reader touches.
func writeFixtureDB(t *testing.T, rows [][3]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glucose_readings.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	if err := db.Exec(`CREATE TABLE glucose_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		value REAL NOT NULL,
		previous_value REAL
	)`).Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	for _, row := range rows {
		if err := db.Exec(
			"INSERT INTO glucose_readings (timestamp, value, previous_value) VALUES (?, ?, ?)",
			row[0], row[1], row[2],
		).Error; err != nil {
			t.Fatalf("insert fixture row: %v", err)
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("fixture db handle: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("close fixture db: %v", err)
	}
	return path
}

func TestReadBatchOrdersAndMapsRows(t *testing.T) {
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	path := writeFixtureDB(t, [][3]any{
		// Inserted newest-first: the reader must return timestamp order.
		{base.Add(2 * time.Minute).UnixMilli(), 5.4, 5.2},
		{base.UnixMilli(), 5.0, nil},
		{base.Add(time.Minute).UnixMilli(), 5.2, 5.0},
	})

	recs, err := NewLibreLinkReader(path).ReadBatch(context.Background())
	if err != nil {
		t.Fatalf("read batch: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}

	wantValues := []float64{5.0, 5.2, 5.4}
	for i, rec := range recs {
		if rec.Value != wantValues[i] {
			t.Fatalf("record %d: got value %v want %v", i, rec.Value, wantValues[i])
		}
		if !rec.TS.Equal(base.Add(time.Duration(i) * time.Minute)) {
			t.Fatalf("record %d: unexpected timestamp %v", i, rec.TS)
		}
		if len(rec.Raw) == 0 {
			t.Fatalf("record %d: raw snapshot missing", i)
		}
	}
	if recs[0].Previous != nil {
		t.Fatalf("first record must have no previous value, got %v", *recs[0].Previous)
	}
	if recs[1].Previous == nil || *recs[1].Previous != 5.0 {
		t.Fatalf("second record previous: got %v want 5.0", recs[1].Previous)
	}
}

func TestReadBatchZeroTimestampBecomesZeroTime(t *testing.T) {
	path := writeFixtureDB(t, [][3]any{
		{0, 5.6, nil},
	})

	recs, err := NewLibreLinkReader(path).ReadBatch(context.Background())
	if err != nil {
		t.Fatalf("read batch: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if !recs[0].TS.IsZero() {
		t.Fatalf("zero foreign timestamp must map to the zero time, got %v", recs[0].TS)
	}
}

func TestReadBatchMissingFile(t *testing.T) {
	reader := NewLibreLinkReader(filepath.Join(t.TempDir(), "nope.db"))
	_, err := reader.ReadBatch(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestReadBatchNoPathConfigured(t *testing.T) {
	_, err := NewLibreLinkReader("").ReadBatch(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}
