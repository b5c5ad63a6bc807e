package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// LibreLinkReader reads the LibreLink companion app's sqlite database.
// The schema is theirs, not ours: only timestamp, value and previous_value
// are touched, everything else is opaque.
type LibreLinkReader struct {
	path string
}

func NewLibreLinkReader(path string) *LibreLinkReader {
	return &LibreLinkReader{path: path}
}

type libreLinkRow struct {
	Timestamp     int64           `json:"timestamp"`
	Value         float64         `json:"value"`
	PreviousValue sql.NullFloat64 `json:"previous_value"`
}

func (r *LibreLinkReader) ReadBatch(ctx context.Context) ([]RawRecord, error) {
	if r.path == "" {
		return nil, fmt.Errorf("%w: no database path configured", ErrSourceUnavailable)
	}
	if _, err := os.Stat(r.path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	// mode=ro: the companion app owns this file, we only ever look at it.
	db, err := gorm.Open(sqlite.Open("file:"+r.path+"?mode=ro"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer sqlDB.Close()

	var rows []libreLinkRow
	err = db.WithContext(ctx).
		Raw("SELECT timestamp, value, previous_value FROM glucose_readings ORDER BY timestamp ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	out := make([]RawRecord, 0, len(rows))
	for _, row := range rows {
		rec := RawRecord{
			TS:    time.UnixMilli(row.Timestamp).UTC(),
			Value: row.Value,
		}
		if row.Timestamp == 0 {
			rec.TS = time.Time{}
		}
		if row.PreviousValue.Valid {
			prev := row.PreviousValue.Float64
			rec.Previous = &prev
		}
		raw, _ := json.Marshal(row)
		rec.Raw = raw
		out = append(out, rec)
	}
	return out, nil
}
