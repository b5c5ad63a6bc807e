package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"glucose-bridge/internal/model"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidReading marks readings that violate the store invariants
// (non-positive value, unclassified trend).
var ErrInvalidReading = errors.New("invalid reading")

// Subscriber is called synchronously for every appended reading, in append
// order, before Append returns.
type Subscriber func(ctx context.Context, r model.Reading)

type Repo struct {
	db *gorm.DB

	// mu serializes Append so interleaved writers (sync tick + manual
	// entry) cannot reorder the ordering check, the insert and the
	// subscriber notifications.
	mu   sync.Mutex
	subs []Subscriber
}

func OpenPostgres(user, password, dbName, host, port, sslMode string) (*gorm.DB, error) {
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC", host, user, password, dbName, port, sslMode)
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

func New(db *gorm.DB) (*Repo, error) {
	if err := db.AutoMigrate(&model.Reading{}); err != nil {
		return nil, err
	}
	return &Repo{db: db}, nil
}

// Subscribe registers an append observer. Not safe to call once writers
// are running; wire subscribers during startup.
func (r *Repo) Subscribe(fn Subscriber) {
	r.subs = append(r.subs, fn)
}

// Append validates and inserts a reading, then notifies subscribers.
// Out-of-order timestamps for the same source are accepted with a warning
// rather than rejected: automatic sync and manual entry may legitimately
// interleave near-simultaneous readings.
func (r *Repo) Append(ctx context.Context, rd *model.Reading) error {
	if rd.Value <= 0 {
		return fmt.Errorf("%w: value %v must be positive", ErrInvalidReading, rd.Value)
	}
	if !rd.Trend.Valid() {
		return fmt.Errorf("%w: unknown trend %q", ErrInvalidReading, rd.Trend)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rd.ID == uuid.Nil {
		rd.ID = uuid.New()
	}
	if rd.IngestedAt.IsZero() {
		rd.IngestedAt = time.Now().UTC()
	}

	var last model.Reading
	err := r.db.WithContext(ctx).
		Where(&model.Reading{Source: rd.Source}).
		Clauses(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "ts"}, Desc: true},
			{Column: clause.Column{Name: "id"}, Desc: true},
		}}).
		First(&last).Error
	switch {
	case err == nil:
		if rd.TS.Before(last.TS) {
			slog.Warn("reading out of timestamp order, accepting",
				"source", rd.Source, "ts", rd.TS, "latest_ts", last.TS)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// first reading for this source
	default:
		return err
	}

	if err := r.db.WithContext(ctx).Create(rd).Error; err != nil {
		return err
	}
	for _, fn := range r.subs {
		fn(ctx, *rd)
	}
	return nil
}

// Latest returns the most recent reading, or nil when the store is empty.
// Callers must check for nil instead of receiving a zero-value reading:
// "no data" and "glucose is zero" are very different things.
func (r *Repo) Latest(ctx context.Context) (*model.Reading, error) {
	var rd model.Reading
	err := r.db.WithContext(ctx).
		Clauses(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "ts"}, Desc: true},
			{Column: clause.Column{Name: "id"}, Desc: true},
		}}).
		First(&rd).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rd, nil
}

// Recent returns all readings with TS >= now - within, oldest first.
// The result is a snapshot slice, not a live cursor.
func (r *Repo) Recent(ctx context.Context, within time.Duration) ([]model.Reading, error) {
	cutoff := time.Now().UTC().Add(-within)
	var rows []model.Reading
	err := r.db.WithContext(ctx).
		Clauses(
			clause.Where{Exprs: []clause.Expression{
				clause.Gte{Column: clause.Column{Name: "ts"}, Value: cutoff},
			}},
			clause.OrderBy{Columns: []clause.OrderByColumn{
				{Column: clause.Column{Name: "ts"}},
				{Column: clause.Column{Name: "id"}},
			}},
		).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Exists reports whether a reading with this exact (timestamp, value) pair
// is already stored. The sync adapter uses it to deduplicate re-read
// foreign records.
func (r *Repo) Exists(ctx context.Context, ts time.Time, value float64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Reading{}).
		Where(map[string]any{"ts": ts, "value": value}).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
