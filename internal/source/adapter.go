package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"glucose-bridge/internal/model"
	"glucose-bridge/internal/store"
	"glucose-bridge/internal/trend"

	"github.com/robfig/cron/v3"
	"gorm.io/datatypes"
)

// Source label attached to readings ingested from the companion app, as
// opposed to manual entries.
const SourceLibreLink = "librelink"

// Adapter runs the recurring foreign-source sync: read a batch, skip the
// junk, deduplicate, classify, append.
type Adapter struct {
	reader         ForeignReader
	repo           *store.Repo
	thresholds     trend.Thresholds
	sampleInterval time.Duration
	every          time.Duration

	cron *cron.Cron

	// mu keeps ticks from overlapping if a read runs long.
	mu sync.Mutex
}

func New(reader ForeignReader, repo *store.Repo, th trend.Thresholds, sampleInterval, every time.Duration) *Adapter {
	if sampleInterval <= 0 {
		sampleInterval = time.Minute
	}
	if every <= 0 {
		every = time.Minute
	}
	return &Adapter{
		reader:         reader,
		repo:           repo,
		thresholds:     th,
		sampleInterval: sampleInterval,
		every:          every,
	}
}

// Start schedules the recurring sync. A failing tick is logged and retried
// on the next one; it never takes the process down.
func (a *Adapter) Start(ctx context.Context) error {
	a.cron = cron.New()
	_, err := a.cron.AddFunc(fmt.Sprintf("@every %s", a.every), func() {
		n, err := a.RunOnce(ctx)
		if err != nil {
			slog.Warn("glucose sync tick failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("glucose sync tick", "ingested", n)
		}
	})
	if err != nil {
		return err
	}
	a.cron.Start()
	slog.Info("glucose sync scheduled", "every", a.every)
	return nil
}

// Stop cancels the schedule and waits for any in-flight tick to finish,
// so shutdown never strands a half-applied batch.
func (a *Adapter) Stop() {
	if a.cron == nil {
		return
	}
	<-a.cron.Stop().Done()
}

// RunOnce performs one sync pass and returns how many readings were
// appended. Malformed records are skipped individually; one bad row never
// aborts the batch.
func (a *Adapter) RunOnce(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	batch, err := a.reader.ReadBatch(ctx)
	if err != nil {
		return 0, err
	}

	ingested := 0
	for i, rec := range batch {
		rd, err := a.normalize(i, rec)
		if err != nil {
			slog.Warn("skipping malformed foreign record", "error", err)
			continue
		}
		dup, err := a.repo.Exists(ctx, rd.TS, rd.Value)
		if err != nil {
			return ingested, err
		}
		if dup {
			continue
		}
		if err := a.repo.Append(ctx, rd); err != nil {
			slog.Warn("append from foreign source failed", "ts", rd.TS, "error", err)
			continue
		}
		ingested++
	}
	return ingested, nil
}

func (a *Adapter) normalize(row int, rec RawRecord) (*model.Reading, error) {
	if rec.TS.IsZero() {
		return nil, &ParseError{Row: row, Reason: "missing timestamp"}
	}
	if rec.Value <= 0 {
		return nil, &ParseError{Row: row, Reason: fmt.Sprintf("non-positive value %v", rec.Value)}
	}
	return &model.Reading{
		Source: SourceLibreLink,
		TS:     rec.TS.UTC(),
		Value:  rec.Value,
		Trend:  trend.Classify(rec.Value, rec.Previous, a.sampleInterval, a.thresholds),
		Raw:    datatypes.JSON(rec.Raw),
	}, nil
}
