package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TrendCategory is the five-way directional classification of glucose change.
type TrendCategory string

const (
	TrendRapidlyRising  TrendCategory = "RapidlyRising"
	TrendRising         TrendCategory = "Rising"
	TrendStable         TrendCategory = "Stable"
	TrendFalling        TrendCategory = "Falling"
	TrendRapidlyFalling TrendCategory = "RapidlyFalling"
)

func (t TrendCategory) Valid() bool {
	switch t {
	case TrendRapidlyRising, TrendRising, TrendStable, TrendFalling, TrendRapidlyFalling:
		return true
	}
	return false
}

// Reading is one glucose measurement. Readings are immutable once stored;
// later data supersedes rather than updates them.
type Reading struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Source     string         `gorm:"index:idx_source_ts,priority:1" json:"source"`
	TS         time.Time      `gorm:"index:idx_source_ts,priority:2" json:"ts"`
	Value      float64        `json:"value"` // mmol/L
	Trend      TrendCategory  `json:"trend"`
	Raw        datatypes.JSON `json:"raw,omitempty"` // foreign record as read, for provenance
	IngestedAt time.Time      `json:"ingested_at"`
}
