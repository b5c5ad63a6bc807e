package relay

import (
	"encoding/json"

	"glucose-bridge/internal/model"
)

// watchPayload is the wearable's wire format. Field names are part of the
// watch-side contract; do not rename.
type watchPayload struct {
	Timestamp    int64   `json:"timestamp"` // unix millis
	GlucoseValue float64 `json:"glucoseValue"`
	TrendArrow   string  `json:"trendArrow"`
	Unit         string  `json:"unit"`
	IsHigh       bool    `json:"isHigh"`
	IsLow        bool    `json:"isLow"`
}

// trendArrow maps every trend category to a watch arrow glyph. NONE can
// only happen for a trend the classifier never produces.
func trendArrow(t model.TrendCategory) string {
	switch t {
	case model.TrendRapidlyRising:
		return "DOUBLE_UP"
	case model.TrendRising:
		return "SINGLE_UP"
	case model.TrendStable:
		return "FLAT"
	case model.TrendFalling:
		return "SINGLE_DOWN"
	case model.TrendRapidlyFalling:
		return "DOUBLE_DOWN"
	default:
		return "NONE"
	}
}

func marshalWatchPayload(rd model.Reading, high, low float64) ([]byte, error) {
	return json.Marshal(watchPayload{
		Timestamp:    rd.TS.UnixMilli(),
		GlucoseValue: rd.Value,
		TrendArrow:   trendArrow(rd.Trend),
		Unit:         "mmol/L",
		IsHigh:       rd.Value > high,
		IsLow:        rd.Value < low,
	})
}
