// Package trend classifies glucose rate-of-change into the five trend
// categories the rest of the pipeline (and the watch arrows) rely on.
package trend

import (
	"time"

	"glucose-bridge/internal/model"
)

// Thresholds are rate-of-change boundaries in mmol/L per minute. Rise and
// fall are configured separately so asymmetric targets are possible; all
// values are positive magnitudes.
type Thresholds struct {
	SteepRise float64
	MildRise  float64
	MildFall  float64
	SteepFall float64
}

// DefaultThresholds follows common CGM rate-of-change conventions:
// "rapid" at 0.1 mmol/L/min and a mild slope at 0.02 mmol/L/min.
func DefaultThresholds() Thresholds {
	return Thresholds{SteepRise: 0.1, MildRise: 0.02, MildFall: 0.02, SteepFall: 0.1}
}

// Classify buckets the change from previous to current over the sampling
// interval. With no previous value there is no rate to compute, so the
// result is Stable by policy, not an error. The function is pure: same
// inputs, same category, no side effects.
func Classify(current float64, previous *float64, interval time.Duration, th Thresholds) model.TrendCategory {
	if previous == nil {
		return model.TrendStable
	}
	if interval <= 0 {
		interval = time.Minute
	}
	rate := (current - *previous) / interval.Minutes()
	switch {
	case rate >= th.SteepRise:
		return model.TrendRapidlyRising
	case rate >= th.MildRise:
		return model.TrendRising
	case rate <= -th.SteepFall:
		return model.TrendRapidlyFalling
	case rate <= -th.MildFall:
		return model.TrendFalling
	default:
		return model.TrendStable
	}
}
