package trend

import (
	"testing"
	"time"

	"glucose-bridge/internal/model"
)

func TestClassifyNoPreviousIsStable(t *testing.T) {
	for _, v := range []float64{0.1, 3.9, 5.6, 10.0, 25.0} {
		if got := Classify(v, nil, time.Minute, DefaultThresholds()); got != model.TrendStable {
			t.Fatalf("Classify(%v, nil) = %q, want Stable", v, got)
		}
	}
}

func TestClassifyBuckets(t *testing.T) {
	prev := 5.0
	cases := []struct {
		current float64
		want    model.TrendCategory
	}{
		{5.15, model.TrendRapidlyRising}, // +0.15 /min
		{5.05, model.TrendRising},        // +0.05 /min
		{5.01, model.TrendStable},        // +0.01 /min
		{5.00, model.TrendStable},
		{4.99, model.TrendStable},
		{4.95, model.TrendFalling},        // -0.05 /min
		{4.85, model.TrendRapidlyFalling}, // -0.15 /min
	}
	for _, tc := range cases {
		if got := Classify(tc.current, &prev, time.Minute, DefaultThresholds()); got != tc.want {
			t.Fatalf("Classify(%v, %v) = %q, want %q", tc.current, prev, got, tc.want)
		}
	}
}

func TestClassifyScalesWithInterval(t *testing.T) {
	prev := 5.0
	// +0.3 over 5 minutes is 0.06/min: a mild rise, not a rapid one.
	if got := Classify(5.3, &prev, 5*time.Minute, DefaultThresholds()); got != model.TrendRising {
		t.Fatalf("got %q, want Rising", got)
	}
	// The same delta over 1 minute is rapid.
	if got := Classify(5.3, &prev, time.Minute, DefaultThresholds()); got != model.TrendRapidlyRising {
		t.Fatalf("got %q, want RapidlyRising", got)
	}
}

func TestClassifyIsTotalAndDeterministic(t *testing.T) {
	th := DefaultThresholds()
	for delta := -0.5; delta <= 0.5; delta += 0.013 {
		prev := 6.0
		current := prev + delta
		first := Classify(current, &prev, time.Minute, th)
		if !first.Valid() {
			t.Fatalf("Classify(%v, %v) returned unknown category %q", current, prev, first)
		}
		for i := 0; i < 3; i++ {
			if again := Classify(current, &prev, time.Minute, th); again != first {
				t.Fatalf("Classify not deterministic for delta %v: %q then %q", delta, first, again)
			}
		}
	}
}

func TestClassifyNonPositiveIntervalDefaultsToMinute(t *testing.T) {
	prev := 5.0
	if got := Classify(5.15, &prev, 0, DefaultThresholds()); got != model.TrendRapidlyRising {
		t.Fatalf("got %q, want RapidlyRising", got)
	}
}
