package model

import (
	"fmt"
	"strings"
	"time"
)

var timeRanges = map[string]time.Duration{
	"3h":  3 * time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"24h": 24 * time.Hour,
}

// ParseTimeRange maps the dashboard range labels to durations. Only the
// four labels the UI offers are accepted.
func ParseTimeRange(s string) (time.Duration, error) {
	d, ok := timeRanges[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("invalid range %q (want 3h, 6h, 12h or 24h)", s)
	}
	return d, nil
}
