package types

import (
	"time"

	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

// Timeframe identifies a bar interval, using exchange notation.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

var timeframeDurations = map[Timeframe]time.Duration{
	Timeframe1m:  time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe30m: 30 * time.Minute,
	Timeframe1h:  time.Hour,
	Timeframe4h:  4 * time.Hour,
	Timeframe1d:  24 * time.Hour,
}

// ParseTimeframe validates a timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := timeframeDurations[tf]; !ok {
		return "", errors.Newf(errors.ErrCodeInvalidTimeframe, "unsupported timeframe %q", s)
	}

	return tf, nil
}

// Duration returns the bar length, or zero for an unknown timeframe.
func (t Timeframe) Duration() time.Duration {
	return timeframeDurations[t]
}

// Horizon groups timeframes by how far they look.
type Horizon string

const (
	HorizonShort  Horizon = "short_term"
	HorizonMedium Horizon = "medium_term"
	HorizonLong   Horizon = "long_term"
)
