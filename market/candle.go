package market

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the candle time-bucket size. The values are the tokens the
// OANDA candles endpoint expects.
type Granularity string

const (
	Daily   Granularity = "D"
	Weekly  Granularity = "W"
	Monthly Granularity = "M"
)

// Granularities is every supported granularity, in default sync order.
var Granularities = []Granularity{Daily, Weekly, Monthly}

// ParseGranularity accepts the provider token ("D") or a spelled-out name
// ("daily"), case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "D", "DAILY":
		return Daily, nil
	case "W", "WEEKLY":
		return Weekly, nil
	case "M", "MONTHLY":
		return Monthly, nil
	}
	return "", fmt.Errorf("unknown granularity %q (want D, W or M)", s)
}

func (g Granularity) String() string { return string(g) }

// Candle is one OHLCV record for a fixed time period.
//
// (Instrument, Granularity, Time) is the unique key. A candle is immutable
// once Complete; an incomplete candle may legitimately be overwritten by a
// later, corrected read of the same key.
type Candle struct {
	Instrument  string
	Granularity Granularity
	Time        time.Time // UTC, aligned to the granularity boundary by the provider
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      int64
	Complete    bool
}
