package oanda

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rustyeddy/candlesync/market"
)

// candleData represents one OHLC set in the API response
type candleData struct {
	O string `json:"o"` // Open price
	H string `json:"h"` // High price
	L string `json:"l"` // Low price
	C string `json:"c"` // Close price
}

// apiCandle represents a single candle in the API response
type apiCandle struct {
	Complete bool        `json:"complete"`
	Volume   int64       `json:"volume"`
	Time     string      `json:"time"`
	Mid      *candleData `json:"mid,omitempty"`
}

// normalize converts a provider candle record into the canonical
// representation. The provider's timestamp is trusted to be aligned to the
// granularity boundary; it is parsed and converted to UTC but not re-derived.
//
// A missing timestamp or price set, an unparseable field, or high < low all
// return ErrMalformedRecord. That failure is scoped to the one record.
func normalize(ac apiCandle, instrument string, g market.Granularity) (market.Candle, error) {
	ts, err := time.Parse(time.RFC3339, ac.Time)
	if err != nil {
		return market.Candle{}, fmt.Errorf("%w: bad time %q: %v", ErrMalformedRecord, ac.Time, err)
	}

	if ac.Mid == nil {
		return market.Candle{}, fmt.Errorf("%w: missing mid prices at %s", ErrMalformedRecord, ac.Time)
	}

	open, err := strconv.ParseFloat(ac.Mid.O, 64)
	if err != nil {
		return market.Candle{}, fmt.Errorf("%w: bad open %q", ErrMalformedRecord, ac.Mid.O)
	}
	high, err := strconv.ParseFloat(ac.Mid.H, 64)
	if err != nil {
		return market.Candle{}, fmt.Errorf("%w: bad high %q", ErrMalformedRecord, ac.Mid.H)
	}
	low, err := strconv.ParseFloat(ac.Mid.L, 64)
	if err != nil {
		return market.Candle{}, fmt.Errorf("%w: bad low %q", ErrMalformedRecord, ac.Mid.L)
	}
	closeP, err := strconv.ParseFloat(ac.Mid.C, 64)
	if err != nil {
		return market.Candle{}, fmt.Errorf("%w: bad close %q", ErrMalformedRecord, ac.Mid.C)
	}

	if high < low {
		return market.Candle{}, fmt.Errorf("%w: high %v < low %v at %s", ErrMalformedRecord, high, low, ac.Time)
	}

	return market.Candle{
		Instrument:  instrument,
		Granularity: g,
		Time:        ts.UTC(),
		Open:        open,
		High:        high,
		Low:         low,
		Close:       closeP,
		Volume:      ac.Volume,
		Complete:    ac.Complete,
	}, nil
}
