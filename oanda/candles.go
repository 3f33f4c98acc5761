package oanda

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rustyeddy/candlesync/market"
)

type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []apiCandle `json:"candles"`
}

// fetchPage asks for at most PageSize candles starting at from (zero time
// means the oldest available history).
func (c *Client) fetchPage(ctx context.Context, instrument string, g market.Granularity, from time.Time) ([]apiCandle, error) {
	q := url.Values{}
	q.Set("price", "M")
	q.Set("granularity", string(g))
	q.Set("count", strconv.Itoa(PageSize))
	if !from.IsZero() {
		q.Set("from", strconv.FormatInt(from.Unix(), 10))
	}

	u := fmt.Sprintf("%s/v3/instruments/%s/candles?%s", c.BaseURL, instrument, q.Encode())

	var resp candlesResponse
	if err := c.getJSONRetry(ctx, u, &resp); err != nil {
		return nil, err
	}
	return resp.Candles, nil
}

// FetchHistory pages through every candle for one instrument/granularity
// pair, oldest to newest, from resume (zero = full available history) up to
// now.
//
// Records are yielded in strictly increasing timestamp order: any record at
// or before the last yielded timestamp is dropped rather than failing the
// page, which also swallows the boundary duplicate when a page's "from"
// cursor lands on the previous page's final candle. Records that fail
// normalization are logged and skipped.
//
// On a job-level failure (retry ceiling, auth) the candles collected before
// the failure are returned alongside the error so the caller can still
// persist partial progress.
func (c *Client) FetchHistory(ctx context.Context, instrument string, g market.Granularity, resume time.Time) ([]market.Candle, error) {
	if instrument == "" {
		return nil, fmt.Errorf("oanda: missing instrument")
	}

	log := c.logger().With("instrument", instrument, "granularity", g.String())

	var (
		candles []market.Candle
		cursor  = resume
		last    = resume // dedup watermark; resume itself is already stored
	)

	for page := 1; ; page++ {
		raw, err := c.fetchPage(ctx, instrument, g, cursor)
		if err != nil {
			return candles, fmt.Errorf("page %d: %w", page, err)
		}

		kept := 0
		for _, ac := range raw {
			cd, err := normalize(ac, instrument, g)
			if err != nil {
				log.Warn("dropping malformed candle record", "error", err)
				continue
			}
			// Defensive dedup against provider overlap.
			if !last.IsZero() && !cd.Time.After(last) {
				continue
			}
			candles = append(candles, cd)
			last = cd.Time
			kept++
		}

		log.Debug("fetched candle page", "page", page, "records", len(raw), "kept", kept)

		// A short page is the provider's end-of-data signal. This covers the
		// zero-record first page of a never-traded instrument, which is an
		// empty history, not an error.
		if len(raw) < PageSize {
			return candles, nil
		}

		// A full page that advanced the watermark nowhere would loop forever.
		if !last.After(cursor) {
			return candles, fmt.Errorf("page %d: %w: full page with no usable records", page, ErrUnavailable)
		}

		// The last yielded timestamp becomes the next page's start. The
		// provider treats "from" inclusively; the dedup watermark above drops
		// the repeated boundary record.
		cursor = last
	}
}
