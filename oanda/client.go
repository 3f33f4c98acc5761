package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// PracticeURL is the host for OANDA's practice/demo environment
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is the host for OANDA's live trading environment
	LiveURL = "https://api-fxtrade.oanda.com"

	// PageSize is the provider-imposed cap on candles per request. A response
	// carrying fewer records than this signals end-of-data.
	PageSize = 500
)

const (
	defaultMaxAttempts = 4
	defaultBaseBackoff = 500 * time.Millisecond
	maxBackoff         = 15 * time.Second
)

// BaseURL resolves an environment name to an API host.
func BaseURL(env string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "live":
		return LiveURL, nil
	case "practice":
		return PracticeURL, nil
	}
	return "", fmt.Errorf("unknown oanda environment %q (want practice or live)", env)
}

// Client is an OANDA v3 REST client scoped to one account credential.
//
// A single rate limiter is shared by every request the client makes, so
// concurrent jobs collectively respect the provider's rate limit.
type Client struct {
	BaseURL   string
	Token     string
	AccountID string

	HTTP    *http.Client
	Limiter *rate.Limiter
	Logger  *slog.Logger

	// MaxAttempts is the per-page retry ceiling, including the first try.
	MaxAttempts int
	// BaseBackoff is the delay before the first retry; it doubles per attempt.
	BaseBackoff time.Duration
}

// NewClient returns a client for the given credential pair against the live
// or practice environment.
func NewClient(token, accountID string, practice bool) *Client {
	baseURL := LiveURL
	if practice {
		baseURL = PracticeURL
	}

	return &Client{
		BaseURL:   baseURL,
		Token:     token,
		AccountID: accountID,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		Limiter:   rate.NewLimiter(rate.Every(100*time.Millisecond), 2),
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Client) maxAttempts() int {
	if c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return defaultMaxAttempts
}

func (c *Client) baseBackoff() time.Duration {
	if c.BaseBackoff > 0 {
		return c.BaseBackoff
	}
	return defaultBaseBackoff
}

// getJSON performs one authenticated GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	if c.Token == "" {
		return fmt.Errorf("oanda: missing token")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("oanda: missing base url")
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: http %d: %s", ErrUnauthorized, resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// getJSONRetry wraps getJSON with bounded exponential backoff on transient
// failures. Exhausting the ceiling returns the last error wrapped in
// ErrUnavailable.
func (c *Client) getJSONRetry(ctx context.Context, url string, out any) error {
	backoff := c.baseBackoff()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts(); attempt++ {
		lastErr = c.getJSON(ctx, url, out)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || ctx.Err() != nil {
			return lastErr
		}
		if attempt == c.maxAttempts() {
			break
		}

		// Full-jitter sleep so hammered endpoints don't see lockstep retries.
		delay := backoff/2 + time.Duration(rand.Int63n(int64(backoff/2)+1))
		c.logger().Warn("oanda request failed, retrying",
			"attempt", attempt, "delay", delay, "error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	return fmt.Errorf("%w: %d attempts: %v", ErrUnavailable, c.maxAttempts(), lastErr)
}

type instrumentsResponse struct {
	Instruments []struct {
		Name string `json:"name"`
	} `json:"instruments"`
}

// Instruments returns the names of every instrument tradeable by the
// client's account.
func (c *Client) Instruments(ctx context.Context) ([]string, error) {
	if c.AccountID == "" {
		return nil, fmt.Errorf("oanda: missing account id")
	}

	url := fmt.Sprintf("%s/v3/accounts/%s/instruments", c.BaseURL, c.AccountID)

	var resp instrumentsResponse
	if err := c.getJSONRetry(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("fetch instruments: %w", err)
	}

	names := make([]string, 0, len(resp.Instruments))
	for _, inst := range resp.Instruments {
		names = append(names, inst.Name)
	}
	return names, nil
}
