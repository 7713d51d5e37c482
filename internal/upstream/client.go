package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Leganyst/platform-tracker/internal/departure"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultRetryWait = 500 * time.Millisecond
	maxBodyInError   = 256
)

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	// Extra attempts after a transport error or 5xx answer.
	Retries   int
	RetryWait time.Duration
}

// Client fetches the departure feed.
type Client struct {
	url  string
	http *resty.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("upstream url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = defaultRetryWait
	}

	rc := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(max(cfg.Retries, 0)).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(4*cfg.RetryWait).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.APIKey != "" {
		rc.SetAuthToken(cfg.APIKey)
	}

	return &Client{url: cfg.URL, http: rc}, nil
}

// feedEnvelope is the wrapped form of the feed; a bare array is accepted too.
type feedEnvelope struct {
	Departures []departure.RawUpdate `json:"departures"`
}

// Fetch returns the current departures. Every failure wraps
// departure.ErrUpstreamUnavailable and yields no updates.
func (c *Client) Fetch(ctx context.Context) ([]departure.RawUpdate, error) {
	resp, err := c.http.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", departure.ErrUpstreamUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d: %s",
			departure.ErrUpstreamUnavailable, resp.StatusCode(), truncate(resp.String()))
	}

	updates, err := decode(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: decode feed: %w", departure.ErrUpstreamUnavailable, err)
	}
	return updates, nil
}

func decode(body []byte) ([]departure.RawUpdate, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}

	if body[0] == '[' {
		var updates []departure.RawUpdate
		if err := json.Unmarshal(body, &updates); err != nil {
			return nil, err
		}
		return updates, nil
	}

	var env feedEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if env.Departures == nil {
		return nil, errors.New(`missing "departures"`)
	}
	return env.Departures, nil
}

func truncate(s string) string {
	if len(s) <= maxBodyInError {
		return s
	}
	return s[:maxBodyInError] + "..."
}
