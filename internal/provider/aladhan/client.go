// Package aladhan fetches daily prayer timings from the AlAdhan API
// and keeps the engine's timetable fresh.
package aladhan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

const (
	DefaultBaseURL = "https://api.aladhan.com"
	DefaultMethod  = 2 // ISNA
	defaultTimeout = 15 * time.Second
)

// Client is a thin wrapper over the AlAdhan timings endpoint.
type Client struct {
	baseURL string
	method  int
	http    *http.Client
	log     logx.Logger
}

type ClientConfig struct {
	BaseURL string
	Method  int
	Timeout time.Duration
}

func NewClient(cfg ClientConfig, log logx.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Method <= 0 {
		cfg.Method = DefaultMethod
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		method:  cfg.Method,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log.With(logx.String("svc", "aladhan")),
	}
}

// Timings is one day of raw provider output.
type Timings struct {
	// Raw anchor name to "HH:MM" (possibly with a timezone suffix).
	Times map[string]string
	// IANA timezone reported by the provider, e.g. "Africa/Casablanca".
	Timezone string
	// Date the timings are for, per the provider.
	Date string
}

type timingsResponse struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   struct {
		Timings map[string]string `json:"timings"`
		Date    struct {
			Gregorian struct {
				Date string `json:"date"` // DD-MM-YYYY
			} `json:"gregorian"`
		} `json:"date"`
		Meta struct {
			Timezone string `json:"timezone"`
		} `json:"meta"`
	} `json:"data"`
}

// FetchDay retrieves the timings for the day containing ts at the given
// coordinates.
func (c *Client) FetchDay(ctx context.Context, ts time.Time, lat, lon float64) (*Timings, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("method", strconv.Itoa(c.method))
	endpoint := fmt.Sprintf("%s/v1/timings/%d?%s", c.baseURL, ts.Unix(), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aladhan request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("aladhan: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed timingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("aladhan: decode response: %w", err)
	}
	if parsed.Code != 200 {
		return nil, fmt.Errorf("aladhan: api code %d (%s)", parsed.Code, parsed.Status)
	}
	if len(parsed.Data.Timings) == 0 {
		return nil, fmt.Errorf("aladhan: empty timings")
	}

	c.log.Debug("timings fetched",
		logx.String("tz", parsed.Data.Meta.Timezone),
		logx.Duration("took", time.Since(start)))

	return &Timings{
		Times:    parsed.Data.Timings,
		Timezone: parsed.Data.Meta.Timezone,
		Date:     parsed.Data.Date.Gregorian.Date,
	}, nil
}
