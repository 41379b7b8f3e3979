// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package geocode resolves city/state/country to coordinates using a
// Nominatim-compatible search API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

var (
	// ErrNotFound is returned when the service knows no such place.
	ErrNotFound = errors.New("location not found")
	// ErrDisabled is returned when no geocoder URL is configured.
	ErrDisabled = errors.New("geocoding disabled")
)

// Coordinates is a resolved position.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	UserAgent string
	// Timeout bounds a single lookup attempt.
	Timeout time.Duration
	// RetryDelay is the pause before the single retry after a timeout.
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// Client performs lookups. A timed out attempt is retried exactly once.
type Client struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	retryDelay time.Duration
	http       *http.Client
}

// New creates a Client. An empty BaseURL yields a client that always
// returns ErrDisabled.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 100 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "ballot"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		timeout:    opts.Timeout,
		retryDelay: opts.RetryDelay,
		http:       opts.HTTPClient,
	}
}

// Resolve looks up the coordinates of a place.
func (c *Client) Resolve(ctx context.Context, city, state, country string) (*Coordinates, error) {
	if c.baseURL == "" {
		return nil, ErrDisabled
	}

	query := strings.Join([]string{city, state, country}, ", ")
	var coords *Coordinates

	backoff := retry.WithMaxRetries(1, retry.NewConstant(c.retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, err := c.lookup(ctx, query)
		if err != nil {
			if isTimeout(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		coords = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return coords, nil
}

type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (c *Client) lookup(ctx context.Context, query string) (*Coordinates, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode request: unexpected status %d", resp.StatusCode)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("geocode response: %w", err)
	}
	if len(places) == 0 {
		return nil, ErrNotFound
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode longitude: %w", err)
	}
	return &Coordinates{Latitude: lat, Longitude: lon}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
