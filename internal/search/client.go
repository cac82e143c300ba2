// Package search queries a Nominatim-compatible /search endpoint and returns
// candidate places with full address details for downstream validation.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// ErrTimeout marks a search request that exceeded the HTTP timeout.
var ErrTimeout = errors.New("search: request timeout")

const (
	defaultTimeout   = 5 * time.Second
	defaultUserAgent = "geocode-cli/1.0 (local)"
	defaultLimit     = 10
)

// Address is the addressdetails block of a Nominatim JSONv2 candidate.
// Only the keys the validator and resolver consume are mapped.
type Address struct {
	HouseNumber string `json:"house_number"`
	Road        string `json:"road"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	Suburb      string `json:"suburb"`
	County      string `json:"county"`
	State       string `json:"state"`
	StateCode   string `json:"state_code"`
	ISO3166Lvl4 string `json:"ISO3166-2-lvl4"`
	ISO3166Lvl6 string `json:"ISO3166-2-lvl6"`
	Postcode    string `json:"postcode"`
	Country     string `json:"country"`
}

// CityLevel returns the first non-empty city-level component.
func (a Address) CityLevel() string {
	for _, v := range []string{a.City, a.Town, a.Village} {
		if v != "" {
			return v
		}
	}
	return ""
}

// StateValue returns the state using the same key precedence Nominatim
// populates: state, then state_code, then the ISO3166-2 levels.
func (a Address) StateValue() string {
	for _, v := range []string{a.State, a.StateCode, a.ISO3166Lvl4, a.ISO3166Lvl6} {
		if v != "" {
			return v
		}
	}
	return ""
}

// Candidate is one Nominatim JSONv2 search result. Lat/Lon stay strings to
// round-trip the service's coordinate precision unchanged.
type Candidate struct {
	PlaceID     int64    `json:"place_id"`
	OSMType     string   `json:"osm_type"`
	OSMID       int64    `json:"osm_id"`
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	Class       string   `json:"class"`
	Type        string   `json:"type"`
	AddressType string   `json:"addresstype"`
	PlaceRank   *int     `json:"place_rank"`
	Importance  float64  `json:"importance"`
	DisplayName string   `json:"display_name"`
	BoundingBox []string `json:"boundingbox"`
	Address     Address  `json:"address"`
}

// Option configures the search client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit for search calls.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLimit sets the maximum number of candidates requested per search.
func WithLimit(n int) Option {
	return func(c *Client) {
		c.limit = n
	}
}

// Client talks to a Nominatim /search endpoint.
type Client struct {
	baseURL    string
	userAgent  string
	limit      int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a search client for the given /search base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		userAgent:  defaultUserAgent,
		limit:      defaultLimit,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query is one search request.
type Query struct {
	// Text is the free-form "q" parameter.
	Text string
	// CountryCodes restricts results, e.g. "us". Empty means unrestricted.
	CountryCodes string
}

// Search runs one query and returns the candidate list in service order.
// An empty list with a nil error means the service answered with no results.
func (c *Client) Search(ctx context.Context, q Query) ([]Candidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "search: rate limit")
	}

	params := url.Values{
		"q":              {q.Text},
		"format":         {"json"},
		"addressdetails": {"1"},
		"limit":          {strconv.Itoa(c.limit)},
	}
	if q.CountryCodes != "" {
		params.Set("countrycodes", q.CountryCodes)
	}

	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "search: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, eris.Wrap(ErrTimeout, "search: request")
		}
		return nil, eris.Wrap(err, "search: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("search: service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "search: read body")
	}

	var candidates []Candidate
	if err := json.Unmarshal(body, &candidates); err != nil {
		return nil, eris.Wrap(err, "search: parse response")
	}
	return candidates, nil
}

// isTimeout reports whether an HTTP error is a deadline or network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}
