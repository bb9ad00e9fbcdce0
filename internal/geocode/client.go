// Package geocode converts street addresses to coordinates using a Google
// Maps style Geocoding API. The service is good at correcting street names
// garbled by speech-to-text, which is why the dialog layer reads back the
// returned formatted address for confirmation instead of the raw utterance.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// ErrNoResults is returned when the geocoder recognises the request but finds
// no matching location.
var ErrNoResults = errors.New("geocode: no results for address")

// Result is one geocoded address.
type Result struct {
	Lat float64
	Lon float64

	// FormattedAddress is the service's normalised rendering of the input,
	// with any trailing ", USA" removed.
	FormattedAddress string
}

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for geocoding requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpc = hc
	}
}

// Client calls the geocoding API. Stateless and safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewClient creates a geocoding client. baseURL is the API endpoint up to and
// excluding the output-format path element (e.g.
// "https://maps.googleapis.com/maps/api/geocode").
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type geocodeResponse struct {
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	Status string `json:"status"`
}

// Geocode resolves an address string to coordinates and a normalised address.
// Returns [ErrNoResults] when the service finds nothing.
func (c *Client) Geocode(ctx context.Context, address string) (Result, error) {
	q := url.Values{}
	q.Set("address", address)
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	reqURL := c.baseURL + "/json?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("geocode: build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("geocode: unexpected status %s", resp.Status)
	}

	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("geocode: decode response: %w", err)
	}

	if len(body.Results) == 0 {
		return Result{}, fmt.Errorf("%w: %q (status %s)", ErrNoResults, address, body.Status)
	}

	first := body.Results[0]
	formatted := strings.TrimSuffix(first.FormattedAddress, ", USA")

	return Result{
		Lat:              first.Geometry.Location.Lat,
		Lon:              first.Geometry.Location.Lng,
		FormattedAddress: formatted,
	}, nil
}
