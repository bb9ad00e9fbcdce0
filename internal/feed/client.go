// Package feed fetches the station directory from a GBFS-style bikeshare
// feed. Each call re-reads the full directory: the discovery document is
// fetched first to locate the station_information and station_status
// sub-feeds, both sub-feeds are fetched in parallel, and the results are
// merged into one record per station. Nothing is cached between calls.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rowanvale/wheelhouse/internal/station"
)

const (
	feedStationInformation = "station_information"
	feedStationStatus      = "station_status"

	defaultLanguage = "en"
	defaultTimeout  = 10 * time.Second
)

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for all feed requests.
// Useful in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpc = hc
	}
}

// WithLanguage selects the feed language block in the discovery document.
// Default: "en".
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// Client reads a GBFS discovery document and its sub-feeds. It is stateless
// apart from configuration and safe for concurrent use.
type Client struct {
	discoveryURL string
	language     string
	httpc        *http.Client
}

// NewClient creates a feed client for the given GBFS discovery URL.
func NewClient(discoveryURL string, opts ...Option) *Client {
	c := &Client{
		discoveryURL: discoveryURL,
		language:     defaultLanguage,
		httpc:        &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// flexBool accepts both JSON booleans and the 0/1 integers that older GBFS
// versions (and several production feeds) emit for the is_* status flags.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true", "1":
		*b = true
	case "false", "0", "null":
		*b = false
	default:
		return fmt.Errorf("feed: cannot parse %q as boolean flag", data)
	}
	return nil
}

// Wire shapes for the three documents we read.

type discoveryDoc struct {
	Data map[string]struct {
		Feeds []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"feeds"`
	} `json:"data"`
}

type informationDoc struct {
	Data struct {
		Stations []struct {
			StationID   string  `json:"station_id"`
			Name        string  `json:"name"`
			Address     string  `json:"address"`
			CrossStreet string  `json:"cross_street"`
			Lat         float64 `json:"lat"`
			Lon         float64 `json:"lon"`
		} `json:"stations"`
	} `json:"data"`
}

type statusDoc struct {
	Data struct {
		Stations []struct {
			StationID string `json:"station_id"`
			// num_ebikes_available is not part of the GBFS spec but appears
			// in several network feeds; it counts toward available bikes.
			BikesAvailable  int      `json:"num_bikes_available"`
			EbikesAvailable int      `json:"num_ebikes_available"`
			DocksAvailable  int      `json:"num_docks_available"`
			Installed       flexBool `json:"is_installed"`
			Renting         flexBool `json:"is_renting"`
			Returning       flexBool `json:"is_returning"`
		} `json:"stations"`
	} `json:"data"`
}

// FetchDirectory returns the full station directory, one record per station
// present in both the information and status sub-feeds. Stations reported in
// the status feed without a matching information entry are skipped.
func (c *Client) FetchDirectory(ctx context.Context) ([]station.Record, error) {
	feeds, err := c.feedURLs(ctx)
	if err != nil {
		return nil, err
	}

	infoURL, ok := feeds[feedStationInformation]
	if !ok {
		return nil, fmt.Errorf("feed: discovery document has no %s feed", feedStationInformation)
	}
	statusURL, ok := feeds[feedStationStatus]
	if !ok {
		return nil, fmt.Errorf("feed: discovery document has no %s feed", feedStationStatus)
	}

	// The two sub-feeds are independent; fetch them in parallel.
	var (
		info informationDoc
		stat statusDoc
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return c.getJSON(egCtx, infoURL, &info)
	})
	eg.Go(func() error {
		return c.getJSON(egCtx, statusURL, &stat)
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return merge(info, stat), nil
}

// Ping fetches the discovery document only. Used by readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	var doc discoveryDoc
	return c.getJSON(ctx, c.discoveryURL, &doc)
}

// feedURLs reads the discovery document and returns the sub-feed URLs for the
// configured language.
func (c *Client) feedURLs(ctx context.Context) (map[string]string, error) {
	var doc discoveryDoc
	if err := c.getJSON(ctx, c.discoveryURL, &doc); err != nil {
		return nil, err
	}

	lang, ok := doc.Data[c.language]
	if !ok {
		return nil, fmt.Errorf("feed: discovery document has no %q language block", c.language)
	}

	urls := make(map[string]string, len(lang.Feeds))
	for _, f := range lang.Feeds {
		urls[f.Name] = f.URL
	}
	return urls, nil
}

// merge joins the information and status feeds by station_id.
func merge(info informationDoc, stat statusDoc) []station.Record {
	byID := make(map[string]int, len(info.Data.Stations))
	for i, s := range info.Data.Stations {
		byID[s.StationID] = i
	}

	records := make([]station.Record, 0, len(stat.Data.Stations))
	for _, st := range stat.Data.Stations {
		i, ok := byID[st.StationID]
		if !ok {
			slog.Debug("feed: status entry without information entry", "station_id", st.StationID)
			continue
		}
		in := info.Data.Stations[i]
		records = append(records, station.Record{
			ID:             st.StationID,
			Name:           in.Name,
			Address:        in.Address,
			CrossStreet:    in.CrossStreet,
			Lat:            in.Lat,
			Lon:            in.Lon,
			Installed:      bool(st.Installed),
			Renting:        bool(st.Renting),
			Returning:      bool(st.Returning),
			BikesAvailable: st.BikesAvailable + st.EbikesAvailable,
			DocksAvailable: st.DocksAvailable,
		})
	}
	return records
}

// getJSON fetches url and decodes the response body into dst.
func (c *Client) getJSON(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("feed: build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("feed: get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("feed: get %s: unexpected status %s", url, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("feed: decode %s: %w", url, err)
	}
	return nil
}
