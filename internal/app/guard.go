package app

import (
	"context"
	"errors"

	"github.com/rowanvale/wheelhouse/internal/dialog"
	"github.com/rowanvale/wheelhouse/internal/geocode"
	"github.com/rowanvale/wheelhouse/internal/resilience"
	"github.com/rowanvale/wheelhouse/internal/station"
)

// guardedFeed wraps a station feed with a circuit breaker so repeated feed
// outages fail turns immediately instead of each waiting out an HTTP timeout.
type guardedFeed struct {
	inner   dialog.DirectorySource
	breaker *resilience.Breaker
}

var _ dialog.DirectorySource = (*guardedFeed)(nil)

func guardFeed(inner dialog.DirectorySource) *guardedFeed {
	return &guardedFeed{
		inner:   inner,
		breaker: resilience.NewBreaker(resilience.Settings{Name: "feed"}),
	}
}

func (g *guardedFeed) FetchDirectory(ctx context.Context) ([]station.Record, error) {
	var directory []station.Record
	err := g.breaker.Do(func() error {
		var innerErr error
		directory, innerErr = g.inner.FetchDirectory(ctx)
		return innerErr
	})
	return directory, err
}

// guardedGeocoder is the same wrapper for the geocoding API.
type guardedGeocoder struct {
	inner   dialog.Geocoder
	breaker *resilience.Breaker
}

var _ dialog.Geocoder = (*guardedGeocoder)(nil)

func guardGeocoder(inner dialog.Geocoder) *guardedGeocoder {
	return &guardedGeocoder{
		inner:   inner,
		breaker: resilience.NewBreaker(resilience.Settings{Name: "geocoder"}),
	}
}

func (g *guardedGeocoder) Geocode(ctx context.Context, address string) (geocode.Result, error) {
	var (
		res       geocode.Result
		noResults error
	)
	err := g.breaker.Do(func() error {
		var innerErr error
		res, innerErr = g.inner.Geocode(ctx, address)
		// An address the service cannot resolve is a healthy response, not
		// an outage; it must not count toward opening the breaker.
		if errors.Is(innerErr, geocode.ErrNoResults) {
			noResults = innerErr
			return nil
		}
		return innerErr
	})
	if err == nil && noResults != nil {
		return res, noResults
	}
	return res, err
}
