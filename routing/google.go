// Package routing wraps the Google Maps commute services: transit
// itineraries via the Directions API and driving durations via the Distance
// Matrix API.
package routing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"googlemaps.github.io/maps"
)

// ErrNoRoute is returned when the service answers successfully but finds no
// itinerary between origin and destination.
var ErrNoRoute = errors.New("routing: no itinerary found")

// Service is the commute-duration contract the enricher depends on. Both
// methods return whole minutes.
type Service interface {
	TransitMinutes(ctx context.Context, origin, destination string, departure time.Time) (int, error)
	DrivingMinutes(ctx context.Context, origin, destination string, departure time.Time) (int, error)
}

// Client answers commute queries through the official Maps client.
type Client struct {
	maps *maps.Client
}

// New creates a routing client. A non-empty baseURL overrides the live
// endpoint, for tests.
func New(apiKey, baseURL string) (*Client, error) {
	opts := []maps.ClientOption{
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(&http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}),
	}
	if baseURL != "" {
		opts = append(opts, maps.WithBaseURL(baseURL))
	}

	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("routing: client: %w", err)
	}
	return &Client{maps: mc}, nil
}

// TransitMinutes requests a public-transport itinerary departing at the
// given time and returns its duration in minutes.
func (c *Client) TransitMinutes(ctx context.Context, origin, destination string, departure time.Time) (int, error) {
	routes, _, err := c.maps.Directions(ctx, &maps.DirectionsRequest{
		Origin:        origin,
		Destination:   destination,
		Mode:          maps.TravelModeTransit,
		DepartureTime: strconv.FormatInt(departure.Unix(), 10),
	})
	if err != nil {
		return 0, fmt.Errorf("routing: directions: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, ErrNoRoute
	}
	return roundMinutes(routes[0].Legs[0].Duration), nil
}

// DrivingMinutes requests a driving duration with best-guess traffic for the
// given departure time and returns it in minutes.
func (c *Client) DrivingMinutes(ctx context.Context, origin, destination string, departure time.Time) (int, error) {
	resp, err := c.maps.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:       []string{origin},
		Destinations:  []string{destination},
		Mode:          maps.TravelModeDriving,
		DepartureTime: strconv.FormatInt(departure.Unix(), 10),
		TrafficModel:  maps.TrafficModelBestGuess,
	})
	if err != nil {
		return 0, fmt.Errorf("routing: distance matrix: %w", err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, ErrNoRoute
	}

	elem := resp.Rows[0].Elements[0]
	if elem.Status != "OK" {
		return 0, ErrNoRoute
	}
	d := elem.Duration
	if elem.DurationInTraffic > 0 {
		d = elem.DurationInTraffic
	}
	return roundMinutes(d), nil
}

func roundMinutes(d time.Duration) int {
	return int(d.Minutes() + 0.5)
}

// NextMorningDeparture returns 08:30 local time on the following calendar
// day, the fixed departure every commute request uses.
func NextMorningDeparture(now time.Time) time.Time {
	next := now.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), 8, 30, 0, 0, now.Location())
}
