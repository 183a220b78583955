package routing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New("test-key", baseURL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestTransitMinutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/directions/json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("mode") != "transit" || q.Get("key") != "test-key" {
			t.Errorf("query = %v", q)
		}
		if q.Get("origin") == "" || q.Get("destination") == "" || q.Get("departure_time") == "" {
			t.Errorf("missing routing params: %v", q)
		}
		w.Write([]byte(`{"status":"OK","routes":[{"legs":[{"duration":{"value":2130}}]}]}`))
	}))
	defer srv.Close()

	minutes, err := newTestClient(t, srv.URL).TransitMinutes(context.Background(), "a", "b", time.Now())
	if err != nil {
		t.Fatalf("transit: %v", err)
	}
	if minutes != 36 {
		t.Errorf("minutes = %d; want 36 (2130s rounded)", minutes)
	}
}

func TestTransitMinutesNoItinerary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ZERO_RESULTS","routes":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).TransitMinutes(context.Background(), "a", "b", time.Now())
	if !errors.Is(err, ErrNoRoute) {
		t.Errorf("err = %v; want ErrNoRoute", err)
	}
}

func TestDrivingMinutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/distancematrix/json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("mode") != "driving" || q.Get("traffic_model") != "best_guess" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{"status":"OK","origin_addresses":["a"],"destination_addresses":["b"],` +
			`"rows":[{"elements":[{"status":"OK","duration":{"value":1500}}]}]}`))
	}))
	defer srv.Close()

	minutes, err := newTestClient(t, srv.URL).DrivingMinutes(context.Background(), "a", "b", time.Now())
	if err != nil {
		t.Fatalf("driving: %v", err)
	}
	if minutes != 25 {
		t.Errorf("minutes = %d; want 25", minutes)
	}
}

func TestDrivingMinutesPrefersTrafficDuration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","origin_addresses":["a"],"destination_addresses":["b"],` +
			`"rows":[{"elements":[{"status":"OK","duration":{"value":1500},"duration_in_traffic":{"value":1800}}]}]}`))
	}))
	defer srv.Close()

	minutes, err := newTestClient(t, srv.URL).DrivingMinutes(context.Background(), "a", "b", time.Now())
	if err != nil {
		t.Fatalf("driving: %v", err)
	}
	if minutes != 30 {
		t.Errorf("minutes = %d; want 30 (in-traffic duration)", minutes)
	}
}

func TestDrivingMinutesElementNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","origin_addresses":["a"],"destination_addresses":["b"],` +
			`"rows":[{"elements":[{"status":"NOT_FOUND"}]}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).DrivingMinutes(context.Background(), "a", "b", time.Now())
	if !errors.Is(err, ErrNoRoute) {
		t.Errorf("err = %v; want ErrNoRoute", err)
	}
}

func TestDeniedRequestIsNotNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"key invalid","routes":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).TransitMinutes(context.Background(), "a", "b", time.Now())
	if err == nil {
		t.Fatal("expected error on denied request")
	}
	if errors.Is(err, ErrNoRoute) {
		t.Error("service failure must not be reported as no-route")
	}
}

func TestRoundMinutes(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{29 * time.Second, 0},
		{30 * time.Second, 1},
		{60 * time.Second, 1},
		{90 * time.Second, 2},
		{2130 * time.Second, 36},
	}
	for _, tt := range tests {
		if got := roundMinutes(tt.d); got != tt.want {
			t.Errorf("roundMinutes(%v) = %d; want %d", tt.d, got, tt.want)
		}
	}
}

func TestNextMorningDeparture(t *testing.T) {
	loc := time.FixedZone("AEST", 10*3600)
	now := time.Date(2025, 6, 23, 22, 15, 0, 0, loc)

	got := NextMorningDeparture(now)
	want := time.Date(2025, 6, 24, 8, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("NextMorningDeparture = %v; want %v", got, want)
	}
	if got.Location() != loc {
		t.Errorf("location = %v; want %v", got.Location(), loc)
	}
}
