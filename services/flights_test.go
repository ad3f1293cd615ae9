package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"plane-spot-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls   atomic.Int32
	delay   time.Duration
	err     error
	flights []models.FlightSnapshot
}

func (p *countingProvider) FlightsInBox(ctx context.Context, box BoundingBox) ([]models.FlightSnapshot, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.flights, p.err
}

func TestBoundingBoxAround(t *testing.T) {
	box := BoundingBoxAround(38.77, -9.13, 50)
	assert.InDelta(t, 38.77+50/kmPerDegreeLat, box.North, 1e-9)
	assert.InDelta(t, 38.77-50/kmPerDegreeLat, box.South, 1e-9)
	assert.Less(t, box.West, -9.13)
	assert.Greater(t, box.East, -9.13)
	// longitude span widens away from the equator
	assert.Greater(t, box.East-box.West, box.North-box.South)

	polar := BoundingBoxAround(89.9, 0, 100)
	assert.Equal(t, 90.0, polar.North)
	assert.Equal(t, -180.0, polar.West)
	assert.Equal(t, 180.0, polar.East)
}

func TestFlightServiceCachesPerUser(t *testing.T) {
	p := &countingProvider{flights: []models.FlightSnapshot{{FlightID: "abc"}}}
	svc := NewFlightService(p, 50, time.Minute, 0, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		flights, err := svc.Nearby(ctx, "u1", 10, 10)
		require.NoError(t, err)
		require.Len(t, flights, 1)
	}
	assert.EqualValues(t, 1, p.calls.Load())

	_, err := svc.Nearby(ctx, "u2", 10, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.calls.Load())
}

func TestFlightServiceCacheExpires(t *testing.T) {
	p := &countingProvider{}
	svc := NewFlightService(p, 50, 50*time.Millisecond, 0, time.Second)

	_, err := svc.Nearby(context.Background(), "u1", 10, 10)
	require.NoError(t, err)
	time.Sleep(120 * time.Millisecond)
	_, err = svc.Nearby(context.Background(), "u1", 10, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.calls.Load())
}

func TestFlightServiceErrors(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		p := &countingProvider{delay: time.Second}
		svc := NewFlightService(p, 50, time.Minute, 0, 50*time.Millisecond)
		_, err := svc.Nearby(context.Background(), "u1", 10, 10)
		requireKind(t, err, KindUpstreamTimeout)
	})

	t.Run("unavailable is not cached", func(t *testing.T) {
		p := &countingProvider{err: errors.New("502 bad gateway")}
		svc := NewFlightService(p, 50, time.Minute, 0, time.Second)
		_, err := svc.Nearby(context.Background(), "u1", 10, 10)
		requireKind(t, err, KindUpstreamUnavailable)
		_, err = svc.Nearby(context.Background(), "u1", 10, 10)
		requireKind(t, err, KindUpstreamUnavailable)
		assert.EqualValues(t, 2, p.calls.Load())
	})

	t.Run("bad coordinates", func(t *testing.T) {
		svc := NewFlightService(&countingProvider{}, 50, time.Minute, 0, time.Second)
		_, err := svc.Nearby(context.Background(), "u1", 10, 200)
		requireKind(t, err, KindValidation)
	})
}

func TestFlightAPIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/live/flight-positions/full", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("bounds"))
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{
				"fr24_id": "38a1f2", "hex": "4CA1B2", "flight": "TP1234", "callsign": "TAP1234",
				"lat": 38.8, "lon": -9.1, "track": 210, "alt": 12000, "gspeed": 280,
				"type": "A20N", "reg": "CS-TVA", "painted_as": "TAP", "operating_as": "TAP",
				"orig_iata": "LIS", "dest_iata": "OPO", "timestamp": "2025-03-12T09:00:00Z",
			}},
		})
	}))
	defer srv.Close()

	c := NewFlightAPIClient(srv.URL+"/", "key-1", time.Second)
	flights, err := c.FlightsInBox(context.Background(), BoundingBoxAround(38.77, -9.13, 50))
	require.NoError(t, err)
	require.Len(t, flights, 1)

	f := flights[0]
	assert.Equal(t, "4CA1B2", f.FlightID)
	assert.Equal(t, "TP1234", f.FlightNumber)
	assert.Equal(t, "A20N", f.AircraftType)
	assert.Equal(t, "TAP", f.OperatorICAO)
	assert.Equal(t, "OPO", f.Destination)
	assert.Equal(t, 12000, f.Altitude)
	assert.Equal(t, time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC), f.ObservedAt)
}

func TestFlightAPIClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	svc := NewFlightService(NewFlightAPIClient(srv.URL, "", time.Second), 50, time.Minute, 0, time.Second)
	_, err := svc.Nearby(context.Background(), "u1", 1, 1)
	requireKind(t, err, KindUpstreamUnavailable)
}

type centerProvider struct {
	calls atomic.Int32
}

func (p *centerProvider) FlightsInBox(ctx context.Context, box BoundingBox) ([]models.FlightSnapshot, error) {
	p.calls.Add(1)
	return []models.FlightSnapshot{{
		FlightID:  "c1",
		Latitude:  (box.North + box.South) / 2,
		Longitude: (box.East + box.West) / 2,
	}}, nil
}

func TestFlightServiceCacheIsPerLocation(t *testing.T) {
	p := &centerProvider{}
	svc := NewFlightService(p, 50, time.Minute, 0, time.Second)
	ctx := context.Background()

	lisbon, err := svc.Nearby(ctx, "u1", 38.77, -9.13)
	require.NoError(t, err)
	require.Len(t, lisbon, 1)
	assert.InDelta(t, 38.77, lisbon[0].Latitude, 0.01)

	dubai, ok := LookupTeleport("dubai-international")
	require.True(t, ok)
	flights, err := svc.Nearby(ctx, "u1", dubai.Latitude, dubai.Longitude)
	require.NoError(t, err)
	require.Len(t, flights, 1)
	assert.InDelta(t, dubai.Latitude, flights[0].Latitude, 0.01)
	assert.InDelta(t, dubai.Longitude, flights[0].Longitude, 0.01)
	assert.EqualValues(t, 2, p.calls.Load())

	// polling the same spot again is still served from cache
	_, err = svc.Nearby(ctx, "u1", dubai.Latitude, dubai.Longitude)
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.calls.Load())
}
