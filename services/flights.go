package services

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"plane-spot-system/logger"
	"plane-spot-system/metrics"
	"plane-spot-system/models"
	"plane-spot-system/utils"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const kmPerDegreeLat = 111.32

// BoundingBox is a lat/lon rectangle in degrees.
type BoundingBox struct {
	North float64
	South float64
	West  float64
	East  float64
}

// BoundingBoxAround returns the box that encloses a circle of radiusKm around (lat, lon),
// clamped to valid coordinates.
func BoundingBoxAround(lat, lon, radiusKm float64) BoundingBox {
	dLat := radiusKm / kmPerDegreeLat
	cos := math.Cos(lat * math.Pi / 180)
	dLon := 180.0
	if cos > 1e-6 {
		dLon = math.Min(radiusKm/(kmPerDegreeLat*cos), 180)
	}
	return BoundingBox{
		North: math.Min(lat+dLat, 90),
		South: math.Max(lat-dLat, -90),
		West:  math.Max(lon-dLon, -180),
		East:  math.Min(lon+dLon, 180),
	}
}

// String formats the box as "north,south,west,east".
func (b BoundingBox) String() string {
	return fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", b.North, b.South, b.West, b.East)
}

// FlightProvider returns live aircraft inside a bounding box.
type FlightProvider interface {
	FlightsInBox(ctx context.Context, box BoundingBox) ([]models.FlightSnapshot, error)
}

// FlightAPIClient talks to the live flight-positions API.
type FlightAPIClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewFlightAPIClient(baseURL, apiKey string, timeout time.Duration) *FlightAPIClient {
	return &FlightAPIClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    utils.NewHTTPClient(timeout),
	}
}

type flightPosition struct {
	FR24ID      string    `json:"fr24_id"`
	Hex         string    `json:"hex"`
	Flight      string    `json:"flight"`
	Callsign    string    `json:"callsign"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Track       int       `json:"track"`
	Alt         int       `json:"alt"`
	GSpeed      int       `json:"gspeed"`
	Type        string    `json:"type"`
	Reg         string    `json:"reg"`
	PaintedAs   string    `json:"painted_as"`
	OperatingAs string    `json:"operating_as"`
	OrigIATA    string    `json:"orig_iata"`
	DestIATA    string    `json:"dest_iata"`
	Timestamp   time.Time `json:"timestamp"`
}

func (p flightPosition) snapshot() models.FlightSnapshot {
	id := p.Hex
	if id == "" {
		id = p.FR24ID
	}
	operator := p.OperatingAs
	if operator == "" {
		operator = p.PaintedAs
	}
	return models.FlightSnapshot{
		FlightID:     id,
		Callsign:     p.Callsign,
		FlightNumber: p.Flight,
		Registration: p.Reg,
		AircraftType: p.Type,
		OperatorICAO: operator,
		Altitude:     p.Alt,
		GroundSpeed:  p.GSpeed,
		Heading:      p.Track,
		Latitude:     p.Lat,
		Longitude:    p.Lon,
		Origin:       p.OrigIATA,
		Destination:  p.DestIATA,
		ObservedAt:   p.Timestamp.UTC(),
	}
}

func (c *FlightAPIClient) FlightsInBox(ctx context.Context, box BoundingBox) ([]models.FlightSnapshot, error) {
	q := url.Values{}
	q.Set("bounds", box.String())
	endpoint := c.BaseURL + "/live/flight-positions/full?" + q.Encode()

	var resp struct {
		Data []flightPosition `json:"data"`
	}
	headers := map[string]string{"Accept-Version": "v1"}
	if c.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.APIKey
	}
	if err := utils.GetJSON(ctx, c.HTTP, endpoint, headers, &resp); err != nil {
		return nil, err
	}

	out := make([]models.FlightSnapshot, 0, len(resp.Data))
	for _, p := range resp.Data {
		out = append(out, p.snapshot())
	}
	return out, nil
}

// FlightService serves nearby-flight lookups with a short per-user, per-area cache, so
// rapid polling from one client costs at most one upstream call per TTL.
type FlightService struct {
	Provider FlightProvider
	RadiusKm float64
	Timeout  time.Duration

	cache   *expirable.LRU[string, []models.FlightSnapshot]
	group   singleflight.Group
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewFlightService(p FlightProvider, radiusKm float64, ttl time.Duration, ratePerSec float64, timeout time.Duration) *FlightService {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &FlightService{
		Provider: p,
		RadiusKm: radiusKm,
		Timeout:  timeout,
		cache:    expirable.NewLRU[string, []models.FlightSnapshot](4096, nil, ttl),
		limiter:  rate.NewLimiter(limit, int(math.Max(1, ratePerSec))),
		log:      logger.WithComponent("flights"),
	}
}

// Nearby returns aircraft around (lat, lon) for userID. Results are cached per user
// and bounding box, so polling from one place is absorbed but a move or teleport is not.
func (s *FlightService) Nearby(ctx context.Context, userID string, lat, lon float64) ([]models.FlightSnapshot, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	box := BoundingBoxAround(lat, lon, s.RadiusKm)
	key := userID + "|" + box.String()
	if flights, ok := s.cache.Get(key); ok {
		metrics.FlightCache.WithLabelValues("hit").Inc()
		return flights, nil
	}
	metrics.FlightCache.WithLabelValues("miss").Inc()

	v, err, _ := s.group.Do(key, func() (any, error) {
		lookupCtx := ctx
		if s.Timeout > 0 {
			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithTimeout(ctx, s.Timeout)
			defer cancel()
		}
		if err := s.limiter.Wait(lookupCtx); err != nil {
			return nil, upstreamFailure("flight lookup", context.DeadlineExceeded)
		}
		flights, err := s.Provider.FlightsInBox(lookupCtx, box)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Str("bounds", box.String()).Msg("flight lookup failed")
			return nil, upstreamFailure("flight lookup", err)
		}
		s.cache.Add(key, flights)
		return flights, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.FlightSnapshot), nil
}

func validateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return invalid("latitude", "latitude must be between -90 and 90")
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return invalid("longitude", "longitude must be between -180 and 180")
	}
	return nil
}
