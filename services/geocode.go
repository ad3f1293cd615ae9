package services

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"plane-spot-system/utils"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Place is a best-effort city/country for a coordinate.
type Place struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// Geocoder resolves coordinates to a Place.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (Place, error)
}

// NominatimGeocoder calls an OpenStreetMap Nominatim-compatible /reverse endpoint.
type NominatimGeocoder struct {
	BaseURL   string
	UserAgent string
	HTTP      *http.Client
}

func NewNominatimGeocoder(baseURL string, timeout time.Duration) *NominatimGeocoder {
	return &NominatimGeocoder{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: "plane-spot-system/1.0",
		HTTP:      utils.NewHTTPClient(timeout),
	}
}

func (g *NominatimGeocoder) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("zoom", "10")

	var resp struct {
		Address struct {
			City    string `json:"city"`
			Town    string `json:"town"`
			Village string `json:"village"`
			County  string `json:"county"`
			Country string `json:"country"`
		} `json:"address"`
	}
	headers := map[string]string{"User-Agent": g.UserAgent}
	if err := utils.GetJSON(ctx, g.HTTP, g.BaseURL+"/reverse?"+q.Encode(), headers, &resp); err != nil {
		return Place{}, err
	}

	city := resp.Address.City
	for _, alt := range []string{resp.Address.Town, resp.Address.Village, resp.Address.County} {
		if city != "" {
			break
		}
		city = alt
	}
	return Place{City: normalizePlaceName(city), Country: normalizePlaceName(resp.Address.Country)}, nil
}

// normalizePlaceName title-cases names that came back all upper or all lower case
// and leaves mixed-case names ("McAllen", "São Paulo") alone.
func normalizePlaceName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if s == strings.ToUpper(s) || s == strings.ToLower(s) {
		return cases.Title(language.English).String(s)
	}
	return s
}

// ResolvePlace never fails: lookup errors and blanks degrade to placeholders.
func ResolvePlace(ctx context.Context, g Geocoder, lat, lon float64) (Place, error) {
	place := Place{City: UnknownCity, Country: UnknownLocation}
	if g == nil {
		return place, nil
	}
	p, err := g.Reverse(ctx, lat, lon)
	if err != nil {
		return place, err
	}
	if p.City != "" {
		place.City = p.City
	}
	if p.Country != "" {
		place.Country = p.Country
	}
	return place, nil
}
