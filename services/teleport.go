package services

import (
	"sort"

	"github.com/gosimple/slug"
)

// TeleportLocation is a preset remote vantage point. Spots from here earn teleport XP.
type TeleportLocation struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

var teleportPresets = []TeleportLocation{
	{Name: "New York JFK", Latitude: 40.6413, Longitude: -73.7781},
	{Name: "London Heathrow", Latitude: 51.4700, Longitude: -0.4543},
	{Name: "Tokyo Haneda", Latitude: 35.5494, Longitude: 139.7798},
	{Name: "Dubai International", Latitude: 25.2532, Longitude: 55.3657},
	{Name: "Frankfurt am Main", Latitude: 50.0379, Longitude: 8.5622},
	{Name: "São Paulo Guarulhos", Latitude: -23.4356, Longitude: -46.4731},
	{Name: "Sydney Kingsford Smith", Latitude: -33.9399, Longitude: 151.1753},
}

var teleportByID = func() map[string]TeleportLocation {
	m := make(map[string]TeleportLocation, len(teleportPresets))
	for i := range teleportPresets {
		teleportPresets[i].ID = slug.Make(teleportPresets[i].Name)
		m[teleportPresets[i].ID] = teleportPresets[i]
	}
	return m
}()

// TeleportLocations returns the presets sorted by name.
func TeleportLocations() []TeleportLocation {
	out := make([]TeleportLocation, len(teleportPresets))
	copy(out, teleportPresets)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func LookupTeleport(id string) (TeleportLocation, bool) {
	loc, ok := teleportByID[id]
	return loc, ok
}
