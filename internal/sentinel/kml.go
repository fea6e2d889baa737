package sentinel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/satstac/stac-sentinel/internal/geo"
	"github.com/satstac/stac-sentinel/internal/xmlmap"
)

// KMLOverlay is the scene-relative path of the Sentinel-1 map overlay.
const KMLOverlay = "preview/map-overlay.kml"

// ParseKMLFootprint reads the LatLonQuad corner coordinates of a map-overlay.kml
// ("lon,lat lon,lat ...") and returns them as a closed ring.
func ParseKMLFootprint(data []byte) (orb.Ring, error) {
	root, err := xmlmap.ParseBytes(data)
	if err != nil {
		return nil, err
	}

	raw, err := root.String("Document", "Folder", "GroundOverlay", "LatLonQuad", "coordinates")
	if err != nil {
		return nil, missing("kml LatLonQuad/coordinates")
	}

	var ring orb.Ring

	for _, pair := range strings.Fields(raw) {
		parts := strings.Split(pair, ",")
		if len(parts) < 2 { //nolint:mnd
			return nil, invalid("kml coordinates", pair)
		}

		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, invalid("kml longitude", parts[0])
		}

		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, invalid("kml latitude", parts[1])
		}

		ring = append(ring, orb.Point{lon, lat})
	}

	closed, err := geo.CloseRing(ring)
	if err != nil {
		return nil, fmt.Errorf("kml footprint: %w", err)
	}

	return closed, nil
}
