package sentinel

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Geometry is a GeoJSON geometry that also carries the legacy named "crs" member.
type Geometry struct {
	Geometry orb.Geometry
	CRSName  string
}

// UnmarshalJSON decodes the geometry with orb/geojson and the crs name separately.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var geom geojson.Geometry
	if err := json.Unmarshal(data, &geom); err != nil {
		return fmt.Errorf("failed to decode geometry: %w", err)
	}

	var crs struct {
		CRS struct {
			Properties struct {
				Name string `json:"name"`
			} `json:"properties"`
		} `json:"crs"`
	}

	if err := json.Unmarshal(data, &crs); err != nil {
		return fmt.Errorf("failed to decode geometry crs: %w", err)
	}

	g.Geometry = geom.Coordinates
	g.CRSName = crs.CRS.Properties.Name

	return nil
}

// OuterRing returns the exterior ring of a Polygon, or of the first Polygon of a MultiPolygon.
func (g *Geometry) OuterRing() (orb.Ring, bool) {
	if g == nil {
		return nil, false
	}

	switch geom := g.Geometry.(type) {
	case orb.Polygon:
		if len(geom) > 0 {
			return geom[0], true
		}
	case orb.MultiPolygon:
		if len(geom) > 0 && len(geom[0]) > 0 {
			return geom[0][0], true
		}
	}

	return nil, false
}
