// Package geo normalizes scene footprints into WGS84 longitude/latitude.
//
// Footprints arrive either already geographic (EPSG:4326) or in a projected
// CRS (UTM zones, web mercator). Registry resolves EPSG codes to orb
// projections; Reproject, CloseRing, ConvexHull and BBox work on orb rings.
package geo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Well-known EPSG codes.
const (
	EPSGWGS84        = 4326
	EPSGWebMercator  = 3857
	epsgUTMNorthBase = 32600
	epsgUTMSouthBase = 32700
	utmZones         = 60
)

// ParseEPSG extracts the numeric EPSG code from a CRS identifier.
//
// Accepted forms:
//   - "32657"
//   - "EPSG:32657"
//   - "urn:ogc:def:crs:EPSG:8.8.1:32657"
//   - "urn:ogc:def:crs:EPSG::32657"
//
// OGC CRS84 identifiers map to 4326.
func ParseEPSG(name string) (int, error) {
	trimmed := strings.TrimSpace(name)
	if strings.HasSuffix(strings.ToUpper(trimmed), "CRS84") {
		return EPSGWGS84, nil
	}

	if idx := strings.LastIndex(trimmed, ":"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}

	code, err := strconv.Atoi(trimmed)
	if err != nil || code <= 0 {
		return 0, &TransformError{Op: "parse", CRS: name, Err: ErrUnsupportedCRS}
	}

	return code, nil
}

// Registry resolves EPSG codes to projections into WGS84.
type Registry struct {
	custom map[int]orb.Projection
}

// NewRegistry returns a Registry supporting 4326, 3857 and every UTM zone on WGS84
// (32601-32660 north, 32701-32760 south).
func NewRegistry() *Registry {
	return &Registry{custom: make(map[int]orb.Projection)}
}

// Register adds or replaces the projection used for code.
func (r *Registry) Register(code int, proj orb.Projection) {
	r.custom[code] = proj
}

// Lookup returns the projection from code into WGS84 lon/lat.
// Unknown codes return a *TransformError wrapping ErrUnsupportedCRS; they are never defaulted.
func (r *Registry) Lookup(code int) (orb.Projection, error) {
	if proj, ok := r.custom[code]; ok {
		return proj, nil
	}

	switch {
	case code == EPSGWGS84:
		return func(p orb.Point) orb.Point { return p }, nil
	case code == EPSGWebMercator:
		return project.Mercator.ToWGS84, nil
	case code > epsgUTMNorthBase && code <= epsgUTMNorthBase+utmZones:
		return UTM{Zone: code - epsgUTMNorthBase}.ToWGS84, nil
	case code > epsgUTMSouthBase && code <= epsgUTMSouthBase+utmZones:
		return UTM{Zone: code - epsgUTMSouthBase, South: true}.ToWGS84, nil
	}

	return nil, &TransformError{Op: "lookup", CRS: fmt.Sprintf("EPSG:%d", code), Code: code, Err: ErrUnsupportedCRS}
}

// Reproject converts ring from code into WGS84, closes it and returns it with its bbox.
// The input ring is not modified.
func (r *Registry) Reproject(ring orb.Ring, code int) (orb.Ring, orb.Bound, error) {
	proj, err := r.Lookup(code)
	if err != nil {
		return nil, orb.Bound{}, err
	}

	out := project.Ring(ring.Clone(), proj)

	for _, p := range out {
		if !validLonLat(p) {
			return nil, orb.Bound{}, &TransformError{
				Op:   "reproject",
				CRS:  fmt.Sprintf("EPSG:%d", code),
				Code: code,
				Err:  fmt.Errorf("%w: %v", ErrCoordinateRange, p),
			}
		}
	}

	out, err = CloseRing(out)
	if err != nil {
		return nil, orb.Bound{}, err
	}

	return out, BBox(out), nil
}

func validLonLat(p orb.Point) bool {
	return p.Lon() >= -180 && p.Lon() <= 180 && p.Lat() >= -90 && p.Lat() <= 90
}
