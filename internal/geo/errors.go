package geo

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedCRS is returned for CRS identifiers that cannot be parsed or have no projection.
	ErrUnsupportedCRS = errors.New("unsupported coordinate reference system")
	// ErrCoordinateRange is returned when a reprojected point falls outside lon/lat bounds.
	ErrCoordinateRange = errors.New("coordinate outside lon/lat range")
	// ErrDegenerateRing is returned for rings with fewer than three distinct points.
	ErrDegenerateRing = errors.New("ring has fewer than three distinct points")
)

// TransformError reports a failed coordinate operation together with the CRS involved.
type TransformError struct {
	Op   string // "parse", "lookup" or "reproject"
	CRS  string // CRS as given by the caller
	Code int    // EPSG code, zero when parsing failed
	Err  error
}

func (e *TransformError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("geo: %s EPSG:%d: %v", e.Op, e.Code, e.Err)
	}

	return fmt.Sprintf("geo: %s %q: %v", e.Op, e.CRS, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}
