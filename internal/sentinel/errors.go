package sentinel

import (
	"errors"
	"fmt"
)

// Sentinel errors for scene transform failures. CRS failures surface as geo.ErrUnsupportedCRS.
var (
	ErrMissingField   = errors.New("required field missing")
	ErrInvalidField   = errors.New("field has invalid value")
	ErrUnknownFamily  = errors.New("document is neither a radar nor an optical scene")
	ErrFamilyMismatch = errors.New("document does not match collection")
)

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

func invalid(field string, value any) error {
	return fmt.Errorf("%w: %s=%v", ErrInvalidField, field, value)
}
