package stac

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for Item validation failures. Every error returned by Validate
// also matches ErrInvalidItem.
var (
	ErrInvalidItem        = errors.New("invalid item")
	ErrNilItem            = errors.New("item cannot be nil")
	ErrMissingID          = errors.New("id is required")
	ErrMissingCollection  = errors.New("collection is required")
	ErrInvalidBBox        = errors.New("bbox must be [west, south, east, north] with min <= max")
	ErrMissingGeometry    = errors.New("geometry is required")
	ErrInvalidDatetime    = errors.New("properties.datetime must be an RFC 3339 timestamp")
	ErrMissingAssetHref   = errors.New("asset href is required")
	ErrInvalidStacVersion = errors.New("unexpected stac_version")
)

// Validator checks the structural rules every emitted Item must satisfy
// before it is handed to a sink.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns nil if item is publishable.
//
// Rules:
//   - id and collection are non-empty
//   - bbox has four values with west <= east and south <= north
//   - geometry is present
//   - properties.datetime parses as RFC 3339
//   - every asset has an href
func (v *Validator) Validate(item *Item) error {
	if err := v.validate(item); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}

	return nil
}

func (v *Validator) validate(item *Item) error {
	if item == nil {
		return ErrNilItem
	}

	if item.StacVersion != Version {
		return fmt.Errorf("%w: %q", ErrInvalidStacVersion, item.StacVersion)
	}

	if item.ID == "" {
		return ErrMissingID
	}

	if item.Collection == "" {
		return fmt.Errorf("%w: item %s", ErrMissingCollection, item.ID)
	}

	if len(item.BBox) != 4 || item.BBox[0] > item.BBox[2] || item.BBox[1] > item.BBox[3] { //nolint:mnd
		return fmt.Errorf("%w: item %s, got %v", ErrInvalidBBox, item.ID, item.BBox)
	}

	if item.Geometry == nil || item.Geometry.Coordinates == nil {
		return fmt.Errorf("%w: item %s", ErrMissingGeometry, item.ID)
	}

	raw, ok := item.Properties[PropDatetime].(string)
	if !ok {
		return fmt.Errorf("%w: item %s", ErrInvalidDatetime, item.ID)
	}

	if _, err := time.Parse(time.RFC3339Nano, raw); err != nil {
		return fmt.Errorf("%w: item %s, got %q", ErrInvalidDatetime, item.ID, raw)
	}

	for name, asset := range item.Assets {
		if asset.Href == "" {
			return fmt.Errorf("%w: item %s, asset %s", ErrMissingAssetHref, item.ID, name)
		}
	}

	return nil
}
