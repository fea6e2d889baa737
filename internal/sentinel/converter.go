// Package sentinel converts Sentinel-1 and Sentinel-2 scene metadata into STAC Items.
//
// TransformOptical and TransformRadar are pure functions of their inputs. Converter
// wraps them for raw documents: it detects the scene family, fetches the radar
// annotation (and KML footprint when productInfo has none) and validates the result.
package sentinel

import (
	"context"
	"errors"
	"fmt"

	"github.com/satstac/stac-sentinel/internal/collections"
	"github.com/satstac/stac-sentinel/internal/geo"
	"github.com/satstac/stac-sentinel/internal/stac"
	"github.com/satstac/stac-sentinel/internal/xmlmap"
)

// Fetcher retrieves a document by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Converter turns raw metadata documents into validated Items.
type Converter struct {
	fetcher   Fetcher
	geo       *geo.Registry
	validator *stac.Validator
}

// NewConverter creates a Converter. fetcher is only used for radar scenes.
func NewConverter(fetcher Fetcher) *Converter {
	return &Converter{
		fetcher:   fetcher,
		geo:       geo.NewRegistry(),
		validator: stac.NewValidator(),
	}
}

// Convert transforms doc, the collection's metadata file for one scene, into an Item.
// A JSON object without family markers is read as the collection's family.
func (c *Converter) Convert(ctx context.Context, col *collections.Collection, doc []byte, base Base) (*stac.Item, error) {
	family, err := DetectFamily(doc)
	if err != nil {
		if !errors.Is(err, ErrUnknownFamily) || !isObject(doc) {
			return nil, err
		}

		family = col.Family
	}

	if family != col.Family {
		return nil, fmt.Errorf("%w: %s document for %s collection %s", ErrFamilyMismatch, family, col.Family, col.ID)
	}

	var item *stac.Item

	switch family {
	case collections.Optical:
		item, err = c.convertOptical(col, doc, base)
	case collections.Radar:
		item, err = c.convertRadar(ctx, col, doc, base)
	default:
		return nil, ErrUnknownFamily
	}

	if err != nil {
		return nil, err
	}

	if err := c.validator.Validate(item); err != nil {
		return nil, err
	}

	return item, nil
}

func (c *Converter) convertOptical(col *collections.Collection, doc []byte, base Base) (*stac.Item, error) {
	info, err := ParseTileInfo(doc)
	if err != nil {
		return nil, err
	}

	return TransformOptical(info, col, base, c.geo)
}

func (c *Converter) convertRadar(ctx context.Context, col *collections.Collection, doc []byte, base Base) (*stac.Item, error) {
	product, err := ParseProductInfo(doc)
	if err != nil {
		return nil, err
	}

	file, err := product.AnnotationFile()
	if err != nil {
		return nil, err
	}

	if c.fetcher == nil {
		return nil, fmt.Errorf("product %s: no fetcher for annotation %s", product.ID, file)
	}

	raw, err := c.fetcher.Fetch(ctx, collections.JoinURL(base.Assets, file))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch annotation %s: %w", file, err)
	}

	annotation, err := xmlmap.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("annotation %s: %w", file, err)
	}

	in := RadarInput{Product: product, Annotation: annotation}

	if _, ok := product.Footprint.OuterRing(); !ok {
		kml, err := c.fetcher.Fetch(ctx, collections.JoinURL(base.Assets, KMLOverlay))
		if err != nil {
			return nil, fmt.Errorf("product %s has no footprint and overlay fetch failed: %w", product.ID, err)
		}

		in.Footprint, err = ParseKMLFootprint(kml)
		if err != nil {
			return nil, err
		}
	}

	return TransformRadar(in, col, base, c.geo)
}
