// Package stac defines the STAC Item document produced for every catalogued scene.
package stac

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Version is the STAC specification version stamped on every Item.
const Version = "0.9.0"

// FeatureType is the GeoJSON type of every Item.
const FeatureType = "Feature"

// Common property keys shared by both scene families.
const (
	PropDatetime      = "datetime"
	PropStartDatetime = "start_datetime"
	PropEndDatetime   = "end_datetime"
	PropPlatform      = "platform"
	PropConstellation = "constellation"
	PropInstruments   = "instruments"
)

type (
	// Item is a STAC Item: a GeoJSON Feature describing one scene.
	// Field order here is the serialization order.
	Item struct {
		Type           string            `json:"type"`
		StacVersion    string            `json:"stac_version"`
		StacExtensions []string          `json:"stac_extensions"`
		ID             string            `json:"id"`
		Collection     string            `json:"collection"`
		BBox           []float64         `json:"bbox"`
		Geometry       *geojson.Geometry `json:"geometry"`
		Properties     map[string]any    `json:"properties"`
		Assets         map[string]Asset  `json:"assets"`
		Links          []Link            `json:"links"`
	}

	// Asset is a downloadable file belonging to an Item.
	Asset struct {
		Href        string   `json:"href"`
		Type        string   `json:"type,omitempty"`
		Title       string   `json:"title,omitempty"`
		Description string   `json:"description,omitempty"`
		Roles       []string `json:"roles,omitempty"`
		Bands       []Band   `json:"eo:bands,omitempty"`
		GSD         float64  `json:"gsd,omitempty"`
	}

	// Band describes one spectral band carried by an optical asset.
	Band struct {
		Name             string  `json:"name"`
		CommonName       string  `json:"common_name,omitempty"`
		CenterWavelength float64 `json:"center_wavelength,omitempty"`
		FullWidthHalfMax float64 `json:"full_width_half_max,omitempty"`
	}

	// Link is a typed relation from an Item to another resource.
	Link struct {
		Rel   string `json:"rel"`
		Href  string `json:"href"`
		Type  string `json:"type,omitempty"`
		Title string `json:"title,omitempty"`
	}
)

// NewItem builds an Item with the fixed Feature/version fields filled in.
// The polygon ring is used as the Item geometry and bbox is copied as given.
func NewItem(id, collection string, extensions []string, ring orb.Ring, bbox orb.Bound) *Item {
	return &Item{
		Type:           FeatureType,
		StacVersion:    Version,
		StacExtensions: append([]string{}, extensions...),
		ID:             id,
		Collection:     collection,
		BBox:           []float64{bbox.Min.Lon(), bbox.Min.Lat(), bbox.Max.Lon(), bbox.Max.Lat()},
		Geometry:       geojson.NewGeometry(orb.Polygon{ring}),
		Properties:     map[string]any{},
		Assets:         map[string]Asset{},
		Links:          []Link{},
	}
}

// Datetime returns the parsed "datetime" property.
func (i *Item) Datetime() (time.Time, error) {
	raw, _ := i.Properties[PropDatetime].(string)

	return time.Parse(time.RFC3339Nano, raw)
}

// Bound returns the Item bbox as an orb.Bound. Callers must validate the Item first.
func (i *Item) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{i.BBox[0], i.BBox[1]},
		Max: orb.Point{i.BBox[2], i.BBox[3]},
	}
}

// MarshalIndent renders the Item as indented JSON, the on-disk catalog format.
func (i *Item) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(i, "", "  ")
}

// FormatDatetime renders t as an RFC 3339 UTC timestamp with a trailing Z.
func FormatDatetime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
