package sentinel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/satstac/stac-sentinel/internal/collections"
	"github.com/satstac/stac-sentinel/internal/geo"
	"github.com/satstac/stac-sentinel/internal/stac"
	"github.com/satstac/stac-sentinel/internal/xmlmap"
)

// Radar property keys.
const (
	PropInstrumentMode  = "sar:instrument_mode"
	PropProductType     = "sar:product_type"
	PropPolarizations   = "sar:polarizations"
	PropFrequencyBand   = "sar:frequency_band"
	PropLooksRange      = "sar:looks_range"
	PropLooksAzimuth    = "sar:looks_azimuth"
	PropOrbitState      = "sat:orbit_state"
	PropIncidenceAngle  = "sat:incidence_angle"
	PropRelativeOrbit   = "sat:relative_orbit"
	PropAbsoluteOrbit   = "sat:absolute_orbit"
	radarPlatform       = "sentinel-1"
	radarInstrument     = "c-sar"
	orbitsPerRepeat     = 175
	annotationDir       = "annotation"
	measurementDir      = "measurement"
	calibrationMarker   = "calibration"
	polarizationMetaFmt = "%s-metadata"
)

type (
	// ProductInfo is the part of a Sentinel-1 productInfo.json the transform reads.
	// Acquisition properties (times, mode, orbit) come from the annotation XML.
	ProductInfo struct {
		ID          string      `json:"id"`
		Footprint   *Geometry   `json:"footprint"`
		FilenameMap FilenameMap `json:"filenameMap"`
	}

	// FilenameMap is the ordered productInfo filenameMap: original name -> path under the scene.
	FilenameMap []FileEntry

	// FileEntry is one filenameMap pair.
	FileEntry struct {
		Name string
		Path string
	}
)

// UnmarshalJSON keeps filenameMap entries in document order.
func (m *FilenameMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to decode filenameMap: %w", err)
	}

	if tok == nil {
		*m = nil

		return nil
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("failed to decode filenameMap: expected object, got %v", tok)
	}

	entries := FilenameMap{}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to decode filenameMap: %w", err)
		}

		key, _ := keyTok.(string)

		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to decode filenameMap[%s]: %w", key, err)
		}

		entries = append(entries, FileEntry{Name: key, Path: value})
	}

	*m = entries

	return nil
}

// ParseProductInfo decodes a productInfo.json document.
func ParseProductInfo(data []byte) (*ProductInfo, error) {
	var product ProductInfo
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, fmt.Errorf("failed to decode productInfo: %w", err)
	}

	return &product, nil
}

// AnnotationFiles returns the filenameMap paths of per-polarization annotation XML,
// in document order: paths containing "annotation" but not "calibration".
func (p *ProductInfo) AnnotationFiles() []string {
	var files []string

	for _, entry := range p.FilenameMap {
		if strings.Contains(entry.Path, annotationDir) && !strings.Contains(entry.Path, calibrationMarker) {
			files = append(files, entry.Path)
		}
	}

	return files
}

// AnnotationFile returns the first annotation file, the one the scene properties are read from.
func (p *ProductInfo) AnnotationFile() (string, error) {
	files := p.AnnotationFiles()
	if len(files) == 0 {
		return "", missing("filenameMap annotation file")
	}

	return files[0], nil
}

// Polarization returns the upper-cased last "-" token of a file's basename without extension:
// "annotation/iw-vv.xml" -> "VV".
func Polarization(file string) string {
	name := path.Base(file)
	name = strings.TrimSuffix(name, path.Ext(name))

	return strings.ToUpper(name[strings.LastIndex(name, "-")+1:])
}

// RadarInput is everything a Sentinel-1 transform reads.
type RadarInput struct {
	Product    *ProductInfo
	Annotation *xmlmap.Node // root <product> element of the first annotation file
	Footprint  orb.Ring     // overrides Product.Footprint when set
}

// TransformRadar converts a Sentinel-1 product and its annotation into a STAC Item.
// The footprint is geographic and is used as-is, closed when needed.
func TransformRadar(in RadarInput, col *collections.Collection, base Base, reg *geo.Registry) (*stac.Item, error) {
	product := in.Product
	if product == nil {
		return nil, missing("productInfo")
	}

	if in.Annotation == nil || in.Annotation.Name != "product" {
		return nil, missing("annotation product")
	}

	id, err := radarID(product.ID)
	if err != nil {
		return nil, err
	}

	props, err := radarProperties(in.Annotation)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", product.ID, err)
	}

	ring, code, err := radarFootprint(in)
	if err != nil {
		return nil, err
	}

	ring, bbox, err := reg.Reproject(ring, code)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", product.ID, err)
	}

	files := product.AnnotationFiles()
	assets := radarAssets(col, base, files)

	polarizations := make([]string, 0, len(files))
	for _, f := range files {
		if pol := Polarization(f); !slices.Contains(polarizations, pol) {
			polarizations = append(polarizations, pol)
		}
	}

	props[PropPolarizations] = polarizations

	item := stac.NewItem(id, col.ID, col.Extensions, ring, bbox)
	item.Properties = props
	item.Assets = assets
	item.Links = append(item.Links, stac.CollectionLink(col.ID))

	return item, nil
}

// radarID drops the trailing unique-identifier token:
// S1B_IW_GRDH_1SDV_..._00AA3C_6F8E -> S1B_IW_GRDH_1SDV_..._00AA3C.
func radarID(raw string) (string, error) {
	idx := strings.LastIndex(raw, "_")
	if idx <= 0 {
		return "", invalid("id", raw)
	}

	return raw[:idx], nil
}

func radarProperties(root *xmlmap.Node) (map[string]any, error) {
	var (
		header = root.Child("adsHeader")
		image  = root.Path("imageAnnotation", "imageInformation")
		swath  = root.Path("imageAnnotation", "processingInformation", "swathProcParamsList", "swathProcParams").First()
	)

	if header == nil {
		return nil, missing("adsHeader")
	}

	start, err := annotationTime(header, "startTime")
	if err != nil {
		return nil, err
	}

	stop, err := annotationTime(header, "stopTime")
	if err != nil {
		return nil, err
	}

	mission, err := header.String("missionId")
	if err != nil {
		return nil, missing("adsHeader/missionId")
	}

	if len(mission) < 3 { //nolint:mnd
		return nil, invalid("adsHeader/missionId", mission)
	}

	mode, err := header.String("mode")
	if err != nil {
		return nil, missing("adsHeader/mode")
	}

	productType, err := header.String("productType")
	if err != nil {
		return nil, missing("adsHeader/productType")
	}

	orbit, err := header.Int("absoluteOrbitNumber")
	if err != nil {
		return nil, fieldError("adsHeader/absoluteOrbitNumber", err)
	}

	pass, err := root.String("generalAnnotation", "productInformation", "pass")
	if err != nil {
		return nil, missing("generalAnnotation/productInformation/pass")
	}

	incidence, err := image.Float("incidenceAngleMidSwath")
	if err != nil {
		return nil, fieldError("imageInformation/incidenceAngleMidSwath", err)
	}

	looksRange, err := swath.Int("rangeProcessing", "numberOfLooks")
	if err != nil {
		return nil, fieldError("swathProcParams/rangeProcessing/numberOfLooks", err)
	}

	looksAzimuth, err := swath.Int("azimuthProcessing", "numberOfLooks")
	if err != nil {
		return nil, fieldError("swathProcParams/azimuthProcessing/numberOfLooks", err)
	}

	return map[string]any{
		stac.PropDatetime:      stac.FormatDatetime(start),
		stac.PropStartDatetime: stac.FormatDatetime(start),
		stac.PropEndDatetime:   stac.FormatDatetime(stop),
		stac.PropPlatform:      radarPlatform + strings.ToLower(mission[2:3]),
		stac.PropConstellation: radarPlatform,
		stac.PropInstruments:   []string{radarInstrument},
		PropInstrumentMode:     mode,
		PropProductType:        productType,
		PropFrequencyBand:      "C",
		PropLooksRange:         looksRange,
		PropLooksAzimuth:       looksAzimuth,
		PropOrbitState:         strings.ToLower(pass),
		PropIncidenceAngle:     incidence,
		PropAbsoluteOrbit:      orbit,
		PropRelativeOrbit:      RelativeOrbit(orbit),
	}, nil
}

// RelativeOrbit is floor(absolute / 175).
func RelativeOrbit(absolute int) int {
	return absolute / orbitsPerRepeat
}

// annotationTime parses an annotation timestamp. Annotation times carry no zone and are UTC.
func annotationTime(header *xmlmap.Node, field string) (time.Time, error) {
	raw, err := header.String(field)
	if err != nil {
		return time.Time{}, missing("adsHeader/" + field)
	}

	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}

	return time.Time{}, invalid("adsHeader/"+field, raw)
}

func fieldError(field string, err error) error {
	if errors.Is(err, xmlmap.ErrInvalidValue) {
		return fmt.Errorf("%w: %w", ErrInvalidField, err)
	}

	return missing(field)
}

func radarFootprint(in RadarInput) (orb.Ring, int, error) {
	if len(in.Footprint) > 0 {
		return in.Footprint, geo.EPSGWGS84, nil
	}

	ring, ok := in.Product.Footprint.OuterRing()
	if !ok {
		return nil, 0, missing("footprint.coordinates")
	}

	code := geo.EPSGWGS84
	if name := in.Product.Footprint.CRSName; name != "" {
		parsed, err := geo.ParseEPSG(name)
		if err != nil {
			return nil, 0, fmt.Errorf("product %s: %w", in.Product.ID, err)
		}

		code = parsed
	}

	return ring, code, nil
}

func radarAssets(col *collections.Collection, base Base, annotations []string) map[string]stac.Asset {
	assets := make(map[string]stac.Asset)

	place := func(name, fallbackType, href string) {
		asset, ok := col.Asset(name)
		if !ok {
			asset = stac.Asset{Type: fallbackType}
		}

		asset.Href = href
		assets[name] = asset
	}

	for name, file := range col.MetaFiles {
		place(name, "application/json", collections.JoinURL(base.metadata(), file))
	}

	for name, file := range col.Files {
		place(name, "", collections.JoinURL(base.Assets, file))
	}

	for _, file := range annotations {
		pol := Polarization(file)
		data := strings.ReplaceAll(file, annotationDir, measurementDir)
		data = strings.ReplaceAll(data, ".xml", ".tiff")

		place(pol, "image/vnd.stac.geotiff", collections.JoinURL(base.Assets, data))
		place(fmt.Sprintf(polarizationMetaFmt, pol), "application/xml", collections.JoinURL(base.Assets, file))
	}

	for name, asset := range assets {
		if asset.Href == "" {
			delete(assets, name)
		}
	}

	return assets
}
