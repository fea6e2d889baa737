package sentinel

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/satstac/stac-sentinel/internal/collections"
	"github.com/satstac/stac-sentinel/internal/geo"
	"github.com/satstac/stac-sentinel/internal/stac"
)

// Optical property keys.
const (
	PropCloudCover    = "eo:cloud_cover"
	PropUTMZone       = "sentinel:utm_zone"
	PropLatitudeBand  = "sentinel:latitude_band"
	PropGridSquare    = "sentinel:grid_square"
	PropSequence      = "sentinel:sequence"
	PropProductID     = "sentinel:product_id"
	PropDataCoverage  = "sentinel:data_coverage"
	opticalPlatform   = "sentinel-2"
	opticalInstrument = "msi"
)

type (
	// TileInfo is a Sentinel-2 tileInfo.json document.
	TileInfo struct {
		Path                   string    `json:"path"`
		Timestamp              string    `json:"timestamp"`
		UTMZone                *int      `json:"utmZone"`
		LatitudeBand           string    `json:"latitudeBand"`
		GridSquare             string    `json:"gridSquare"`
		Datastrip              Datastrip `json:"datastrip"`
		TileGeometry           *Geometry `json:"tileGeometry"`
		TileDataGeometry       *Geometry `json:"tileDataGeometry"`
		TileOrigin             *Geometry `json:"tileOrigin"`
		DataCoveragePercentage *float64  `json:"dataCoveragePercentage"`
		CloudyPixelPercentage  *float64  `json:"cloudyPixelPercentage"`
		ProductName            string    `json:"productName"`
		ProductPath            string    `json:"productPath"`
	}

	// Datastrip identifies the processing datastrip a tile was cut from.
	Datastrip struct {
		ID   string `json:"id"`
		Path string `json:"path"`
	}

	// Base locates a scene's files. Metadata falls back to Assets when empty.
	Base struct {
		Assets   string
		Metadata string
	}
)

func (b Base) metadata() string {
	if b.Metadata != "" {
		return b.Metadata
	}

	return b.Assets
}

// ParseTileInfo decodes a tileInfo.json document.
func ParseTileInfo(data []byte) (*TileInfo, error) {
	var info TileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode tileInfo: %w", err)
	}

	return &info, nil
}

// CRSName returns the CRS identifier of the tile, preferring tileOrigin.
func (t *TileInfo) CRSName() string {
	for _, g := range []*Geometry{t.TileOrigin, t.TileDataGeometry, t.TileGeometry} {
		if g != nil && g.CRSName != "" {
			return g.CRSName
		}
	}

	return ""
}

// Sequence returns the last segment of the tile path.
func (t *TileInfo) Sequence() string {
	trimmed := strings.TrimRight(t.Path, "/")

	return trimmed[strings.LastIndex(trimmed, "/")+1:]
}

// TransformOptical converts a Sentinel-2 tile into a STAC Item.
//
// The tile footprint (tileDataGeometry) is reprojected from the tile CRS into
// WGS84; the Item geometry is its convex hull. A CRS without a projection
// returns an error wrapping geo.ErrUnsupportedCRS.
func TransformOptical(info *TileInfo, col *collections.Collection, base Base, reg *geo.Registry) (*stac.Item, error) {
	if info == nil {
		return nil, missing("tileInfo")
	}

	if err := info.check(); err != nil {
		return nil, err
	}

	acquired, err := time.Parse(time.RFC3339Nano, info.Timestamp)
	if err != nil {
		return nil, invalid("timestamp", info.Timestamp)
	}

	level, err := processingLevel(info.Datastrip.ID)
	if err != nil {
		return nil, err
	}

	code, err := geo.ParseEPSG(info.CRSName())
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", info.Path, err)
	}

	footprint, ok := info.TileDataGeometry.OuterRing()
	if !ok {
		return nil, missing("tileDataGeometry.coordinates")
	}

	ring, bbox, err := reg.Reproject(footprint, code)
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", info.Path, err)
	}

	hull, err := geo.ConvexHull(ring)
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", info.Path, err)
	}

	sequence := info.Sequence()
	id := fmt.Sprintf("%s_%d%s%s_%s_%s_%s",
		info.ProductName[0:3], *info.UTMZone, info.LatitudeBand, info.GridSquare,
		acquired.UTC().Format("20060102"), sequence, level)

	item := stac.NewItem(id, col.ID, col.Extensions, hull, bbox)
	item.Properties[stac.PropDatetime] = stac.FormatDatetime(acquired)
	item.Properties[stac.PropPlatform] = opticalPlatform + strings.ToLower(info.ProductName[2:3])
	item.Properties[stac.PropConstellation] = opticalPlatform
	item.Properties[stac.PropInstruments] = []string{opticalInstrument}
	item.Properties[PropCloudCover] = *info.CloudyPixelPercentage
	item.Properties[PropUTMZone] = *info.UTMZone
	item.Properties[PropLatitudeBand] = info.LatitudeBand
	item.Properties[PropGridSquare] = info.GridSquare
	item.Properties[PropSequence] = sequence
	item.Properties[PropProductID] = info.ProductName

	if info.DataCoveragePercentage != nil {
		item.Properties[PropDataCoverage] = *info.DataCoveragePercentage
	}

	item.Assets = opticalAssets(col, base)
	item.Links = append(item.Links, stac.CollectionLink(col.ID))

	return item, nil
}

func (t *TileInfo) check() error {
	switch {
	case t.Path == "":
		return missing("path")
	case t.Timestamp == "":
		return missing("timestamp")
	case t.UTMZone == nil:
		return missing("utmZone")
	case t.LatitudeBand == "":
		return missing("latitudeBand")
	case t.GridSquare == "":
		return missing("gridSquare")
	case t.CloudyPixelPercentage == nil:
		return missing("cloudyPixelPercentage")
	case t.TileDataGeometry == nil:
		return missing("tileDataGeometry")
	case t.Datastrip.ID == "":
		return missing("datastrip.id")
	case len(t.ProductName) < 3: //nolint:mnd
		return invalid("productName", t.ProductName)
	}

	return nil
}

// processingLevel reads the level token ("L1C", "L2A") from a datastrip id such as
// S2B_OPER_MSI_L1C_DS_SGS__20171023T021319_S20171023T004528_N02.05.
func processingLevel(datastrip string) (string, error) {
	parts := strings.Split(datastrip, "_")
	if len(parts) < 4 || parts[3] == "" { //nolint:mnd
		return "", invalid("datastrip.id", datastrip)
	}

	return parts[3], nil
}

func opticalAssets(col *collections.Collection, base Base) map[string]stac.Asset {
	assets := make(map[string]stac.Asset)

	place := func(name, href string) stac.Asset {
		asset, ok := col.Asset(name)
		if !ok {
			asset = stac.Asset{}
		}

		asset.Href = href

		return asset
	}

	for name, file := range col.MetaFiles {
		assets[name] = place(name, collections.JoinURL(base.metadata(), file))
	}

	for name, file := range col.Files {
		assets[name] = place(name, collections.JoinURL(base.Assets, file))
	}

	for _, res := range col.Resolutions {
		for _, band := range res.Bands {
			asset := place(band, collections.JoinURL(base.Assets, res.Name+"/"+band+".jp2"))
			asset.GSD = res.GSD
			assets[band+"_"+res.Suffix()] = asset
		}
	}

	return assets
}
