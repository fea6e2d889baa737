package sentinel

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satstac/stac-sentinel/internal/collections"
	"github.com/satstac/stac-sentinel/internal/geo"
	"github.com/satstac/stac-sentinel/internal/stac"
)

const l1cBase = "s3://sentinel-s2-l1c/tiles/57/U/VB/2017/10/23/0"

func transformL1C(t *testing.T) *stac.Item {
	t.Helper()

	info, err := ParseTileInfo(readTestdata(t, "sentinel-2-l1c-tileInfo.json"))
	require.NoError(t, err)

	item, err := TransformOptical(info, testCollection(t, collections.SentinelS2L1C),
		Base{Assets: l1cBase}, geo.NewRegistry())
	require.NoError(t, err)

	return item
}

func TestTransformOptical_L1C(t *testing.T) {
	item := transformL1C(t)

	assert.Equal(t, "S2B_57UVB_20171023_0_L1C", item.ID)
	assert.Equal(t, "sentinel-s2-l1c", item.Collection)
	assert.Equal(t, []string{"eo"}, item.StacExtensions)
	assert.Len(t, item.Assets, 17)

	props := item.Properties
	assert.Equal(t, "2017-10-23T00:48:06.456Z", props[stac.PropDatetime])
	assert.Equal(t, "sentinel-2b", props[stac.PropPlatform])
	assert.Equal(t, "0", props[PropSequence])
	assert.Equal(t, 57, props[PropUTMZone])
	assert.Equal(t, "U", props[PropLatitudeBand])
	assert.Equal(t, "VB", props[PropGridSquare])
	assert.InDelta(t, 54.7, props[PropCloudCover], 1e-9)
	assert.InDelta(t, 82.54, props[PropDataCoverage], 1e-9)
	assert.Equal(t, "S2B_MSIL1C_20171023T004529_N0205_R002_T57UVB_20171023T021319", props[PropProductID])

	require.Len(t, item.Links, 1)
	assert.Equal(t, "collection", item.Links[0].Rel)
}

func TestTransformOptical_L1CAssetHrefs(t *testing.T) {
	item := transformL1C(t)

	assert.Equal(t, l1cBase+"/preview.jpg", item.Assets["thumbnail"].Href)
	assert.Equal(t, l1cBase+"/tileInfo.json", item.Assets["info"].Href)
	assert.Equal(t, l1cBase+"/metadata.xml", item.Assets["metadata"].Href)
	assert.Equal(t, l1cBase+"/TKI.jp2", item.Assets["overview"].Href)
	assert.Equal(t, l1cBase+"/B8A.jp2", item.Assets["B8A"].Href)
	assert.Equal(t, l1cBase+"/B11.jp2", item.Assets["B11"].Href)
	assert.Equal(t, l1cBase+"/B12.jp2", item.Assets["B12"].Href)
	assert.Equal(t, "image/jp2", item.Assets["B01"].Type)
	require.Len(t, item.Assets["B04"].Bands, 1)
	assert.Equal(t, "red", item.Assets["B04"].Bands[0].CommonName)

	for name, asset := range item.Assets {
		assert.NotEmpty(t, asset.Href, name)
	}
}

func TestTransformOptical_SeparateMetadataBase(t *testing.T) {
	info, err := ParseTileInfo(readTestdata(t, "sentinel-2-l1c-tileInfo.json"))
	require.NoError(t, err)

	base := Base{
		Assets:   l1cBase,
		Metadata: "https://roda.sentinel-hub.com/sentinel-s2-l1c/tiles/57/U/VB/2017/10/23/0",
	}

	item, err := TransformOptical(info, testCollection(t, collections.SentinelS2L1C), base, geo.NewRegistry())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(item.Assets["info"].Href, "https://roda.sentinel-hub.com/"))
	assert.True(t, strings.HasPrefix(item.Assets["B01"].Href, "s3://"))
}

func TestTransformOptical_Geometry(t *testing.T) {
	item := transformL1C(t)

	require.Len(t, item.BBox, 4)
	assert.LessOrEqual(t, item.BBox[0], item.BBox[2])
	assert.LessOrEqual(t, item.BBox[1], item.BBox[3])
	assert.InDelta(t, 157.50, item.BBox[0], 0.05)
	assert.InDelta(t, 53.25, item.BBox[3], 0.05)

	polygon, ok := item.Geometry.Coordinates.(orb.Polygon)
	require.True(t, ok)

	hull := polygon[0]
	assert.True(t, hull.Closed())
	// the concave vertex of the data footprint is not on the hull
	assert.Len(t, hull, 5)
	assert.Equal(t, orb.CCW, hull.Orientation())

	for _, p := range hull {
		assert.True(t, item.Bound().Contains(p))
	}
}

func TestTransformOptical_Idempotent(t *testing.T) {
	first, err := json.Marshal(transformL1C(t))
	require.NoError(t, err)

	second, err := json.Marshal(transformL1C(t))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestTransformOptical_L2A(t *testing.T) {
	info, err := ParseTileInfo(readTestdata(t, "sentinel-2-l2a-tileInfo.json"))
	require.NoError(t, err)

	base := "s3://sentinel-s2-l2a/tiles/33/U/UP/2019/4/2/1"

	item, err := TransformOptical(info, testCollection(t, collections.SentinelS2L2A), Base{Assets: base}, geo.NewRegistry())
	require.NoError(t, err)

	assert.Equal(t, "S2A_33UUP_20190402_1_L2A", item.ID)
	assert.Equal(t, "1", item.Properties[PropSequence])
	assert.InDelta(t, 0.0, item.Properties[PropCloudCover], 1e-9)
	assert.NotContains(t, item.Properties, PropDataCoverage)

	// 3 metadata assets + 7 + 13 + 15 resolution bands
	assert.Len(t, item.Assets, 38)
	assert.Equal(t, base+"/R10m/B02.jp2", item.Assets["B02_10m"].Href)
	assert.Equal(t, base+"/R20m/SCL.jp2", item.Assets["SCL_20m"].Href)
	assert.Equal(t, base+"/R60m/B01.jp2", item.Assets["B01_60m"].Href)
	assert.InDelta(t, 60.0, item.Assets["B01_60m"].GSD, 1e-9)
	assert.NotContains(t, item.Assets, "B01_10m")
}

func TestTransformOptical_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TileInfo)
		field  string
	}{
		{"timestamp", func(i *TileInfo) { i.Timestamp = "" }, "timestamp"},
		{"utm zone", func(i *TileInfo) { i.UTMZone = nil }, "utmZone"},
		{"cloud cover", func(i *TileInfo) { i.CloudyPixelPercentage = nil }, "cloudyPixelPercentage"},
		{"data geometry", func(i *TileInfo) { i.TileDataGeometry = nil }, "tileDataGeometry"},
		{"datastrip", func(i *TileInfo) { i.Datastrip.ID = "" }, "datastrip.id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParseTileInfo(readTestdata(t, "sentinel-2-l1c-tileInfo.json"))
			require.NoError(t, err)
			tt.mutate(info)

			_, err = TransformOptical(info, testCollection(t, collections.SentinelS2L1C), Base{}, geo.NewRegistry())
			require.ErrorIs(t, err, ErrMissingField)
			assert.NotErrorIs(t, err, geo.ErrUnsupportedCRS)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestTransformOptical_InvalidFields(t *testing.T) {
	info, err := ParseTileInfo(readTestdata(t, "sentinel-2-l1c-tileInfo.json"))
	require.NoError(t, err)

	info.Timestamp = "23 Oct 2017"

	_, err = TransformOptical(info, testCollection(t, collections.SentinelS2L1C), Base{}, geo.NewRegistry())
	require.ErrorIs(t, err, ErrInvalidField)

	info, err = ParseTileInfo(readTestdata(t, "sentinel-2-l1c-tileInfo.json"))
	require.NoError(t, err)

	info.Datastrip.ID = "S2B_OPER"

	_, err = TransformOptical(info, testCollection(t, collections.SentinelS2L1C), Base{}, geo.NewRegistry())
	require.ErrorIs(t, err, ErrInvalidField)
}

func TestTransformOptical_UnsupportedCRS(t *testing.T) {
	doc := strings.ReplaceAll(string(readTestdata(t, "sentinel-2-l1c-tileInfo.json")),
		"urn:ogc:def:crs:EPSG:8.8.1:32657", "urn:ogc:def:crs:EPSG:8.8.1:2154")

	info, err := ParseTileInfo([]byte(doc))
	require.NoError(t, err)

	_, err = TransformOptical(info, testCollection(t, collections.SentinelS2L1C), Base{}, geo.NewRegistry())
	require.ErrorIs(t, err, geo.ErrUnsupportedCRS)
	assert.NotErrorIs(t, err, ErrMissingField)

	var terr *geo.TransformError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 2154, terr.Code)
}

func TestTileInfoSequence(t *testing.T) {
	assert.Equal(t, "0", (&TileInfo{Path: "tiles/57/U/VB/2017/10/23/0"}).Sequence())
	assert.Equal(t, "12", (&TileInfo{Path: "tiles/57/U/VB/2017/10/23/12/"}).Sequence())
	assert.Equal(t, "3", (&TileInfo{Path: "3"}).Sequence())
}
