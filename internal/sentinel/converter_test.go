package sentinel

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satstac/stac-sentinel/internal/collections"
)

func TestConverter_Optical(t *testing.T) {
	conv := NewConverter(nil)

	item, err := conv.Convert(context.Background(), testCollection(t, collections.SentinelS2L1C),
		readTestdata(t, "sentinel-2-l1c-tileInfo.json"), Base{Assets: "s3://sentinel-s2-l1c/tiles/57/U/VB/2017/10/23/0"})
	require.NoError(t, err)
	assert.Equal(t, "S2B_57UVB_20171023_0_L1C", item.ID)
}

func TestConverter_Radar(t *testing.T) {
	fetcher := &mapFetcher{docs: map[string][]byte{
		"annotation/iw-vv.xml": readTestdata(t, "sentinel-1-annotation.xml"),
	}}

	item, err := NewConverter(fetcher).Convert(context.Background(), testCollection(t, collections.SentinelS1L1C),
		readTestdata(t, "sentinel-1-productInfo.json"), Base{Assets: s1Base})
	require.NoError(t, err)

	assert.Equal(t, "S1B_IW_GRDH_1SDV_20170615T053302_20170615T053327_006062_00AA3C", item.ID)
	assert.Equal(t, []string{s1Base + "/annotation/iw-vv.xml"}, fetcher.calls)
}

func TestConverter_RadarKMLFallback(t *testing.T) {
	doc := readTestdata(t, "sentinel-1-productInfo.json")

	product, err := ParseProductInfo(doc)
	require.NoError(t, err)

	// drop the footprint member from the raw document
	start := strings.Index(string(doc), `"footprint"`)
	end := strings.Index(string(doc), `"filenameMap"`)
	require.Positive(t, start)
	stripped := string(doc[:start]) + string(doc[end:])

	fetcher := &mapFetcher{docs: map[string][]byte{
		"annotation/iw-vv.xml": readTestdata(t, "sentinel-1-annotation.xml"),
		KMLOverlay:             readTestdata(t, "map-overlay.kml"),
	}}

	item, err := NewConverter(fetcher).Convert(context.Background(), testCollection(t, collections.SentinelS1L1C),
		[]byte(stripped), Base{Assets: s1Base})
	require.NoError(t, err)

	assert.Equal(t, product.ID[:strings.LastIndex(product.ID, "_")], item.ID)
	assert.Equal(t, []float64{5.774769, 51.72326, 10.093478, 53.621937}, item.BBox)
	assert.Equal(t, []string{s1Base + "/annotation/iw-vv.xml", s1Base + "/" + KMLOverlay}, fetcher.calls)
}

func TestConverter_FamilyMismatch(t *testing.T) {
	_, err := NewConverter(nil).Convert(context.Background(), testCollection(t, collections.SentinelS1L1C),
		readTestdata(t, "sentinel-2-l1c-tileInfo.json"), Base{})
	require.ErrorIs(t, err, ErrFamilyMismatch)
}

func TestConverter_CollectionFamilyWhenUnmarked(t *testing.T) {
	doc := strings.Replace(string(readTestdata(t, "sentinel-1-productInfo.json")), `"missionId"`, `"mission"`, 1)

	_, err := DetectFamily([]byte(doc))
	require.ErrorIs(t, err, ErrUnknownFamily)

	fetcher := &mapFetcher{docs: map[string][]byte{
		"annotation/iw-vv.xml": readTestdata(t, "sentinel-1-annotation.xml"),
	}}

	item, err := NewConverter(fetcher).Convert(context.Background(), testCollection(t, collections.SentinelS1L1C),
		[]byte(doc), Base{Assets: s1Base})
	require.NoError(t, err)
	assert.Equal(t, collections.SentinelS1L1C, item.Collection)
}

func TestConverter_MalformedDocument(t *testing.T) {
	for _, doc := range []string{``, `[]`, `{broken`} {
		_, err := NewConverter(nil).Convert(context.Background(), testCollection(t, collections.SentinelS2L1C),
			[]byte(doc), Base{})
		require.ErrorIs(t, err, ErrUnknownFamily, doc)
	}
}

func TestConverter_FetchFailure(t *testing.T) {
	_, err := NewConverter(failingFetcher{}).Convert(context.Background(), testCollection(t, collections.SentinelS1L1C),
		readTestdata(t, "sentinel-1-productInfo.json"), Base{Assets: s1Base})
	require.ErrorIs(t, err, errFetch)
}

func TestConverter_NoFetcher(t *testing.T) {
	_, err := NewConverter(nil).Convert(context.Background(), testCollection(t, collections.SentinelS1L1C),
		readTestdata(t, "sentinel-1-productInfo.json"), Base{Assets: s1Base})
	require.Error(t, err)
}

func TestConverter_RelativeHrefs(t *testing.T) {
	fetcher := &mapFetcher{docs: map[string][]byte{
		"annotation/iw-vv.xml": readTestdata(t, "sentinel-1-annotation.xml"),
	}}

	item, err := NewConverter(fetcher).Convert(context.Background(), testCollection(t, collections.SentinelS1L1C),
		readTestdata(t, "sentinel-1-productInfo.json"), Base{})
	require.NoError(t, err)

	for name, asset := range item.Assets {
		assert.NotEmpty(t, asset.Href, name)
	}
}
