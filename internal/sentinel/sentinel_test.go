package sentinel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/satstac/stac-sentinel/internal/collections"
)

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)

	return data
}

func testCollection(t *testing.T, id string) *collections.Collection {
	t.Helper()

	reg, err := collections.NewRegistry()
	require.NoError(t, err)

	col, err := reg.Get(id)
	require.NoError(t, err)

	return col
}

// mapFetcher serves documents from memory keyed by URL suffix.
type mapFetcher struct {
	docs  map[string][]byte
	calls []string
}

func (f *mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)

	for suffix, doc := range f.docs {
		if strings.HasSuffix(url, suffix) {
			return doc, nil
		}
	}

	return nil, fmt.Errorf("not found: %s", url)
}

var errFetch = errors.New("fetch failed")

type failingFetcher struct{}

func (failingFetcher) Fetch(context.Context, string) ([]byte, error) {
	return nil, errFetch
}
