package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{Timeout: time.Second, RPS: 0, MaxBodyBytes: 1024, RequesterPays: true}
}

func newFetcher(t *testing.T, opts ...Option) *Fetcher {
	t.Helper()

	f, err := New(testConfig(), opts...)
	require.NoError(t, err)

	return f
}

func TestFetch_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	data, err := newFetcher(t).Fetch(context.Background(), srv.URL+"/tileInfo.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
}

func TestFetch_StatusError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++

		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newFetcher(t).Fetch(context.Background(), srv.URL+"/x?X-Amz-Signature=secret")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.NotContains(t, err.Error(), "secret")
	assert.Equal(t, 1, calls, "no retries")
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond

	f, err := New(cfg)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), err.Error())
}

func TestFetch_BodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	_, err := newFetcher(t).Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestFetch_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "productInfo.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	f := newFetcher(t)

	data, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	data, err = f.Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	_, err = f.Fetch(context.Background(), filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFetch_UnsupportedScheme(t *testing.T) {
	_, err := newFetcher(t).Fetch(context.Background(), "ftp://example.com/x")
	require.ErrorIs(t, err, ErrUnsupportedScheme)
}

type fakePresigner struct {
	url   string
	input *s3.GetObjectInput
}

func (p *fakePresigner) PresignGetObject(
	_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.PresignOptions),
) (*v4.PresignedHTTPRequest, error) {
	p.input = params

	return &v4.PresignedHTTPRequest{
		URL:          p.url,
		Method:       http.MethodGet,
		SignedHeader: http.Header{"X-Amz-Request-Payer": []string{"requester"}},
	}, nil
}

func TestFetch_S3(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "requester", r.Header.Get("X-Amz-Request-Payer"))
		_, _ = w.Write([]byte("annotation"))
	}))
	defer srv.Close()

	presigner := &fakePresigner{url: srv.URL + "/signed"}
	f := newFetcher(t, WithPresigner(presigner))

	data, err := f.Fetch(context.Background(), "s3://sentinel-s1-l1c/GRD/2017/annotation/iw-vv.xml")
	require.NoError(t, err)
	assert.Equal(t, "annotation", string(data))

	require.NotNil(t, presigner.input)
	assert.Equal(t, "sentinel-s1-l1c", *presigner.input.Bucket)
	assert.Equal(t, "GRD/2017/annotation/iw-vv.xml", *presigner.input.Key)
	assert.Equal(t, types.RequestPayerRequester, presigner.input.RequestPayer)
}

func TestFetch_S3WithoutPresigner(t *testing.T) {
	_, err := newFetcher(t).Fetch(context.Background(), "s3://bucket/key")
	require.ErrorIs(t, err, ErrNoPresigner)
}

func TestFetch_CanceledContext(t *testing.T) {
	cfg := testConfig()
	cfg.RPS = 1
	cfg.Burst = 1

	f, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.Fetch(ctx, "http://127.0.0.1:1/x")
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := ParseS3URL("s3://sentinel-s2-l1c/tiles/57/U/VB/tileInfo.json")
	require.NoError(t, err)
	assert.Equal(t, "sentinel-s2-l1c", bucket)
	assert.Equal(t, "tiles/57/U/VB/tileInfo.json", key)

	_, _, err = ParseS3URL("https://example.com/x")
	require.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestConfig(t *testing.T) {
	t.Setenv("STAC_SENTINEL_FETCH_TIMEOUT", "5s")
	t.Setenv("STAC_SENTINEL_FETCH_RPS", "2.5")

	cfg := LoadConfig()
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.InDelta(t, 2.5, cfg.RPS, 1e-9)
	assert.Equal(t, 5, cfg.burst())
	require.NoError(t, cfg.Validate())

	cfg.Timeout = 0
	require.ErrorIs(t, cfg.Validate(), ErrInvalidTimeout)

	cfg.Timeout = time.Second
	cfg.RPS = -1
	require.ErrorIs(t, cfg.Validate(), ErrInvalidRate)
}
