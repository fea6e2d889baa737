// Package fetch retrieves scene documents over HTTP(S), from S3 and from the local filesystem.
//
// Every request carries its own timeout and passes through a shared token-bucket
// limiter. Nothing is retried: a failed fetch is reported once and the caller moves on.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"golang.org/x/time/rate"
)

var (
	// ErrUnsupportedScheme is returned for URLs that are not http(s), s3 or local paths.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	// ErrNoPresigner is returned for s3:// URLs when the fetcher has no S3 presigner.
	ErrNoPresigner = errors.New("s3 url without presigner")
	// ErrBodyTooLarge is returned when a response exceeds the configured limit.
	ErrBodyTooLarge = errors.New("response body too large")
)

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Fetcher retrieves documents by URL.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	presigner Presigner
	cfg       Config
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithPresigner enables s3:// URLs.
func WithPresigner(p Presigner) Option {
	return func(f *Fetcher) {
		f.presigner = p
	}
}

// New creates a Fetcher from cfg.
func New(cfg *Config, opts ...Option) (*Fetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f := &Fetcher{
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Inf, 0),
		cfg:     *cfg,
	}

	if cfg.RPS > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.burst())
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Fetch returns the body at rawURL. Supported forms are http(s)://, s3://bucket/key,
// file:// and plain filesystem paths.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return f.get(ctx, rawURL, nil)
	case "s3":
		return f.fetchS3(ctx, u)
	case "file":
		return f.readFile(u.Path)
	case "":
		return f.readFile(rawURL)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

func (f *Fetcher) get(ctx context.Context, target string, header http.Header) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", redact(target), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:mnd

		return nil, &StatusError{URL: redact(target), StatusCode: resp.StatusCode}
	}

	return f.readAll(resp.Body, redact(target))
}

func (f *Fetcher) readFile(path string) ([]byte, error) {
	file, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	return f.readAll(file, path)
}

func (f *Fetcher) readAll(r io.Reader, source string) ([]byte, error) {
	if f.cfg.MaxBodyBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", source, err)
		}

		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}

	if int64(len(data)) > f.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, source, f.cfg.MaxBodyBytes)
	}

	return data, nil
}

// redact drops the query string, which carries signatures for presigned URLs.
func redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}

	return target
}
