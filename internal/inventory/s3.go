package inventory

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const manifestFile = "manifest.json"

// S3API is the subset of the S3 client the inventory reader uses.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Inventory walks the newest daily S3 Inventory report of a bucket.
//
// Reports live under <Bucket>/<Prefix>/<YYYY-MM-DD>.../manifest.json; today's
// report is used when present, otherwise yesterday's.
type S3Inventory struct {
	Client S3API
	Bucket string
	Prefix string
	Logger *slog.Logger

	now func() time.Time
}

// NewS3Inventory creates an S3Inventory reading from bucket/prefix.
func NewS3Inventory(client S3API, bucket, prefix string, logger *slog.Logger) *S3Inventory {
	return &S3Inventory{Client: client, Bucket: bucket, Prefix: prefix, Logger: logger, now: time.Now}
}

type manifest struct {
	SourceBucket string `json:"sourceBucket"`
	FileFormat   string `json:"fileFormat"`
	FileSchema   string `json:"fileSchema"`
	Files        []struct {
		Key string `json:"key"`
	} `json:"files"`
}

// columns holds the CSV positions of the fields a Record needs.
type columns struct {
	bucket, key, modified int
}

func (c columns) width() int {
	return max(c.bucket, c.key, c.modified) + 1
}

var defaultColumns = columns{bucket: 0, key: 1, modified: 3}

func schemaColumns(schema string) columns {
	if schema == "" {
		return defaultColumns
	}

	names := strings.Split(schema, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}

	cols := columns{
		bucket:   slices.Index(names, "Bucket"),
		key:      slices.Index(names, "Key"),
		modified: slices.Index(names, "LastModifiedDate"),
	}

	if cols.bucket < 0 || cols.key < 0 || cols.modified < 0 {
		return defaultColumns
	}

	return cols
}

// Walk calls fn for every object listed in the latest inventory report.
func (s *S3Inventory) Walk(ctx context.Context, fn WalkFunc) error {
	key, err := s.latestManifest(ctx)
	if err != nil {
		return err
	}

	raw, err := s.get(ctx, key)
	if err != nil {
		return err
	}

	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("failed to decode manifest %s: %w", key, err)
	}

	cols := schemaColumns(m.FileSchema)

	s.logger().Info("Reading inventory",
		slog.String("manifest", key),
		slog.Int("files", len(m.Files)))

	for _, f := range m.Files {
		data, err := s.get(ctx, f.Key)
		if err != nil {
			return err
		}

		if err := walkCSV(ctx, bytes.NewReader(data), cols, fn); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}

			return fmt.Errorf("inventory file %s: %w", f.Key, err)
		}
	}

	return nil
}

func (s *S3Inventory) latestManifest(ctx context.Context) (string, error) {
	today := s.now().UTC()

	for _, day := range []time.Time{today, today.AddDate(0, 0, -1)} {
		prefix := path.Join(s.Prefix, day.Format(time.DateOnly))

		keys, err := s.list(ctx, prefix, manifestFile)
		if err != nil {
			return "", err
		}

		if len(keys) > 0 {
			slices.Sort(keys)

			return keys[len(keys)-1], nil
		}
	}

	return "", fmt.Errorf("%w: s3://%s/%s", ErrNoManifest, s.Bucket, s.Prefix)
}

func (s *S3Inventory) list(ctx context.Context, prefix, suffix string) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(s.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", s.Bucket, prefix, err)
		}

		for _, obj := range page.Contents {
			if key := aws.ToString(obj.Key); strings.HasSuffix(key, suffix) {
				keys = append(keys, key)
			}
		}
	}

	return keys, nil
}

func (s *S3Inventory) get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket:       aws.String(s.Bucket),
		Key:          aws.String(key),
		RequestPayer: types.RequestPayerRequester,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.Bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	var body io.Reader = out.Body

	if strings.HasSuffix(key, ".gz") {
		gz, err := gzip.NewReader(out.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip s3://%s/%s: %w", s.Bucket, key, err)
		}
		defer func() { _ = gz.Close() }()

		body = gz
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", s.Bucket, key, err)
	}

	return data, nil
}

func (s *S3Inventory) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}

	return slog.Default()
}

func walkCSV(ctx context.Context, r io.Reader, cols columns, fn WalkFunc) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("%w: line %d: %w", ErrInvalidRecord, line, err)
		}

		if len(row) < cols.width() {
			return fmt.Errorf("%w: line %d has %d columns", ErrInvalidRecord, line, len(row))
		}

		modified, err := parseTime(row[cols.modified])
		if err != nil {
			return fmt.Errorf("%w: line %d: %w", ErrInvalidRecord, line, err)
		}

		key := row[cols.key]
		if decoded, err := url.PathUnescape(key); err == nil {
			key = decoded
		}

		if err := fn(Record{Bucket: row[cols.bucket], Key: key, LastModified: modified}); err != nil {
			return err
		}
	}
}
