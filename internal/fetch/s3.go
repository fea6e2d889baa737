package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Presigner signs S3 GetObject requests. *s3.PresignClient satisfies it.
type Presigner interface {
	PresignGetObject(
		ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions),
	) (*v4.PresignedHTTPRequest, error)
}

var _ Presigner = (*s3.PresignClient)(nil)

// NewS3Presigner builds a presigner from the default AWS credential chain.
func NewS3Presigner(ctx context.Context, region string) (*s3.PresignClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewPresignClient(s3.NewFromConfig(cfg)), nil
}

// ParseS3URL splits s3://bucket/key into its parts.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 url %q: %w", raw, err)
	}

	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q is not an s3 url", ErrUnsupportedScheme, raw)
	}

	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

func (f *Fetcher) fetchS3(ctx context.Context, u *url.URL) ([]byte, error) {
	if f.presigner == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPresigner, u.String())
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	}

	if f.cfg.RequesterPays {
		input.RequestPayer = types.RequestPayerRequester
	}

	signed, err := f.presigner.PresignGetObject(ctx, input, s3.WithPresignExpires(f.cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to presign %s: %w", u.String(), err)
	}

	return f.get(ctx, signed.URL, signed.SignedHeader)
}
