package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/satstac/stac-sentinel/internal/stac"
)

// Publisher is the part of *sns.Client the SNS sink uses.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var _ Publisher = (*sns.Client)(nil)

// SNS publishes each Item as a JSON message with routing attributes.
type SNS struct {
	client   Publisher
	topicARN string
}

// NewSNS creates an SNS sink.
func NewSNS(client Publisher, topicARN string) *SNS {
	return &SNS{client: client, topicARN: topicARN}
}

// NewSNSFromConfig creates an SNS sink using the default AWS credential chain
// and the region embedded in the topic ARN.
func NewSNSFromConfig(ctx context.Context, topicARN string) (*SNS, error) {
	region, err := RegionFromARN(topicARN)
	if err != nil {
		return nil, err
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return NewSNS(sns.NewFromConfig(cfg), topicARN), nil
}

// RegionFromARN returns the region field of arn:aws:sns:<region>:<account>:<name>.
func RegionFromARN(arn string) (string, error) {
	parts := strings.Split(arn, ":")
	if len(parts) < 6 || parts[3] == "" { //nolint:mnd
		return "", fmt.Errorf("%w: malformed arn %q", ErrUnsupportedTopic, arn)
	}

	return parts[3], nil
}

// Write publishes item.
func (s *SNS) Write(ctx context.Context, item *stac.Item) error {
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode item %s: %w", item.ID, err)
	}

	attrs := make(map[string]types.MessageAttributeValue)

	for _, a := range attributes(item) {
		dataType := "String"
		if a.numeric {
			dataType = "Number"
		}

		attrs[a.key] = types.MessageAttributeValue{
			DataType:    aws.String(dataType),
			StringValue: aws.String(a.value),
		}
	}

	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(s.topicARN),
		Message:           aws.String(string(body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("failed to publish item %s to sns: %w", item.ID, err)
	}

	return nil
}

// Close is a no-op.
func (s *SNS) Close() error {
	return nil
}
