package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// ErrTopicRequired is returned when a publisher is created without a topic
var ErrTopicRequired = errors.New("topic ARN is required")

//go:generate mockgen -destination=mocks/mock_publisher.go -package=mocks -source=publisher.go SNSAPI,Publisher

// SNSAPI is the subset of the SNS client used by SNSPublisher
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher sends a plain text notification
type Publisher interface {
	Publish(ctx context.Context, message string) error
}

// SNSPublisher publishes messages to one SNS topic
type SNSPublisher struct {
	client   SNSAPI
	topicARN string
}

// NewSNSPublisher creates a publisher for topicARN
func NewSNSPublisher(client SNSAPI, topicARN string) (*SNSPublisher, error) {
	if topicARN == "" {
		return nil, ErrTopicRequired
	}
	return &SNSPublisher{client: client, topicARN: topicARN}, nil
}

// Publish sends message to the topic
func (p *SNSPublisher) Publish(ctx context.Context, message string) error {
	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.topicARN, err)
	}
	slog.Info("Notification published",
		"topic_arn", p.topicARN,
		"message_id", aws.ToString(out.MessageId))
	return nil
}
