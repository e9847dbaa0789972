// internal/common/aws/sns.go
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the part of the SNS client used here; tests mock it.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient publishes high-risk alerts to a topic.
type SNSClient struct {
	api      SNSAPI
	topicARN string
}

func NewSNSClient(cfg aws.Config, topicARN string) *SNSClient {
	return &SNSClient{api: sns.NewFromConfig(cfg), topicARN: topicARN}
}

// NewSNSClientWithAPI wraps an existing SNS implementation.
func NewSNSClientWithAPI(api SNSAPI, topicARN string) *SNSClient {
	return &SNSClient{api: api, topicARN: topicARN}
}

// PublishAlert sends message to the topic with string attributes for
// subscription filtering. It returns the SNS message id.
func (s *SNSClient) PublishAlert(ctx context.Context, subject, message string, attrs map[string]string) (string, error) {
	msgAttrs := make(map[string]types.MessageAttributeValue, len(attrs))
	for k, v := range attrs {
		// SNS rejects empty attribute values
		if v == "" {
			continue
		}
		msgAttrs[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}

	out, err := s.api.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(s.topicARN),
		Subject:           aws.String(subject),
		Message:           aws.String(message),
		MessageAttributes: msgAttrs,
	})
	if err != nil {
		return "", fmt.Errorf("sns publish: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
