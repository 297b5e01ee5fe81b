package notify

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/drblury/alertflow/internal/runtime/awsconf"
	errspkg "github.com/drblury/alertflow/internal/runtime/errors"
	"github.com/drblury/alertflow/internal/runtime/logging"
)

// BackendSNS names the direct SNS publisher.
const BackendSNS = "sns"

// MaxSubjectLength is the longest subject SNS accepts.
const MaxSubjectLength = 100

// SNSClient is the subset of the SNS API the publisher uses.
type SNSClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// NewSNSClient allows overriding the client constructor for testing.
var NewSNSClient = func(cfg aws.Config) SNSClient {
	return sns.NewFromConfig(cfg)
}

// SNSSettings is what the SNS publisher reads from config.
type SNSSettings interface {
	awsconf.Settings
	GetSNSTopicARN() string
}

type SNSPublisher struct {
	client   SNSClient
	topicARN string
	logger   logging.ServiceLogger
}

func NewSNSPublisher(client SNSClient, topicARN string, logger logging.ServiceLogger) (*SNSPublisher, error) {
	if client == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if topicARN == "" {
		return nil, errspkg.ErrTopicRequired
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SNSPublisher{
		client:   client,
		topicARN: topicARN,
		logger:   logger.With(logging.LogFields{"topic_arn": topicARN}),
	}, nil
}

// NewSNSPublisherFromConfig builds the client from the shared AWS config.
func NewSNSPublisherFromConfig(ctx context.Context, settings SNSSettings, logger logging.ServiceLogger) (*SNSPublisher, error) {
	if settings == nil {
		return nil, errspkg.ErrConfigRequired
	}
	awsCfg, err := awsconf.Load(ctx, settings, logger)
	if err != nil {
		return nil, err
	}
	return NewSNSPublisher(NewSNSClient(awsCfg), settings.GetSNSTopicARN(), logger)
}

// TopicARN is the target topic.
func (p *SNSPublisher) TopicARN() string {
	return p.topicARN
}

func (p *SNSPublisher) Publish(ctx context.Context, subject, payload string) error {
	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(truncateSubject(subject)),
		Message:  aws.String(payload),
	})
	if err != nil {
		return Wrap(BackendSNS, subject, err)
	}
	if out == nil {
		return Wrap(BackendSNS, subject, errors.New("empty publish response"))
	}

	p.logger.Info("Notification published", logging.LogFields{
		"subject":    subject,
		"message_id": aws.ToString(out.MessageId),
	})
	return nil
}

func truncateSubject(subject string) string {
	if len(subject) <= MaxSubjectLength {
		return subject
	}
	cut := MaxSubjectLength
	for cut > 0 && !utf8.RuneStart(subject[cut]) {
		cut--
	}
	return subject[:cut]
}
