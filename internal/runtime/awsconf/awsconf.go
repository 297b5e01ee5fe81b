// Package awsconf builds the aws.Config shared by the DynamoDB sink, the SNS
// publisher and the SQS replay client.
package awsconf

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/drblury/alertflow/internal/runtime/logging"
)

// Settings exposes the resolved AWS keys. *config.Config implements it.
type Settings interface {
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// DefaultConfigLoader allows overriding the AWS config loader for testing.
var DefaultConfigLoader = awsconfig.LoadDefaultConfig

// Load resolves region, credentials and endpoint. Static credentials are used
// only when both halves are set; otherwise the default chain applies.
func Load(ctx context.Context, settings Settings, logger logging.ServiceLogger) (aws.Config, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	var opts []func(*awsconfig.LoadOptions) error
	region := ""
	if settings != nil {
		region = settings.GetAWSRegion()
		accessKey := settings.GetAWSAccessKeyID()
		secretKey := settings.GetAWSSecretAccessKey()

		if region != "" {
			opts = append(opts, awsconfig.WithRegion(region))
		}
		if accessKey != "" && secretKey != "" {
			logger.Debug("Using static AWS credentials from config", nil)
			opts = append(opts, awsconfig.WithCredentialsProvider(StaticCredentials(accessKey, secretKey)))
		}
	}

	awsCfg, err := DefaultConfigLoader(ctx, opts...)
	if err != nil {
		logger.Error("Failed to load AWS default config", err, logging.LogFields{"requested_region": region})
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}

	// region is forced in case the loader ignores options
	if region != "" {
		awsCfg.Region = region
	}

	endpoint, err := EndpointURL(settings)
	if err != nil {
		return aws.Config{}, err
	}
	if endpoint != nil {
		awsCfg.BaseEndpoint = aws.String(endpoint.String())
	}

	logger.Info("Created AWS config", logging.LogFields{
		"region":          awsCfg.Region,
		"custom_endpoint": HasCustomEndpoint(awsCfg),
	})
	return awsCfg, nil
}

// EndpointURL parses the configured endpoint, nil when unset.
func EndpointURL(settings Settings) (*url.URL, error) {
	if settings == nil || settings.GetAWSEndpoint() == "" {
		return nil, nil
	}
	parsed, err := url.Parse(settings.GetAWSEndpoint())
	if err != nil {
		return nil, fmt.Errorf("failed to parse AWS endpoint: %w", err)
	}
	return parsed, nil
}

// HasCustomEndpoint reports whether the config targets a non-default endpoint.
func HasCustomEndpoint(cfg aws.Config) bool {
	return cfg.BaseEndpoint != nil && *cfg.BaseEndpoint != ""
}

func StaticCredentials(accessKeyID, secretAccessKey string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
			Source:          "alertflow",
		}, nil
	})
}
