// Package dynamodb persists alerts as flat DynamoDB items keyed by id.
package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/drblury/alertflow/internal/runtime/alert"
	"github.com/drblury/alertflow/internal/runtime/awsconf"
	"github.com/drblury/alertflow/internal/runtime/logging"
	"github.com/drblury/alertflow/internal/runtime/storage"
)

// BackendName is the name used to register this backend.
const BackendName = "dynamodb"

func init() {
	storage.Register(BackendName, Build)
}

// Client is the subset of the DynamoDB API the store uses.
type Client interface {
	PutItem(ctx context.Context, params *awsdynamodb.PutItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *awsdynamodb.GetItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.GetItemOutput, error)
	Scan(ctx context.Context, params *awsdynamodb.ScanInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.ScanOutput, error)
}

// NewClient allows overriding the client constructor for testing.
var NewClient = func(cfg aws.Config) Client {
	return awsdynamodb.NewFromConfig(cfg)
}

// Build loads the shared AWS config and targets cfg.GetDynamoDBTable().
func Build(ctx context.Context, cfg storage.Config, logger logging.ServiceLogger) (storage.Store, error) {
	table := cfg.GetDynamoDBTable()
	if table == "" {
		return nil, fmt.Errorf("dynamodb: table is required")
	}
	awsCfg, err := awsconf.Load(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Using DynamoDB table", logging.LogFields{"table": table})
	return New(NewClient(awsCfg), table), nil
}

type Store struct {
	client Client
	table  string
}

func New(client Client, table string) *Store {
	return &Store{client: client, table: table}
}

// Table is the target table name.
func (s *Store) Table() string {
	return s.table
}

func (s *Store) Save(ctx context.Context, rec alert.Record) error {
	item, err := attributevalue.MarshalMap(rec.Item())
	if err != nil {
		return storage.Wrap(BackendName, "marshal", rec.ID, err)
	}
	_, err = s.client.PutItem(ctx, &awsdynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	return storage.Wrap(BackendName, "save", rec.ID, err)
}

func (s *Store) Get(ctx context.Context, id string) (alert.Record, error) {
	out, err := s.client.GetItem(ctx, &awsdynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			alert.FieldID: &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return alert.Record{}, storage.Wrap(BackendName, "get", id, err)
	}
	if len(out.Item) == 0 {
		return alert.Record{}, storage.Wrap(BackendName, "get", id, storage.ErrNotFound)
	}

	var doc map[string]any
	if err := attributevalue.UnmarshalMap(out.Item, &doc); err != nil {
		return alert.Record{}, storage.Wrap(BackendName, "unmarshal", id, err)
	}
	return alert.RecordFromItem(doc), nil
}

// List reads a single scan page of at most limit items.
func (s *Store) List(ctx context.Context, limit int) ([]alert.Record, error) {
	limit = storage.NormalizeLimit(limit)

	out, err := s.client.Scan(ctx, &awsdynamodb.ScanInput{
		TableName: aws.String(s.table),
		Limit:     aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, storage.Wrap(BackendName, "scan", "", err)
	}

	var docs []map[string]any
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &docs); err != nil {
		return nil, storage.Wrap(BackendName, "unmarshal", "", err)
	}
	records := make([]alert.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, alert.RecordFromItem(doc))
	}
	return records, nil
}

func (s *Store) Close() error {
	return nil
}
