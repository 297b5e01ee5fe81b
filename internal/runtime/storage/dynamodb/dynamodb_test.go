package dynamodb

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/alertflow/internal/runtime/alert"
	"github.com/drblury/alertflow/internal/runtime/awsconf"
	"github.com/drblury/alertflow/internal/runtime/config"
	"github.com/drblury/alertflow/internal/runtime/storage"
)

type fakeClient struct {
	items   map[string]map[string]types.AttributeValue
	puts    []*awsdynamodb.PutItemInput
	scans   []*awsdynamodb.ScanInput
	failPut error
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: map[string]map[string]types.AttributeValue{}}
}

func (f *fakeClient) PutItem(ctx context.Context, in *awsdynamodb.PutItemInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	if f.failPut != nil {
		return nil, f.failPut
	}
	id := in.Item[alert.FieldID].(*types.AttributeValueMemberS).Value
	f.items[id] = in.Item
	return &awsdynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) GetItem(ctx context.Context, in *awsdynamodb.GetItemInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.GetItemOutput, error) {
	id := in.Key[alert.FieldID].(*types.AttributeValueMemberS).Value
	return &awsdynamodb.GetItemOutput{Item: f.items[id]}, nil
}

func (f *fakeClient) Scan(ctx context.Context, in *awsdynamodb.ScanInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.ScanOutput, error) {
	f.scans = append(f.scans, in)
	out := &awsdynamodb.ScanOutput{}
	for _, item := range f.items {
		if int32(len(out.Items)) >= aws.ToInt32(in.Limit) {
			break
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func cpuHigh(id string) alert.Record {
	return alert.Record{
		Message: alert.Message{Valid: true, Fields: map[string]any{
			"tipo":     "CPU_HIGH",
			"servico":  "api-gateway",
			"valor":    92.5,
			"mensagem": "CPU usage above threshold",
		}},
		ID:        id,
		Timestamp: "2024-05-01T10:00:00.000000Z",
		Status:    alert.StatusProcessed,
	}
}

func TestSaveWritesFlatItem(t *testing.T) {
	client := newFakeClient()
	store := New(client, "MonitoringAlerts")

	require.NoError(t, store.Save(context.Background(), cpuHigh("01J0")))
	require.Len(t, client.puts, 1)

	put := client.puts[0]
	assert.Equal(t, "MonitoringAlerts", aws.ToString(put.TableName))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "01J0"}, put.Item["id"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "CPU_HIGH"}, put.Item["tipo"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "PROCESSED"}, put.Item["status"])
	assert.Equal(t, &types.AttributeValueMemberBOOL{Value: true}, put.Item["is_valid"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "92.5"}, put.Item["valor"])
}

func TestSaveWrapsClientError(t *testing.T) {
	client := newFakeClient()
	client.failPut = errors.New("throttled")

	err := New(client, "t").Save(context.Background(), cpuHigh("01J0"))
	require.Error(t, err)

	var storageErr *storage.Error
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "dynamodb", storageErr.Backend)
	assert.Equal(t, "01J0", storageErr.ID)
	assert.Contains(t, err.Error(), "throttled")
}

func TestGetRoundTrip(t *testing.T) {
	store := New(newFakeClient(), "t")
	require.NoError(t, store.Save(context.Background(), cpuHigh("01J0")))

	got, err := store.Get(context.Background(), "01J0")
	require.NoError(t, err)
	assert.Equal(t, cpuHigh("01J0"), got)

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListUsesLimit(t *testing.T) {
	client := newFakeClient()
	store := New(client, "t")
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(context.Background(), cpuHigh(id)))
	}

	got, err := store.List(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, client.scans, 2)
	assert.Equal(t, int32(2), aws.ToInt32(client.scans[0].Limit))
	assert.Equal(t, int32(storage.DefaultListLimit), aws.ToInt32(client.scans[1].Limit))

	_, err = store.List(context.Background(), math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, int32(storage.MaxListLimit), aws.ToInt32(client.scans[2].Limit))
}

func TestBuildUsesConfig(t *testing.T) {
	origLoader := awsconf.DefaultConfigLoader
	origClient := NewClient
	t.Cleanup(func() {
		awsconf.DefaultConfigLoader = origLoader
		NewClient = origClient
	})

	awsconf.DefaultConfigLoader = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	var gotCfg aws.Config
	client := newFakeClient()
	NewClient = func(cfg aws.Config) Client {
		gotCfg = cfg
		return client
	}

	cfg := &config.Config{
		StorageBackend:     BackendName,
		DynamoDBTable:      "MonitoringAlerts",
		LocalstackHostname: "localstack",
	}
	store, err := storage.Build(context.Background(), cfg, nil)
	require.NoError(t, err)

	dynamo, ok := store.(*Store)
	require.True(t, ok)
	assert.Equal(t, "MonitoringAlerts", dynamo.Table())
	assert.Equal(t, "us-east-1", gotCfg.Region)
	assert.Equal(t, "http://localstack:4566", aws.ToString(gotCfg.BaseEndpoint))
}

func TestBuildRequiresTable(t *testing.T) {
	_, err := Build(context.Background(), &config.Config{}, nil)
	assert.Error(t, err)
}
