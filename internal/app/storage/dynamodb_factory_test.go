package storage

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iot-sensordata/stageload/internal/config"
	"github.com/iot-sensordata/stageload/internal/runstate"
)

// recordingDynamoDB remembers the tables it was asked about and reports every item as missing
type recordingDynamoDB struct {
	tables []string
}

func (r *recordingDynamoDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	r.tables = append(r.tables, *in.TableName)
	return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{}}, nil
}

func (r *recordingDynamoDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	r.tables = append(r.tables, *in.TableName)
	return &dynamodb.PutItemOutput{}, nil
}

func (r *recordingDynamoDB) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	r.tables = append(r.tables, *in.TableName)
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestNewDynamoDBFactory(t *testing.T) {
	t.Parallel()

	t.Run("nil config returns error", func(t *testing.T) {
		t.Parallel()
		factory, err := NewDynamoDBFactory(context.Background(), nil)
		require.Error(t, err)
		assert.Nil(t, factory)
	})

	t.Run("components share the configured table", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		client := &recordingDynamoDB{}
		cfg := &config.Config{State: config.StateConfig{
			Backend: config.StateBackendDynamoDB,
			Table:   "etl_state",
			Key:     runstate.DefaultKey,
		}}

		factory, err := NewDynamoDBFactory(ctx, cfg, WithDynamoDBClient(client))
		require.NoError(t, err)
		defer factory.Cleanup()

		store, err := factory.CreateStateStore(ctx)
		require.NoError(t, err)
		locker, err := factory.CreateLocker(ctx)
		require.NoError(t, err)
		assert.Same(t, store, locker)

		state, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, runstate.Fresh(), state)

		reports, err := factory.CreateStatusPersistence(ctx)
		require.NoError(t, err)
		report, err := reports.LoadStatus(ctx, runstate.DefaultKey)
		require.NoError(t, err)
		assert.Nil(t, report)

		assert.Equal(t, []string{"etl_state", "etl_state"}, client.tables)
	})
}
