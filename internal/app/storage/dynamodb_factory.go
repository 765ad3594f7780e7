package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/iot-sensordata/stageload/internal/awsutil"
	"github.com/iot-sensordata/stageload/internal/config"
	"github.com/iot-sensordata/stageload/internal/runstate"
	"github.com/iot-sensordata/stageload/internal/status"
)

// DynamoDBFactory creates DynamoDB-backed storage components.
// The run state, the lease and the run reports share one table.
type DynamoDBFactory struct {
	config *config.Config
	client runstate.DynamoDBAPI
	store  *runstate.DynamoDBStore
}

var _ Factory = (*DynamoDBFactory)(nil)

// DynamoDBFactoryOption is a functional option for configuring the DynamoDBFactory
type DynamoDBFactoryOption func(*DynamoDBFactory)

// WithDynamoDBClient uses client instead of one built from the default AWS configuration
func WithDynamoDBClient(client runstate.DynamoDBAPI) DynamoDBFactoryOption {
	return func(f *DynamoDBFactory) {
		f.client = client
	}
}

// NewDynamoDBFactory creates a new DynamoDB-backed storage factory
func NewDynamoDBFactory(ctx context.Context, cfg *config.Config, opts ...DynamoDBFactoryOption) (*DynamoDBFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	factory := &DynamoDBFactory{config: cfg}
	for _, opt := range opts {
		opt(factory)
	}

	if factory.client == nil {
		awsCfg, err := awsutil.LoadConfig(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		factory.client = dynamodb.NewFromConfig(awsCfg)
	}

	slog.Info("Creating DynamoDB-backed storage factory", "table", cfg.State.Table)

	factory.store = runstate.NewDynamoDBStore(factory.client, cfg.State.Table, cfg.State.Key)
	return factory, nil
}

// CreateStateStore returns the DynamoDB run state store
func (d *DynamoDBFactory) CreateStateStore(_ context.Context) (runstate.Store, error) {
	slog.Debug("Creating DynamoDB state store")
	return d.store, nil
}

// CreateLocker returns the conditional-write lease over the run state table
func (d *DynamoDBFactory) CreateLocker(_ context.Context) (runstate.Locker, error) {
	return d.store, nil
}

// CreateStatusPersistence returns report persistence in the run state table
func (d *DynamoDBFactory) CreateStatusPersistence(_ context.Context) (status.StatusPersistence, error) {
	return status.NewDynamoDBStatusPersistence(d.client, d.config.State.Table), nil
}

// Cleanup is a no-op; the SDK client holds no resources that need closing
func (*DynamoDBFactory) Cleanup() {}
