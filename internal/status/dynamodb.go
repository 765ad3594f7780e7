package status

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go/ptr"

	"github.com/iot-sensordata/stageload/internal/runstate"
)

const statusKeyPrefix = "status#"

type statusItem struct {
	ID     string `dynamodbav:"query_execution_id"`
	Status string `dynamodbav:"status"`
}

// dynamoStatusPersistence stores the latest report as a JSON attribute of a
// "status#<key>" item in the run state table
type dynamoStatusPersistence struct {
	client    runstate.DynamoDBAPI
	tableName string
}

// NewDynamoDBStatusPersistence creates a DynamoDB-backed status persistence
func NewDynamoDBStatusPersistence(client runstate.DynamoDBAPI, tableName string) StatusPersistence {
	if tableName == "" {
		tableName = runstate.DefaultDynamoDBTable
	}
	return &dynamoStatusPersistence{client: client, tableName: tableName}
}

func (d *dynamoStatusPersistence) SaveStatus(ctx context.Context, key string, report *RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal run report for '%s': %w", key, err)
	}

	item, err := attributevalue.MarshalMap(statusItem{ID: statusKeyPrefix + key, Status: string(data)})
	if err != nil {
		return fmt.Errorf("failed to marshal status item for '%s': %w", key, err)
	}

	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: ptr.String(d.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("failed to save run report for '%s': %w", key, err)
	}
	return nil
}

func (d *dynamoStatusPersistence) LoadStatus(ctx context.Context, key string) (*RunReport, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: ptr.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"query_execution_id": &types.AttributeValueMemberS{Value: statusKeyPrefix + key},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load run report for '%s': %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item statusItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status item for '%s': %w", key, err)
	}

	var report RunReport
	if err := json.Unmarshal([]byte(item.Status), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run report for '%s': %w", key, err)
	}
	return &report, nil
}
