package runstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// DefaultDynamoDBTable is the table holding the run state record
	DefaultDynamoDBTable = "iot_sensordata_etl_queries"

	// dynamoKeyAttr is the partition key attribute of the table
	dynamoKeyAttr = "query_execution_id"

	leaseKeyPrefix = "lease#"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the stores
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

var _ DynamoDBAPI = (*dynamodb.Client)(nil)

type stateItem struct {
	ID        string `dynamodbav:"query_execution_id"`
	Value     string `dynamodbav:"value"`
	UpdatedAt string `dynamodbav:"updated_at,omitempty"`
}

type leaseItem struct {
	ID        string `dynamodbav:"query_execution_id"`
	Owner     string `dynamodbav:"owner"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

// DynamoDBStore keeps the run state as a single item of a DynamoDB table.
// It also implements Locker using a sibling lease item in the same table.
type DynamoDBStore struct {
	client    DynamoDBAPI
	tableName string
	key       string
	now       func() time.Time
}

var (
	_ Store  = (*DynamoDBStore)(nil)
	_ Locker = (*DynamoDBStore)(nil)
)

// NewDynamoDBStore creates a store over the given table and record key.
// Empty table or key fall back to the defaults.
func NewDynamoDBStore(client DynamoDBAPI, tableName, key string) *DynamoDBStore {
	if tableName == "" {
		tableName = DefaultDynamoDBTable
	}
	if key == "" {
		key = DefaultKey
	}
	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
		key:       key,
		now:       time.Now,
	}
}

func (s *DynamoDBStore) keyAttr(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoKeyAttr: &types.AttributeValueMemberS{Value: id},
	}
}

// Get reads the run state item. A missing item is Fresh.
func (s *DynamoDBStore) Get(ctx context.Context) (State, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.keyAttr(s.key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return State{}, fmt.Errorf("failed to get run state from %s: %w", s.tableName, err)
	}
	if len(out.Item) == 0 {
		return Fresh(), nil
	}

	var item stateItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return State{}, fmt.Errorf("failed to unmarshal run state item: %w", err)
	}
	state, err := Decode(item.Value)
	if err != nil {
		return State{}, fmt.Errorf("run state item %q in %s: %w", s.key, s.tableName, err)
	}
	return state, nil
}

// Put overwrites the run state item
func (s *DynamoDBStore) Put(ctx context.Context, state State) error {
	if state.Kind == KindFresh {
		return fmt.Errorf("cannot write a fresh run state, use Clear instead")
	}

	item, err := attributevalue.MarshalMap(stateItem{
		ID:        s.key,
		Value:     state.Encode(),
		UpdatedAt: s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal run state item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put run state into %s: %w", s.tableName, err)
	}
	return nil
}

// Clear deletes the run state item
func (s *DynamoDBStore) Clear(ctx context.Context) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.keyAttr(s.key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete run state from %s: %w", s.tableName, err)
	}
	return nil
}

// Acquire writes the lease item if it is absent, expired, or already owned by owner
func (s *DynamoDBStore) Acquire(ctx context.Context, owner string, ttl time.Duration) (Lease, error) {
	now := s.now()
	leaseID := leaseKeyPrefix + s.key

	item, err := attributevalue.MarshalMap(leaseItem{
		ID:        leaseID,
		Owner:     owner,
		ExpiresAt: now.Add(ttl).Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lease item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#id) OR #exp < :now OR #owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#id":    dynamoKeyAttr,
			"#exp":   "expires_at",
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, ErrLeaseHeld
		}
		return nil, fmt.Errorf("failed to acquire lease in %s: %w", s.tableName, err)
	}

	return &dynamoLease{store: s, id: leaseID, owner: owner}, nil
}

type dynamoLease struct {
	store *DynamoDBStore
	id    string
	owner string
}

func (l *dynamoLease) Release(ctx context.Context) error {
	_, err := l.store.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(l.store.tableName),
		Key:                 l.store.keyAttr(l.id),
		ConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: l.owner},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			slog.Warn("Lease was taken over before release", "lease", l.id, "owner", l.owner)
			return nil
		}
		return fmt.Errorf("failed to release lease in %s: %w", l.store.tableName, err)
	}
	return nil
}
