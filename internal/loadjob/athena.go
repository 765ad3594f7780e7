package loadjob

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/smithy-go/ptr"
)

const (
	// DefaultDatabase is the Glue catalog database holding the staging and processed tables
	DefaultDatabase = "iot_sensor_data"
	// DefaultOutputLocation is where Athena writes query results
	DefaultOutputLocation = "s3://iot-sensordata-processed/partitioned/"
	// DefaultWorkGroup is the Athena workgroup queries run in
	DefaultWorkGroup = "primary"
	// DefaultQuery loads every staged reading into the day-partitioned table
	DefaultQuery = "insert into iot_sensor_data.iot_data_processed " +
		"(deviceid, datetime, temperature, humidity, winddirection, windintensity, rainheight, day) " +
		"select deviceid, datetime, temperature, humidity, winddirection, windintensity, rainheight, " +
		"date_format(datetime, '%Y-%m-%d') as day from iot_data_staging"
)

// AthenaAPI is the subset of the Athena client used by AthenaTrigger
type AthenaAPI interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

var (
	_ AthenaAPI = (*athena.Client)(nil)
	_ Trigger   = (*AthenaTrigger)(nil)
)

// AthenaTrigger runs the load as an Athena INSERT ... SELECT query
type AthenaTrigger struct {
	client         AthenaAPI
	query          string
	database       string
	outputLocation string
	workGroup      string
}

// AthenaOption configures an AthenaTrigger
type AthenaOption func(*AthenaTrigger)

// WithQuery overrides the load query
func WithQuery(query string) AthenaOption {
	return func(t *AthenaTrigger) {
		if query != "" {
			t.query = query
		}
	}
}

// WithDatabase overrides the query execution database
func WithDatabase(database string) AthenaOption {
	return func(t *AthenaTrigger) {
		if database != "" {
			t.database = database
		}
	}
}

// WithOutputLocation overrides the result output location
func WithOutputLocation(location string) AthenaOption {
	return func(t *AthenaTrigger) {
		if location != "" {
			t.outputLocation = location
		}
	}
}

// WithWorkGroup overrides the workgroup
func WithWorkGroup(workGroup string) AthenaOption {
	return func(t *AthenaTrigger) {
		if workGroup != "" {
			t.workGroup = workGroup
		}
	}
}

// NewAthenaTrigger creates a trigger with the default query and locations
func NewAthenaTrigger(client AthenaAPI, opts ...AthenaOption) *AthenaTrigger {
	t := &AthenaTrigger{
		client:         client,
		query:          DefaultQuery,
		database:       DefaultDatabase,
		outputLocation: DefaultOutputLocation,
		workGroup:      DefaultWorkGroup,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Submit starts the load query and returns its execution id
func (t *AthenaTrigger) Submit(ctx context.Context) (string, error) {
	out, err := t.client.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString: ptr.String(t.query),
		QueryExecutionContext: &types.QueryExecutionContext{
			Database: ptr.String(t.database),
		},
		ResultConfiguration: &types.ResultConfiguration{
			OutputLocation: ptr.String(t.outputLocation),
		},
		WorkGroup: ptr.String(t.workGroup),
	})
	if err != nil {
		return "", fmt.Errorf("failed to start query execution: %w", err)
	}

	id := ptr.ToString(out.QueryExecutionId)
	if id == "" {
		return "", fmt.Errorf("athena returned an empty query execution id")
	}
	return id, nil
}

// Status reads the query execution state
func (t *AthenaTrigger) Status(ctx context.Context, jobID string) (Status, error) {
	out, err := t.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
		QueryExecutionId: ptr.String(jobID),
	})
	if err != nil {
		return StatusUnknown, fmt.Errorf("failed to get query execution %s: %w", jobID, err)
	}
	if out.QueryExecution == nil || out.QueryExecution.Status == nil {
		return StatusUnknown, nil
	}
	return ParseStatus(string(out.QueryExecution.Status.State)), nil
}
