// Package aws implements dynamic authentication for AWS RDS IAM.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"
	"github.com/jackc/pgx/v5"

	"github.com/iot-sensordata/stageload/internal/awsutil"
	"github.com/iot-sensordata/stageload/internal/config"
)

// getRegion resolves the AWS region from the configuration, detecting
// it from IMDS if the region is set to "detect".
func getRegion(ctx context.Context, cfg *config.DatabaseConfig) (string, error) {
	if cfg.DynamicAuth.AWSRDSIAM.Region == "" {
		return "", fmt.Errorf("AWS RDS IAM region is not configured")
	}
	return awsutil.ResolveRegion(ctx, cfg.DynamicAuth.AWSRDSIAM.Region)
}

// getToken generates an AWS RDS IAM authentication token for the
// given user. The token can be used as a password in a PostgreSQL connection string.
func getToken(ctx context.Context, cfg *config.DatabaseConfig, region, user string) (string, error) {
	awsCfg, err := awsutil.LoadConfig(ctx, region)
	if err != nil {
		return "", err
	}

	dbEndpoint := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	token, err := auth.BuildAuthToken(ctx, dbEndpoint, region, user, awsCfg.Credentials)
	if err != nil {
		return "", fmt.Errorf("failed to build authentication token: %w", err)
	}

	return token, nil
}

// NewToken resolves an AWS RDS IAM authentication token for user.
func NewToken(
	ctx context.Context,
	cfg *config.DatabaseConfig,
	user string,
) (string, error) {
	region, err := getRegion(ctx, cfg)
	if err != nil {
		return "", err
	}

	return getToken(ctx, cfg, region, user)
}

// PgxAuthFunc creates a function that authenticates with AWS RDS IAM.
//
// It assumes that the role attached to the workload (the Lambda execution
// role or the task role) can be used to authenticate with the database.
// A fresh token is built for every new connection.
func PgxAuthFunc(
	ctx context.Context,
	cfg *config.DatabaseConfig,
	user string,
) (func(ctx context.Context, connConfig *pgx.ConnConfig) error, error) {
	region, err := getRegion(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, connConfig *pgx.ConnConfig) error {
		token, err := getToken(ctx, cfg, region, user)
		if err != nil {
			return err
		}

		connConfig.Password = token
		return nil
	}, nil
}
