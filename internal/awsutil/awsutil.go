// Package awsutil loads AWS SDK configuration for the pipeline's clients.
package awsutil

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

// RegionDetect asks the instance metadata service for the region
const RegionDetect = "detect"

// imdsTimeout keeps region detection from hanging outside EC2
const imdsTimeout = 2 * time.Second

// ResolveRegion returns region, or the region reported by IMDS when region is "detect".
// An empty region is returned as is and left to the SDK's default chain.
func ResolveRegion(ctx context.Context, region string) (string, error) {
	if region != RegionDetect {
		return region, nil
	}

	imdsClient := imds.New(imds.Options{
		HTTPClient: &http.Client{
			Timeout: imdsTimeout,
		},
	})

	regionOut, err := imdsClient.GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get region from IMDS: %w", err)
	}

	return regionOut.Region, nil
}

// LoadConfig loads the default AWS configuration for region
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	resolved, err := ResolveRegion(ctx, region)
	if err != nil {
		return aws.Config{}, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if resolved != "" {
		opts = append(opts, awsconfig.WithRegion(resolved))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}
