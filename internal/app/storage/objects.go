package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/iot-sensordata/stageload/internal/awsutil"
	"github.com/iot-sensordata/stageload/internal/config"
	"github.com/iot-sensordata/stageload/internal/loadjob"
	"github.com/iot-sensordata/stageload/internal/objectstore"
)

// NewObjectStore creates the object store for the configured provider
func NewObjectStore(ctx context.Context, cfg *config.Config) (objectstore.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	osCfg := cfg.ObjectStore
	slog.Info("Creating object store", "provider", osCfg.Provider)

	switch osCfg.Provider {
	case config.ObjectStoreS3:
		awsCfg, err := awsutil.LoadConfig(ctx, osCfg.Region)
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if osCfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(osCfg.Endpoint)
			}
			o.UsePathStyle = osCfg.UsePathStyle
		})
		return objectstore.NewS3Store(client), nil

	case config.ObjectStoreMinio:
		creds, err := osCfg.ReadCredentials()
		if err != nil {
			return nil, err
		}
		return objectstore.NewMinioStore(objectstore.MinioConfig{
			EndpointURL:     osCfg.Endpoint,
			AccessKeyID:     creds.AccessKey,
			SecretAccessKey: creds.SecretKey,
			Region:          osCfg.Region,
		})

	case config.ObjectStoreLocal:
		return objectstore.NewLocalStore(osCfg.Root), nil

	default:
		return nil, fmt.Errorf("unknown object store provider: %s", osCfg.Provider)
	}
}

// NewTrigger creates the load job trigger for the configured engine. The
// objectstore engine loads through store.
func NewTrigger(ctx context.Context, cfg *config.Config, store objectstore.Store) (loadjob.Trigger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	loadCfg := cfg.Load
	slog.Info("Creating load trigger", "engine", loadCfg.Engine)

	switch loadCfg.Engine {
	case config.LoadEngineAthena:
		awsCfg, err := awsutil.LoadConfig(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		return loadjob.NewAthenaTrigger(athena.NewFromConfig(awsCfg),
			loadjob.WithQuery(loadCfg.Query),
			loadjob.WithDatabase(loadCfg.Database),
			loadjob.WithOutputLocation(loadCfg.OutputLocation),
			loadjob.WithWorkGroup(loadCfg.WorkGroup),
		), nil

	case config.LoadEngineObjectStore:
		if store == nil {
			return nil, fmt.Errorf("the %s load engine requires an object store", config.LoadEngineObjectStore)
		}
		return loadjob.NewObjectStoreTrigger(store, cfg.Stage.StagingContainer, loadCfg.TargetContainer), nil

	default:
		return nil, fmt.Errorf("unknown load engine: %s", loadCfg.Engine)
	}
}
