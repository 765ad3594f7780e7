package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig configures a client for an S3-compatible endpoint
type MinioConfig struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UseSSL          bool
}

// minioAPI is the subset of *minio.Client used by MinioStore
type minioAPI interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	CopyObject(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error)
	RemoveObjects(ctx context.Context, bucketName string, objectsCh <-chan minio.ObjectInfo, opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

var (
	_ minioAPI = (*minio.Client)(nil)
	_ Store    = (*MinioStore)(nil)
)

// MinioStore implements Store over any S3-compatible endpoint
type MinioStore struct {
	client minioAPI
}

// NewMinioStore creates a minio client from cfg
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.EndpointURL == "" {
		return nil, wrapError(CodeEndpointUnreachable, false, fmt.Errorf("endpoint URL is required"))
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, wrapError(CodePermissionDenied, false, fmt.Errorf("credentials are required"))
	}

	u, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, wrapError(CodeEndpointUnreachable, false, fmt.Errorf("invalid endpoint URL: %w", err))
	}
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.EndpointURL
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL || u.Scheme == "https",
		Region: cfg.Region,
	})
	if err != nil {
		return nil, wrapError(CodeEndpointUnreachable, true, fmt.Errorf("failed to create minio client: %w", err))
	}
	return &MinioStore{client: client}, nil
}

// List walks the bucket recursively
func (s *MinioStore) List(ctx context.Context, container string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, container, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", container, classifyMinioError(obj.Err))
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Copy issues a server-side copy
func (s *MinioStore) Copy(ctx context.Context, srcContainer, key, dstContainer string) error {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dstContainer, Object: key},
		minio.CopySrcOptions{Bucket: srcContainer, Object: key},
	)
	if err != nil {
		return fmt.Errorf("failed to copy %s/%s to %s: %w", srcContainer, key, dstContainer, classifyMinioError(err))
	}
	return nil
}

// Delete streams keys into RemoveObjects and fails on the first reported error
func (s *MinioStore) Delete(ctx context.Context, container string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	objectsCh := make(chan minio.ObjectInfo)
	go func() {
		defer close(objectsCh)
		for _, key := range keys {
			select {
			case objectsCh <- minio.ObjectInfo{Key: key}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		errs     []error
		firstErr error
	)
	for rerr := range s.client.RemoveObjects(ctx, container, objectsCh, minio.RemoveObjectsOptions{}) {
		if firstErr == nil {
			firstErr = rerr.Err
		}
		errs = append(errs, fmt.Errorf("%s: %w", rerr.ObjectName, rerr.Err))
	}
	if len(errs) > 0 {
		classified := classifyMinioError(firstErr)
		classified.Err = errors.Join(errs...)
		return fmt.Errorf("failed to delete %d object(s) from %s: %w", len(errs), container, classified)
	}
	return ctx.Err()
}

// Get opens an object for reading
func (s *MinioStore) Get(ctx context.Context, container, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, container, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", container, key, classifyMinioError(err))
	}
	// GetObject is lazy; Stat surfaces a missing object here rather than on first read
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("failed to get %s/%s: %w", container, key, classifyMinioError(err))
	}
	return obj, nil
}

// Put uploads data
func (s *MinioStore) Put(ctx context.Context, container, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, container, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", container, key, classifyMinioError(err))
	}
	return nil
}

// classifyMinioError converts minio-go errors to *Error
func classifyMinioError(err error) *Error {
	if resp := minio.ToErrorResponse(err); resp.Code != "" {
		if classified := classifyByCode(resp.Code, err); classified != nil {
			return classified
		}
		return wrapError(CodeTransferFailed, resp.StatusCode >= 500, err)
	}
	return classifyFallback(err)
}
