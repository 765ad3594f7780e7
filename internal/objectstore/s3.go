package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/aws/smithy-go/ptr"
)

// maxDeleteBatch is the DeleteObjects per-request key limit
const maxDeleteBatch = 1000

// S3API is the subset of the S3 client used by S3Store
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	_ S3API = (*s3.Client)(nil)
	_ Store = (*S3Store)(nil)
)

// S3Store implements Store over Amazon S3
type S3Store struct {
	client S3API
}

// NewS3Store creates a store over the given client
func NewS3Store(client S3API) *S3Store {
	return &S3Store{client: client}
}

// List pages through ListObjectsV2
func (s *S3Store) List(ctx context.Context, container string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: ptr.String(container),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", container, classifyS3Error(err))
		}
		for _, obj := range page.Contents {
			keys = append(keys, ptr.ToString(obj.Key))
		}
	}
	return keys, nil
}

// copySource builds the URL-encoded bucket/key value CopyObject expects
func copySource(bucket, key string) string {
	return (&url.URL{Path: bucket + "/" + key}).EscapedPath()
}

// Copy issues a server-side CopyObject
func (s *S3Store) Copy(ctx context.Context, srcContainer, key, dstContainer string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     ptr.String(dstContainer),
		Key:        ptr.String(key),
		CopySource: ptr.String(copySource(srcContainer, key)),
	})
	if err != nil {
		return fmt.Errorf("failed to copy %s/%s to %s: %w", srcContainer, key, dstContainer, classifyS3Error(err))
	}
	return nil
}

// Delete removes keys in batches of up to 1000. Per-key failures reported in
// a DeleteObjects response fail the call.
func (s *S3Store) Delete(ctx context.Context, container string, keys []string) error {
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: ptr.String(key)})
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: ptr.String(container),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   ptr.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects from %s: %w", container, classifyS3Error(err))
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return fmt.Errorf("failed to delete %d object(s) from %s: %w", len(out.Errors), container,
				wrapError(CodeTransferFailed, true, fmt.Errorf("%s: %s: %s",
					ptr.ToString(first.Key), ptr.ToString(first.Code), ptr.ToString(first.Message))))
		}
	}
	return nil
}

// Get opens an object body
func (s *S3Store) Get(ctx context.Context, container, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: ptr.String(container),
		Key:    ptr.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", container, key, classifyS3Error(err))
	}
	return out.Body, nil
}

// Put uploads data in a single request
func (s *S3Store) Put(ctx context.Context, container, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        ptr.String(container),
		Key:           ptr.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: ptr.Int64(int64(len(data))),
		ContentType:   ptr.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", container, key, classifyS3Error(err))
	}
	return nil
}

// classifyS3Error converts AWS SDK errors to *Error
func classifyS3Error(err error) *Error {
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return wrapError(CodeContainerNotFound, false, err)
	}
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return wrapError(CodeObjectNotFound, false, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if classified := classifyByCode(apiErr.ErrorCode(), err); classified != nil {
			return classified
		}
		return wrapError(CodeTransferFailed, apiErr.ErrorFault() == smithy.FaultServer, err)
	}

	return classifyFallback(err)
}
