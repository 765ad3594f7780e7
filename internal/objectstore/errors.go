package objectstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error codes attached to *Error
const (
	CodeContainerNotFound   = "E_CONTAINER_NOT_FOUND"
	CodeObjectNotFound      = "E_OBJECT_NOT_FOUND"
	CodePermissionDenied    = "E_PERMISSION_DENIED"
	CodeTimeout             = "E_TIMEOUT"
	CodeEndpointUnreachable = "E_ENDPOINT_UNREACHABLE"
	CodeTransferFailed      = "E_TRANSFER_FAILED"
)

// Error wraps a backend failure with a stable code and a retryability hint
type Error struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func wrapError(code string, retryable bool, err error) *Error {
	return &Error{Code: code, Retryable: retryable, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there is none
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether err carries a retryable *Error
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

// classifyByCode maps S3-style error codes shared by the AWS SDK and minio
func classifyByCode(code string, err error) *Error {
	switch code {
	case "NoSuchBucket":
		return wrapError(CodeContainerNotFound, false, err)
	case "NoSuchKey", "NotFound":
		return wrapError(CodeObjectNotFound, false, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return wrapError(CodePermissionDenied, false, err)
	}
	return nil
}

// classifyFallback inspects context errors and message text when no code is available
func classifyFallback(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return wrapError(CodeTimeout, true, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return wrapError(CodeEndpointUnreachable, true, err)
	case strings.Contains(msg, "timeout"):
		return wrapError(CodeTimeout, true, err)
	}
	return wrapError(CodeTransferFailed, true, err)
}
