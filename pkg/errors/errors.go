// Package errors provides the structured error taxonomy for bucketfs
// operations with error codes, categories, and object context.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode identifies a failure condition surfaced by a filesystem
// operation. Callers branch on the code, never on concrete error types.
type ErrorCode string

const (
	// Storage conditions
	ErrCodeNotFound           ErrorCode = "OBJECT_NOT_FOUND"
	ErrCodeAlreadyExists      ErrorCode = "OBJECT_ALREADY_EXISTS"
	ErrCodePreconditionFailed ErrorCode = "PRECONDITION_FAILED"

	// Filesystem conditions
	ErrCodePseudoDirectory ErrorCode = "PSEUDO_DIRECTORY"
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	ErrCodeUnsupported     ErrorCode = "UNSUPPORTED_OPERATION"

	// State conditions
	ErrCodeClosedChannel ErrorCode = "CHANNEL_CLOSED"

	// Configuration conditions
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad    ErrorCode = "CONFIG_LOAD"

	// Anything the backend reports that has no mapping above
	ErrCodeBackend ErrorCode = "BACKEND_ERROR"
)

// ErrorCategory groups error codes for logging and metrics labels.
type ErrorCategory string

const (
	CategoryStorage       ErrorCategory = "storage"
	CategoryFilesystem    ErrorCategory = "filesystem"
	CategoryState         ErrorCategory = "state"
	CategoryConfiguration ErrorCategory = "configuration"
)

// Error is the structured error returned by every bucketfs operation that
// can fail. Bucket and Key locate the object the operation was acting on.
type Error struct {
	Code      ErrorCode     `json:"code"`
	Category  ErrorCategory `json:"category"`
	Op        string        `json:"op,omitempty"`
	Bucket    string        `json:"bucket,omitempty"`
	Key       string        `json:"key,omitempty"`
	Message   string        `json:"message"`
	Cause     error         `json:"-"`
	Timestamp time.Time     `json:"timestamp"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		fmt.Fprintf(&b, "[%s] ", e.Op)
	}
	b.WriteString(string(e.Code))
	if e.Bucket != "" {
		fmt.Fprintf(&b, " %s", e.Bucket)
		if e.Key != "" {
			fmt.Fprintf(&b, "/%s", e.Key)
		}
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches two bucketfs errors by code, so sentinel comparisons like
// errors.Is(err, &Error{Code: ErrCodeNotFound}) work across wrapping.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Category:  categoryOf(code),
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates an error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// WithOp sets the operation name.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithObject sets the bucket and key the error refers to.
func (e *Error) WithObject(bucket, key string) *Error {
	e.Bucket = bucket
	e.Key = key
	return e
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func categoryOf(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeNotFound, ErrCodeAlreadyExists, ErrCodePreconditionFailed, ErrCodeBackend:
		return CategoryStorage
	case ErrCodeClosedChannel:
		return CategoryState
	case ErrCodeInvalidConfig, ErrCodeConfigLoad:
		return CategoryConfiguration
	default:
		return CategoryFilesystem
	}
}

// CodeOf extracts the error code from err, or ErrCodeBackend when err is
// not a bucketfs error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeBackend
}

func is(err error, code ErrorCode) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Code == code
}

// IsNotFound reports whether err indicates an absent object or bucket.
func IsNotFound(err error) bool { return is(err, ErrCodeNotFound) }

// IsAlreadyExists reports whether err indicates a create-new or
// non-replacing copy/move hit an existing target.
func IsAlreadyExists(err error) bool { return is(err, ErrCodeAlreadyExists) }

// IsPseudoDirectory reports whether byte-level I/O was attempted against a
// path resolved as a directory.
func IsPseudoDirectory(err error) bool { return is(err, ErrCodePseudoDirectory) }

// IsInvalidArgument reports whether err indicates a malformed key or
// reference.
func IsInvalidArgument(err error) bool { return is(err, ErrCodeInvalidArgument) }

// IsUnsupported reports whether err indicates an operation the store cannot
// guarantee, such as atomic cross-bucket moves.
func IsUnsupported(err error) bool { return is(err, ErrCodeUnsupported) }

// IsPreconditionFailed reports whether a conditional write or rename lost a
// race.
func IsPreconditionFailed(err error) bool { return is(err, ErrCodePreconditionFailed) }

// IsClosedChannel reports whether an operation was attempted on a closed
// channel.
func IsClosedChannel(err error) bool { return is(err, ErrCodeClosedChannel) }
