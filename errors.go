package queryengine

import "fmt"

// ErrorKind classifies an EngineError into the taxonomy the HTTP boundary
// maps to status codes. See §7 of the specification.
type ErrorKind string

const (
	// KindInvalidRequest covers bad JSON shape, unknown columns, unsupported
	// operators, type coercion failures, out-of-range limits, malformed
	// having clauses, bad cursors, and SQL-engine rejections of user SQL.
	KindInvalidRequest ErrorKind = "invalid_request"
	// KindNotFound covers unknown dataset ids, unknown profile columns, and
	// missing import sessions.
	KindNotFound ErrorKind = "not_found"
	// KindUnsupported covers disallowed upload suffixes and multi-entity
	// formats submitted through a single-step endpoint.
	KindUnsupported ErrorKind = "unsupported"
	// KindInternal covers unexpected engine/driver failures that are not
	// the caller's fault.
	KindInternal ErrorKind = "internal"
)

// EngineError is the single error type returned across the query engine's
// public API. The HTTP boundary is the only place that translates Kind to a
// status code (§7); library code never does so itself.
type EngineError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]any
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Code, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a single detail key/value and returns the receiver for
// chaining.
func (e *EngineError) WithDetail(key string, value any) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause attaches an underlying cause and returns the receiver for
// chaining.
func (e *EngineError) WithCause(cause error) *EngineError {
	e.Cause = cause
	return e
}

func newError(kind ErrorKind, code, message string) *EngineError {
	return &EngineError{Kind: kind, Code: code, Message: message}
}

// NewInvalidRequestError constructs a KindInvalidRequest error.
func NewInvalidRequestError(code, message string) *EngineError {
	return newError(KindInvalidRequest, code, message)
}

// NewNotFoundError constructs a KindNotFound error.
func NewNotFoundError(code, message string) *EngineError {
	return newError(KindNotFound, code, message)
}

// NewUnsupportedError constructs a KindUnsupported error.
func NewUnsupportedError(code, message string) *EngineError {
	return newError(KindUnsupported, code, message)
}

// NewInternalError constructs a KindInternal error, typically wrapping a
// driver/IO failure that isn't the caller's fault.
func NewInternalError(message string, cause error) *EngineError {
	return newError(KindInternal, ErrCodeInternal, message).WithCause(cause)
}

// Error codes. Names are specific enough for a client to branch on without
// parsing Message.
const (
	ErrCodeUnknownColumn       = "UNKNOWN_COLUMN"
	ErrCodeUnknownDataset      = "UNKNOWN_DATASET"
	ErrCodeUnknownImportSess   = "UNKNOWN_IMPORT_SESSION"
	ErrCodeUnsupportedOperator = "UNSUPPORTED_OPERATOR"
	ErrCodeInvalidValue        = "INVALID_VALUE"
	ErrCodeInvalidCursor       = "INVALID_CURSOR"
	ErrCodeInvalidLimit        = "INVALID_LIMIT"
	ErrCodeInvalidSpec         = "INVALID_SPEC"
	ErrCodeInvalidAggregation  = "INVALID_AGGREGATION"
	ErrCodeInvalidHaving       = "INVALID_HAVING"
	ErrCodeInvalidSort         = "INVALID_SORT"
	ErrCodeInvalidFilename     = "INVALID_FILENAME"
	ErrCodeUnsupportedSuffix   = "UNSUPPORTED_SUFFIX"
	ErrCodeUnsupportedImport   = "UNSUPPORTED_IMPORT"
	ErrCodeQueryExecution      = "QUERY_EXECUTION_FAILED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// IsInvalidRequest reports whether err is a KindInvalidRequest EngineError.
func IsInvalidRequest(err error) bool { return hasKind(err, KindInvalidRequest) }

// IsNotFound reports whether err is a KindNotFound EngineError.
func IsNotFound(err error) bool { return hasKind(err, KindNotFound) }

// IsUnsupported reports whether err is a KindUnsupported EngineError.
func IsUnsupported(err error) bool { return hasKind(err, KindUnsupported) }

func hasKind(err error, kind ErrorKind) bool {
	ee, ok := err.(*EngineError)
	return ok && ee.Kind == kind
}
