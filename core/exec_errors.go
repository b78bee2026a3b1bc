package core

import "fmt"

// ExecErrorKind classifies remote execution failures.
type ExecErrorKind string

const (
	// ExecErrorUnknown is an uncategorized failure.
	ExecErrorUnknown ExecErrorKind = "unknown"
	// ExecErrorUnavailable indicates the service is unreachable.
	ExecErrorUnavailable ExecErrorKind = "unavailable"
	// ExecErrorTimeout indicates the request timed out.
	ExecErrorTimeout ExecErrorKind = "timeout"
	// ExecErrorCanceled indicates the request was canceled.
	ExecErrorCanceled ExecErrorKind = "canceled"
	// ExecErrorStatus indicates a non-2xx HTTP status.
	ExecErrorStatus ExecErrorKind = "status"
	// ExecErrorDecode indicates the response body could not be parsed.
	ExecErrorDecode ExecErrorKind = "decode"
	// ExecErrorRateLimited indicates the local limiter refused to wait.
	ExecErrorRateLimited ExecErrorKind = "rate_limited"
)

// ExecError wraps remote execution failures with a stable classification.
type ExecError struct {
	Kind    ExecErrorKind
	Op      string
	Message string
	Err     error
}

// NewExecError constructs a classified execution error.
func NewExecError(kind ExecErrorKind, op string, err error) *ExecError {
	return &ExecError{Kind: kind, Op: op, Err: err}
}

func (e *ExecError) Error() string {
	if e == nil {
		return "execution error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s failed", e.Op)
	}
	return "execution error"
}

func (e *ExecError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
