package domain

import "errors"

// Common domain errors
var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrPolicyDenied    = errors.New("request denied by policy")
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrMessageTooLarge = errors.New("message too large")
	ErrBadRequest      = errors.New("bad request")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrKeyConflict     = errors.New("key ID already in use")
)

// Error codes carried in ErrorResponse.
const (
	CodeInvalidKey      = "INVALID_KEY"
	CodeBadRequest      = "BAD_REQUEST"
	CodeKeyNotFound     = "KEY_NOT_FOUND"
	CodePolicyDenied    = "POLICY_DENIED"
	CodeMessageTooLarge = "MESSAGE_TOO_LARGE"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternal        = "INTERNAL"
)

// DomainError wraps errors with additional context.
//
//nolint:revive // Name is intentionally verbose to distinguish domain-layer errors
type DomainError struct {
	Err     error
	Code    string
	Message string
	Details map[string]any
}

// NewError wraps err with a machine-readable code and a safe message.
func NewError(code string, err error, message string) *DomainError {
	return &DomainError{Err: err, Code: code, Message: message}
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// ErrorResponse defines the standard JSON error model returned by the codec API.
type ErrorResponse struct {
	Code      string `json:"code"`                 // Machine-readable error code (e.g., INVALID_KEY)
	Message   string `json:"message"`              // Human-readable message (safe for logs)
	RequestID string `json:"request_id,omitempty"` // Correlation ID echoed from X-Request-ID
}
