// Package services hosts workflow instances: it creates, rehydrates, drives
// and persists them through a Provider, and groups cleanup requests into projects.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/cleanup/pkg/persistence"
	"github.com/dukex/cleanup/pkg/workflow"
)

var (
	// Not found errors (404).
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
	ErrProjectNotFound  = persistence.ErrProjectNotFound

	// Precondition errors (409 Conflict).
	ErrInvalidState = workflow.ErrInvalidState

	// Rejected operations (422 Unprocessable Entity).
	ErrUnsupportedEvent = errors.New("unsupported event")
	ErrUnsupported      = errors.New("operation not supported")

	// Validation errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")
)

// Error codes carried by ServiceError.
const (
	CodeNotFound         = "not_found"
	CodeInvalidState     = "invalid_state"
	CodeUnsupportedEvent = "unsupported_event"
	CodeUnsupported      = "unsupported"
	CodeInvalidRequest   = "invalid_request"
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsNotFound checks if an error references an unknown workflow or project.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) || errors.Is(err, ErrProjectNotFound)
}

// IsInvalidState checks if an operation's state precondition was not met.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsUnsupported checks if an operation or event was rejected as unsupported.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported) || errors.Is(err, ErrUnsupportedEvent)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, message string, err error) *ServiceError {
	if err == nil {
		err = ErrInvalidRequest
	} else if !errors.Is(err, ErrInvalidRequest) {
		err = fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	return &ServiceError{
		Op:      op,
		Code:    CodeInvalidRequest,
		Message: message,
		Err:     err,
	}
}

// wrapError attaches op and an error code to err, leaving already wrapped
// service errors untouched.
func wrapError(op string, err error) error {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return err
	}

	code := ""

	switch {
	case IsNotFound(err):
		code = CodeNotFound
	case IsInvalidState(err):
		code = CodeInvalidState
	case errors.Is(err, ErrUnsupportedEvent):
		code = CodeUnsupportedEvent
	case errors.Is(err, ErrUnsupported):
		code = CodeUnsupported
	case IsValidationError(err):
		code = CodeInvalidRequest
	default:
		return fmt.Errorf("%s: %w", op, err)
	}

	return &ServiceError{Op: op, Code: code, Err: err}
}
