package errors

import "github.com/pkg/errors"

// ErrorCode classifies a failure for the exit summary and diagnostics.
type ErrorCode string

const (
	// InputOpenFailure indicates the input feed could not be opened or read.
	InputOpenFailure ErrorCode = "input_open_failure"
	// OutputFailure indicates the output stream could not be written or flushed.
	OutputFailure ErrorCode = "output_failure"
	// MalformedRow indicates a feed row that could not be parsed.
	MalformedRow ErrorCode = "malformed_row"
	// ProtocolAnomaly indicates a feed event that violates the order lifecycle.
	ProtocolAnomaly ErrorCode = "protocol_anomaly"
)

// ErrorTracer is an error carrying a message, a code and an underlying
// cause with its stack trace.
type ErrorTracer struct {
	Message string
	Code    ErrorCode
	Err     error
}

// NewTracer creates a new ErrorTracer with the provided message.
func NewTracer(message string) *ErrorTracer {
	return &ErrorTracer{
		Message: message,
	}
}

// TracerFromError creates a new ErrorTracer from an existing error, preserving the stack trace.
func TracerFromError(err error) *ErrorTracer {
	tracer := NewTracer(err.Error())
	tracer.Err = err
	if _, ok := err.(StackTracer); !ok {
		tracer.Err = errors.WithStack(err)
	}
	return tracer
}

// StackTracer is an interface that requires a StackTrace method.
type StackTracer interface {
	StackTrace() errors.StackTrace
}

func (e *ErrorTracer) Error() string {
	return e.Message
}

func (e *ErrorTracer) Unwrap() error {
	return e.Err
}

// WithCode tags the tracer with an error code.
func (e *ErrorTracer) WithCode(code ErrorCode) *ErrorTracer {
	e.Code = code
	return e
}

// Wrap wraps an existing error into the ErrorTracer, preserving the stack trace.
func (e *ErrorTracer) Wrap(err error) *ErrorTracer {
	e.Err = err
	if _, ok := err.(StackTracer); !ok {
		e.Err = errors.WithStack(err)
	}

	return e
}

// StackTrace returns the stack trace of the underlying error if it implements StackTracer.
func (e *ErrorTracer) StackTrace() errors.StackTrace {
	err := e.Unwrap()
	if errWithStack, ok := err.(StackTracer); ok {
		return errWithStack.StackTrace()
	}
	return nil
}

// CodeOf extracts the ErrorCode from err if it is an ErrorTracer.
func CodeOf(err error) ErrorCode {
	if tracer, ok := err.(*ErrorTracer); ok {
		return tracer.Code
	}
	return ""
}
