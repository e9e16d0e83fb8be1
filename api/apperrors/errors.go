// Package apperrors holds the error taxonomy shared by the payment and entitlement services.
// Services wrap these sentinels with fmt.Errorf("%w: ...") so transports can map them without
// depending on SDK-specific error types.
package apperrors

import (
	"errors"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain is the ErrorInfo domain attached to status details.
const Domain = "storefront.tbeaudouin05.github.com"

var (
	// ErrInvalidInput indicates a malformed request. Not retryable.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnconfigured indicates missing payment provider credentials. Operator action required.
	ErrUnconfigured = errors.New("payment provider not configured")
	// ErrProvider indicates a transient failure talking to the payment provider. Retryable.
	ErrProvider = errors.New("payment provider error")
	// ErrNotSettled indicates the provider has not settled a checkout session yet. Poll again later.
	ErrNotSettled = errors.New("checkout session not settled")
	// ErrNotFound indicates an unknown session or record.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a duplicate record creation.
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnauthorized indicates the caller may not run the operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDatabase indicates a storage failure.
	ErrDatabase = errors.New("database error")
)

var table = []struct {
	err    error
	reason string
	code   codes.Code
}{
	{ErrInvalidInput, "INVALID_INPUT", codes.InvalidArgument},
	{ErrUnconfigured, "UNCONFIGURED", codes.FailedPrecondition},
	{ErrProvider, "PROVIDER_ERROR", codes.Unavailable},
	{ErrNotSettled, "NOT_SETTLED", codes.Unavailable},
	{ErrNotFound, "NOT_FOUND", codes.NotFound},
	{ErrAlreadyExists, "ALREADY_EXISTS", codes.AlreadyExists},
	{ErrUnauthorized, "UNAUTHORIZED", codes.PermissionDenied},
	{ErrDatabase, "DATABASE_ERROR", codes.Internal},
}

// Reason returns the machine-readable reason for err, or "UNKNOWN".
func Reason(err error) string {
	for _, e := range table {
		if errors.Is(err, e.err) {
			return e.reason
		}
	}
	return "UNKNOWN"
}

// Code maps err to a gRPC status code.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	for _, e := range table {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return codes.Internal
}

// IsRetryable reports whether the caller may retry the operation with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProvider) || errors.Is(err, ErrNotSettled)
}

// Status converts err into a gRPC status carrying an ErrorInfo detail.
// Unknown errors are reported as Internal with a generic message.
func Status(err error) *status.Status {
	code := Code(err)
	msg := "an unexpected error occurred"
	if code != codes.Internal {
		msg = err.Error()
	}
	st := status.New(code, msg)
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: Reason(err),
		Domain: Domain,
		Metadata: map[string]string{
			"retryable": strconv.FormatBool(IsRetryable(err)),
		},
	})
	if derr != nil {
		return st
	}
	return detailed
}
