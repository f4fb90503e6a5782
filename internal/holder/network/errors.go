package network

import (
	"errors"
	"fmt"

	"healthwallet/internal/holder/models"
)

// ErrorKind is the normalized failure taxonomy for upstream calls.
type ErrorKind string

const (
	ErrorInvalidRequest                  ErrorKind = "invalid_request"
	ErrorNoInternetConnection            ErrorKind = "no_internet_connection"
	ErrorServerUnreachableTimedOut       ErrorKind = "server_unreachable_timed_out"
	ErrorServerUnreachableInvalidHost    ErrorKind = "server_unreachable_invalid_host"
	ErrorServerUnreachableConnectionLost ErrorKind = "server_unreachable_connection_lost"
	ErrorInvalidResponse                 ErrorKind = "invalid_response"
	ErrorServerBusy                      ErrorKind = "server_busy"
	ErrorInvalidSignature                ErrorKind = "invalid_signature"
	ErrorCannotSerialize                 ErrorKind = "cannot_serialize"
	ErrorCannotDeserialize               ErrorKind = "cannot_deserialize"
	ErrorServerError                     ErrorKind = "server_error"
)

// ServerError is the failure of one upstream call.
//
// StatusCode is set whenever an HTTP response was received. Response carries the
// structured {status, code} body when the server sent one.
type ServerError struct {
	Kind       ErrorKind
	StatusCode int
	Response   *models.ServerResponse
	Err        error
}

func (e *ServerError) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (http %d)", msg, e.StatusCode)
	}
	if e.Response != nil && e.Response.Code != 0 {
		msg = fmt.Sprintf("%s code %d", msg, e.Response.Code)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error) *ServerError {
	return &ServerError{Kind: kind, Err: err}
}

// IsTransport reports kinds the user can retry with an explicit action.
func (k ErrorKind) IsTransport() bool {
	switch k {
	case ErrorNoInternetConnection,
		ErrorServerUnreachableTimedOut,
		ErrorServerUnreachableInvalidHost,
		ErrorServerUnreachableConnectionLost,
		ErrorServerBusy:
		return true
	default:
		return false
	}
}

// IsRetryable checks whether err is a transport failure worth offering a retry for.
func IsRetryable(err error) bool {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Kind.IsTransport()
	}
	return false
}

// KindOf extracts the error kind, defaulting to ErrorInvalidResponse for foreign errors.
func KindOf(err error) ErrorKind {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrorInvalidResponse
}

// AsServerError returns err as a *ServerError, wrapping foreign errors as invalid responses.
func AsServerError(err error) *ServerError {
	if err == nil {
		return nil
	}
	var se *ServerError
	if errors.As(err, &se) {
		return se
	}
	return newError(ErrorInvalidResponse, err)
}
