package network

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"healthwallet/internal/holder/models"
)

// Verifier checks a payload signature. The algorithm behind it is opaque to this package.
type Verifier interface {
	Verify(ctx context.Context, payload, signature []byte) bool
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, payload, signature []byte) bool

func (f VerifierFunc) Verify(ctx context.Context, payload, signature []byte) bool {
	return f(ctx, payload, signature)
}

// Signed is a decoded payload together with the envelope it arrived in.
type Signed[T any] struct {
	Value    T
	Envelope models.SignedResponse
}

type decodeOptions struct {
	proceedOn400 bool
}

// DecodeOption tunes Decode.
type DecodeOption func(*decodeOptions)

// ProceedOn400 accepts an HTTP 400 whose payload still decodes into the target type.
// Only the test-result call uses it: one provider answers 400 with a valid
// "no result yet" body.
func ProceedOn400() DecodeOption {
	return func(o *decodeOptions) {
		o.proceedOn400 = true
	}
}

// Decode turns the outcome of a transport call into a verified, typed payload.
//
// A transport failure always wins over a decode failure. The returned error is always a
// *ServerError.
func Decode[T any](ctx context.Context, verifier Verifier, resp *Response, transportErr error, opts ...DecodeOption) (Signed[T], error) {
	var zero Signed[T]
	options := decodeOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	if transportErr != nil {
		return zero, AsServerError(transportErr)
	}
	if resp == nil {
		return zero, newError(ErrorInvalidResponse, errors.New("no response"))
	}

	var envelope models.SignedResponse
	if err := json.Unmarshal(resp.Body, &envelope); err != nil || envelope.Payload == "" {
		if err == nil {
			err = errors.New("envelope without payload")
		}
		return zero, unsignedFailure(resp, err)
	}

	payload, err := base64.StdEncoding.DecodeString(envelope.Payload)
	if err != nil {
		return zero, newError(ErrorCannotDeserialize, fmt.Errorf("payload: %w", err))
	}
	signature, err := base64.StdEncoding.DecodeString(envelope.Signature)
	if err != nil {
		return zero, newError(ErrorCannotDeserialize, fmt.Errorf("signature: %w", err))
	}

	valid, err := verify(ctx, verifier, payload, signature)
	if err != nil {
		return zero, err
	}
	if !valid {
		return zero, &ServerError{Kind: ErrorInvalidSignature, StatusCode: resp.StatusCode}
	}

	var value T
	decodeErr := json.Unmarshal(payload, &value)
	if decodeErr == nil {
		if isSuccess(resp.StatusCode) || (options.proceedOn400 && resp.StatusCode == http.StatusBadRequest) {
			return Signed[T]{Value: value, Envelope: envelope}, nil
		}
	}

	serverResponse := decodeServerResponse(payload)
	if !isSuccess(resp.StatusCode) {
		return zero, &ServerError{Kind: ErrorServerError, StatusCode: resp.StatusCode, Response: serverResponse, Err: decodeErr}
	}
	return zero, &ServerError{Kind: ErrorCannotDeserialize, StatusCode: resp.StatusCode, Response: serverResponse, Err: decodeErr}
}

// DecodeJSON decodes an unsigned JSON body with the same error policy as Decode.
func DecodeJSON[T any](resp *Response, transportErr error) (T, error) {
	var zero T
	if transportErr != nil {
		return zero, AsServerError(transportErr)
	}
	if resp == nil {
		return zero, newError(ErrorInvalidResponse, errors.New("no response"))
	}
	if !isSuccess(resp.StatusCode) {
		return zero, unsignedFailure(resp, nil)
	}
	var value T
	if err := json.Unmarshal(resp.Body, &value); err != nil {
		return zero, &ServerError{Kind: ErrorCannotDeserialize, StatusCode: resp.StatusCode, Err: err}
	}
	return value, nil
}

// unsignedFailure classifies a body that is not a signed envelope. An HTTP error status is
// reported as such rather than as a decode failure.
func unsignedFailure(resp *Response, cause error) *ServerError {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &ServerError{Kind: ErrorServerBusy, StatusCode: resp.StatusCode}
	case resp.StatusCode >= http.StatusBadRequest:
		return &ServerError{
			Kind:       ErrorServerError,
			StatusCode: resp.StatusCode,
			Response:   decodeServerResponse(resp.Body),
			Err:        cause,
		}
	default:
		return &ServerError{Kind: ErrorCannotDeserialize, StatusCode: resp.StatusCode, Err: cause}
	}
}

func decodeServerResponse(raw []byte) *models.ServerResponse {
	var sr models.ServerResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil
	}
	if sr.Status == "" && sr.Code == 0 {
		return nil
	}
	return &sr
}

// verify runs the verifier without outliving ctx.
func verify(ctx context.Context, verifier Verifier, payload, signature []byte) (bool, error) {
	if verifier == nil {
		return false, newError(ErrorInvalidSignature, errors.New("no verifier configured"))
	}
	result := make(chan bool, 1)
	go func() {
		result <- verifier.Verify(ctx, payload, signature)
	}()
	select {
	case ok := <-result:
		return ok, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return false, newError(ErrorServerUnreachableTimedOut, ctx.Err())
		}
		return false, newError(ErrorServerUnreachableConnectionLost, ctx.Err())
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
