// Package network performs upstream HTTP calls and decodes signed response envelopes.
package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"
)

const (
	// DefaultTimeout applies to provider, signer and token calls.
	DefaultTimeout = 30 * time.Second
	// ConfigTimeout applies to configuration-class calls.
	ConfigTimeout = 10 * time.Second
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request describes one upstream call. Body is JSON-encoded when set.
type Request struct {
	Method      string
	URL         string
	BearerToken string
	Headers     map[string]string
	Body        any
	Timeout     time.Duration
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport executes requests and classifies transport failures into ServerError kinds.
// HTTP error statuses other than 429 are returned as responses; the envelope decoder
// decides what they mean.
type Transport struct {
	client  HTTPDoer
	timeout time.Duration
}

// NewTransport creates a transport. A nil client selects an http.Client without its own
// timeout; per-request deadlines come from the context.
func NewTransport(client HTTPDoer, timeout time.Duration) *Transport {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Transport{client: client, timeout: timeout}
}

// Do executes req. The returned error is always a *ServerError.
func (t *Transport) Do(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, newError(ErrorCannotSerialize, err)
		}
		body = bytes.NewReader(raw)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = t.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, newError(ErrorInvalidRequest, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.BearerToken)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &ServerError{Kind: ErrorServerBusy, StatusCode: resp.StatusCode}
	}
	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// classifyTransportError keeps timeouts, missing connectivity and unreachable hosts apart;
// error codes shown to the user depend on the distinction.
func classifyTransportError(ctx context.Context, err error) *ServerError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(ErrorServerUnreachableTimedOut, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(ErrorServerUnreachableTimedOut, err)
	}

	switch {
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.ENETDOWN):
		return newError(ErrorNoInternetConnection, err)
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.EHOSTUNREACH):
		return newError(ErrorServerUnreachableInvalidHost, err)
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF),
		errors.Is(err, context.Canceled):
		return newError(ErrorServerUnreachableConnectionLost, err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return newError(ErrorServerUnreachableTimedOut, err)
		}
		return newError(ErrorServerUnreachableInvalidHost, err)
	}

	return newError(ErrorInvalidResponse, fmt.Errorf("transport: %w", err))
}
