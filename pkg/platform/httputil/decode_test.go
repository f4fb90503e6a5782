package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "healthwallet/pkg/domain-errors"
)

type couplingRequest struct {
	Credential   string `json:"credential"`
	CouplingCode string `json:"coupling_code"`
}

func (r *couplingRequest) Normalize() {
	r.CouplingCode = strings.ToUpper(strings.TrimSpace(r.CouplingCode))
}

func (r *couplingRequest) Validate() error {
	if r.Credential == "" {
		return errors.New("credential is required")
	}
	if len(r.CouplingCode) != 6 {
		return dErrors.New(dErrors.CodeInvalidInput, "coupling code must have 6 characters")
	}
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestDecodeJSON(t *testing.T) {
	t.Run("decodes", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"credential":"{}","coupling_code":"abc123"}`))
		w := httptest.NewRecorder()

		req, ok := DecodeJSON[couplingRequest](w, r, discard(), context.Background())
		require.True(t, ok)
		assert.Equal(t, "abc123", req.CouplingCode)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{nope`))
		w := httptest.NewRecorder()

		req, ok := DecodeJSON[couplingRequest](w, r, discard(), context.Background())
		assert.False(t, ok)
		assert.Nil(t, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeBody(t, w).Error)
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		huge := `{"credential":"` + strings.Repeat("a", maxBodyBytes) + `"}`
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(huge))
		w := httptest.NewRecorder()

		_, ok := DecodeJSON[couplingRequest](w, r, discard(), context.Background())
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDecodeAndPrepare(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantOK     bool
		wantStatus int
		wantError  string
	}{
		{name: "normalized and valid", body: `{"credential":"{}","coupling_code":" abc123 "}`, wantOK: true},
		{name: "plain validation error", body: `{"coupling_code":"ABC123"}`, wantStatus: http.StatusBadRequest, wantError: "validation_error"},
		{name: "domain validation error keeps its code", body: `{"credential":"{}","coupling_code":"ABC"}`, wantStatus: http.StatusBadRequest, wantError: "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			req, ok := DecodeAndPrepare[couplingRequest](w, r, discard(), context.Background())
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, "ABC123", req.CouplingCode)
				return
			}
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decodeBody(t, w).Error)
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantError  string
	}{
		{dErrors.New(dErrors.CodeNotFound, "session not found"), http.StatusNotFound, "not_found"},
		{dErrors.New(dErrors.CodeConflict, "an issuance is already in progress"), http.StatusConflict, "conflict"},
		{dErrors.New(dErrors.CodeInvalidPayload, "certificate could not be read"), http.StatusUnprocessableEntity, "invalid_payload"},
		{dErrors.New(dErrors.CodeBusy, "busy"), http.StatusTooManyRequests, "server_busy"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.wantError, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantError, decodeBody(t, w).Error)
		})
	}

	t.Run("internal errors carry no description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("db password is hunter2"))
		assert.Empty(t, decodeBody(t, w).ErrorDescription)
	})
}
