package network

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"

	"healthwallet/internal/holder/models"
)

type EnvelopeSuite struct {
	suite.Suite
	priv     ed25519.PrivateKey
	verifier *Ed25519Verifier
}

func TestEnvelopeSuite(t *testing.T) {
	suite.Run(t, new(EnvelopeSuite))
}

func (s *EnvelopeSuite) SetupTest() {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)
	s.priv = priv
	s.verifier, err = NewEd25519Verifier(base64.StdEncoding.EncodeToString(pub))
	s.Require().NoError(err)
}

func (s *EnvelopeSuite) signed(status int, payload any) *Response {
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)
	body, err := json.Marshal(models.SignedResponse{
		Payload:   base64.StdEncoding.EncodeToString(raw),
		Signature: base64.StdEncoding.EncodeToString(ed25519.Sign(s.priv, raw)),
	})
	s.Require().NoError(err)
	return &Response{StatusCode: status, Body: body}
}

func (s *EnvelopeSuite) requireKind(err error, kind ErrorKind) *ServerError {
	s.Require().Error(err)
	var se *ServerError
	s.Require().True(errors.As(err, &se), "expected *ServerError, got %T", err)
	s.Equal(kind, se.Kind)
	return se
}

func (s *EnvelopeSuite) TestDecode() {
	ctx := context.Background()

	s.Run("verified payload decodes", func() {
		resp := s.signed(http.StatusOK, models.InformationAvailable{ProviderIdentifier: "GGD", InformationAvailable: true})

		got, err := Decode[models.InformationAvailable](ctx, s.verifier, resp, nil)
		s.Require().NoError(err)
		s.True(got.Value.InformationAvailable)
		s.NotEmpty(got.Envelope.Signature)
	})

	s.Run("transport error wins over garbage body", func() {
		resp := &Response{StatusCode: http.StatusOK, Body: []byte("<html>")}
		transportErr := newError(ErrorServerUnreachableTimedOut, context.DeadlineExceeded)

		_, err := Decode[models.InformationAvailable](ctx, s.verifier, resp, transportErr)
		s.requireKind(err, ErrorServerUnreachableTimedOut)
	})

	s.Run("unsigned error body surfaces the http status", func() {
		resp := &Response{StatusCode: http.StatusInternalServerError, Body: []byte(`{"status":"error","code":99702}`)}

		_, err := Decode[models.InformationAvailable](ctx, s.verifier, resp, nil)
		se := s.requireKind(err, ErrorServerError)
		s.Equal(http.StatusInternalServerError, se.StatusCode)
		s.Require().NotNil(se.Response)
		s.Equal(99702, se.Response.Code)
	})

	s.Run("unsigned 200 is a decode failure", func() {
		resp := &Response{StatusCode: http.StatusOK, Body: []byte(`not json`)}

		_, err := Decode[models.InformationAvailable](ctx, s.verifier, resp, nil)
		s.requireKind(err, ErrorCannotDeserialize)
	})

	s.Run("malformed base64 payload", func() {
		resp := &Response{StatusCode: http.StatusOK, Body: []byte(`{"payload":"%%%","signature":""}`)}

		_, err := Decode[models.InformationAvailable](ctx, s.verifier, resp, nil)
		s.requireKind(err, ErrorCannotDeserialize)
	})

	s.Run("signature mismatch", func() {
		resp := s.signed(http.StatusOK, models.InformationAvailable{InformationAvailable: true})
		var envelope models.SignedResponse
		s.Require().NoError(json.Unmarshal(resp.Body, &envelope))
		envelope.Payload = base64.StdEncoding.EncodeToString([]byte(`{"informationAvailable":false}`))
		resp.Body, _ = json.Marshal(envelope)

		_, err := Decode[models.InformationAvailable](ctx, s.verifier, resp, nil)
		s.requireKind(err, ErrorInvalidSignature)
	})

	s.Run("signed error body carries server response context", func() {
		resp := s.signed(http.StatusForbidden, models.ServerResponse{Status: "error", Code: 99857})

		_, err := Decode[models.GreenCardResponse](ctx, s.verifier, resp, nil)
		se := s.requireKind(err, ErrorServerError)
		s.Equal(http.StatusForbidden, se.StatusCode)
		s.Require().NotNil(se.Response)
		s.Equal(99857, se.Response.Code)
	})

	s.Run("payload of the wrong shape", func() {
		resp := s.signed(http.StatusOK, []string{"not", "an", "object"})

		_, err := Decode[models.InformationAvailable](ctx, s.verifier, resp, nil)
		s.requireKind(err, ErrorCannotDeserialize)
	})

	s.Run("400 is an error by default", func() {
		resp := s.signed(http.StatusBadRequest, models.EventWrapper{ProviderIdentifier: "ZZZ", Status: models.StatusPending})

		_, err := Decode[models.EventWrapper](ctx, s.verifier, resp, nil)
		s.requireKind(err, ErrorServerError)
	})

	s.Run("400 proceeds when explicitly allowed", func() {
		resp := s.signed(http.StatusBadRequest, models.EventWrapper{ProviderIdentifier: "ZZZ", Status: models.StatusPending})

		got, err := Decode[models.EventWrapper](ctx, s.verifier, resp, nil, ProceedOn400())
		s.Require().NoError(err)
		s.Equal("ZZZ", got.Value.ProviderIdentifier)
	})

	s.Run("verifier that never answers respects the deadline", func() {
		resp := s.signed(http.StatusOK, models.InformationAvailable{})
		release := make(chan struct{})
		defer close(release)
		blocked := VerifierFunc(func(context.Context, []byte, []byte) bool {
			<-release
			return true
		})
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := Decode[models.InformationAvailable](cancelled, blocked, resp, nil)
		s.requireKind(err, ErrorServerUnreachableConnectionLost)
	})
}

func (s *EnvelopeSuite) TestDecodeJSON() {
	got, err := DecodeJSON[models.ServerResponse](&Response{StatusCode: http.StatusOK, Body: []byte(`{"status":"ok","code":0}`)}, nil)
	s.Require().NoError(err)
	s.Equal("ok", got.Status)

	_, err = DecodeJSON[models.ServerResponse](&Response{StatusCode: http.StatusBadGateway, Body: []byte(`oops`)}, nil)
	s.requireKind(err, ErrorServerError)
}

func (s *EnvelopeSuite) TestVerifierRejectsBadKeys() {
	_, err := NewEd25519Verifier("not-base64!")
	s.Error(err)
	_, err = NewEd25519Verifier(base64.StdEncoding.EncodeToString([]byte("short")))
	s.Error(err)
}
