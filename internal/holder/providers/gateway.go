// Package providers talks to the holder backend and to the individual event providers.
//
// The gateway is stateless per call: every method performs one upstream request and
// returns a typed result or a *network.ServerError. Coordinating calls across providers
// is left to the caller.
package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bluele/gcache"
	"github.com/golang-jwt/jwt/v5"

	"healthwallet/internal/holder/metrics"
	"healthwallet/internal/holder/models"
	"healthwallet/internal/holder/network"
	"healthwallet/internal/holder/tracer"
)

// Call names used for metrics and spans.
const (
	CallAccessTokens         = "access_tokens"
	CallProviders            = "providers"
	CallInformationAvailable = "unomi"
	CallEvents               = "events"
	CallTestResult           = "test_result"
	CallPrepareIssue         = "prepare_issue"
	CallCredentials          = "credentials"
	CallConfiguration        = "configuration"
)

const (
	protocolVersionHeader = "CoronaCheck-Protocol-Version"
	protocolVersion       = "3.0"
	providerListCacheKey  = "provider_list"
)

// ErrAuthTokenExpired is wrapped in an invalid-request error when the login token has
// already expired and calling the backend would be pointless.
var ErrAuthTokenExpired = errors.New("auth token expired")

// WrapperValidator validates raw event wrapper payloads.
type WrapperValidator interface {
	ValidateWrapper(payload []byte) error
}

// TransportFactory returns the transport used to reach one provider. Certificate pinning
// against the provider's published TLS certificates sits behind this interface.
type TransportFactory interface {
	ForProvider(providerID string, tlsCertificates []string) *network.Transport
}

// TransportFactoryFunc adapts a function to TransportFactory.
type TransportFactoryFunc func(providerID string, tlsCertificates []string) *network.Transport

func (f TransportFactoryFunc) ForProvider(providerID string, tlsCertificates []string) *network.Transport {
	return f(providerID, tlsCertificates)
}

// Gateway performs the upstream calls of the holder flows.
type Gateway struct {
	backend   *network.Transport
	factory   TransportFactory
	verifier  network.Verifier
	apiURL    string
	cdnURL    string
	validator WrapperValidator

	providerCache    gcache.Cache
	providerCacheTTL time.Duration
	configTimeout    time.Duration

	tracer  tracer.Tracer
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

func WithTracer(t tracer.Tracer) Option {
	return func(g *Gateway) { g.tracer = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithProviderCacheTTL caches the provider list for ttl. Zero disables caching.
func WithProviderCacheTTL(ttl time.Duration) Option {
	return func(g *Gateway) { g.providerCacheTTL = ttl }
}

func WithConfigTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.configTimeout = d }
}

func WithTransportFactory(f TransportFactory) Option {
	return func(g *Gateway) { g.factory = f }
}

func WithWrapperValidator(v WrapperValidator) Option {
	return func(g *Gateway) { g.validator = v }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New creates a gateway. apiURL hosts the holder API and cdnURL the signed configuration.
func New(backend *network.Transport, verifier network.Verifier, apiURL, cdnURL string, opts ...Option) *Gateway {
	g := &Gateway{
		backend:       backend,
		verifier:      verifier,
		apiURL:        strings.TrimRight(apiURL, "/"),
		cdnURL:        strings.TrimRight(cdnURL, "/"),
		configTimeout: network.ConfigTimeout,
		tracer:        tracer.NewNoop(),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.factory == nil {
		g.factory = TransportFactoryFunc(func(string, []string) *network.Transport { return g.backend })
	}
	if g.providerCacheTTL > 0 {
		g.providerCache = gcache.New(1).LRU().Build()
	}
	return g
}

type accessTokensResponse struct {
	Tokens []models.AccessToken `json:"tokens"`
}

// FetchAccessTokens exchanges the login token for per-provider access tokens.
func (g *Gateway) FetchAccessTokens(ctx context.Context, authToken string) ([]models.AccessToken, error) {
	var tokens []models.AccessToken
	err := g.observe(ctx, CallAccessTokens, "", func(ctx context.Context) error {
		if err := checkAuthToken(authToken, g.now()); err != nil {
			return err
		}
		resp, err := g.backend.Do(ctx, network.Request{
			Method:      http.MethodPost,
			URL:         g.apiURL + "/holder/access_tokens",
			BearerToken: authToken,
		})
		decoded, err := network.Decode[accessTokensResponse](ctx, g.verifier, resp, err)
		if err != nil {
			return err
		}
		tokens = decoded.Value.Tokens
		return nil
	})
	return tokens, err
}

// FetchProviders returns the signed provider list, from cache while it is fresh.
func (g *Gateway) FetchProviders(ctx context.Context) (models.ProviderList, error) {
	if g.providerCache != nil {
		if cached, err := g.providerCache.Get(providerListCacheKey); err == nil {
			if list, ok := cached.(models.ProviderList); ok {
				_, span := g.tracer.Start(ctx, tracer.SpanProviderPrefix+CallProviders, tracer.Bool(tracer.AttrCacheHit, true))
				span.End(nil)
				return list, nil
			}
		}
	}

	var list models.ProviderList
	err := g.observe(ctx, CallProviders, "", func(ctx context.Context) error {
		resp, err := g.backend.Do(ctx, network.Request{
			Method:  http.MethodGet,
			URL:     g.cdnURL + "/holder/config_providers",
			Timeout: g.configTimeout,
		})
		decoded, err := network.Decode[models.ProviderList](ctx, g.verifier, resp, err)
		if err != nil {
			return err
		}
		list = decoded.Value
		return nil
	})
	if err != nil {
		return models.ProviderList{}, err
	}

	if g.providerCache != nil {
		if err := g.providerCache.SetWithExpire(providerListCacheKey, list, g.providerCacheTTL); err != nil {
			g.logger.WarnContext(ctx, "failed to cache provider list", "error", err)
		}
	}
	return list, nil
}

type filterRequest struct {
	Filter string `json:"filter"`
	Scope  string `json:"scope,omitempty"`
}

func filterFor(mode models.EventMode) filterRequest {
	return filterRequest{Filter: mode.ProviderUsage()}
}

// FetchInformationAvailable asks one provider whether it holds data for the holder.
func (g *Gateway) FetchInformationAvailable(ctx context.Context, provider models.Provider, token models.AccessToken, mode models.EventMode) (models.InformationAvailable, error) {
	var info models.InformationAvailable
	err := g.observe(ctx, CallInformationAvailable, provider.Identifier, func(ctx context.Context) error {
		resp, err := g.factory.ForProvider(provider.Identifier, provider.TLS).Do(ctx, network.Request{
			Method:      http.MethodPost,
			URL:         provider.UnomiURL,
			BearerToken: token.UnomiAccessToken,
			Headers:     map[string]string{protocolVersionHeader: protocolVersion},
			Body:        filterFor(mode),
		})
		decoded, err := network.Decode[models.InformationAvailable](ctx, g.verifier, resp, err)
		if err != nil {
			return err
		}
		info = decoded.Value
		return nil
	})
	return info, err
}

// FetchEvents retrieves one provider's events together with the envelope they were signed in.
func (g *Gateway) FetchEvents(ctx context.Context, provider models.Provider, token models.AccessToken, mode models.EventMode) (models.RemoteEvent, error) {
	var remote models.RemoteEvent
	err := g.observe(ctx, CallEvents, provider.Identifier, func(ctx context.Context) error {
		resp, err := g.factory.ForProvider(provider.Identifier, provider.TLS).Do(ctx, network.Request{
			Method:      http.MethodPost,
			URL:         provider.EventURL,
			BearerToken: token.EventAccessToken,
			Headers:     map[string]string{protocolVersionHeader: protocolVersion},
			Body:        filterFor(mode),
		})
		decoded, err := network.Decode[models.EventWrapper](ctx, g.verifier, resp, err)
		if err != nil {
			return err
		}
		if err := g.validateWrapper(decoded.Envelope); err != nil {
			return err
		}
		envelope := decoded.Envelope
		remote = models.RemoteEvent{Wrapper: decoded.Value, SignedResponse: &envelope}
		return nil
	})
	return remote, err
}

// TestResult is the outcome of a commercial test-result retrieval.
type TestResult struct {
	Remote               models.RemoteEvent
	VerificationRequired bool
}

type testResultRequest struct {
	VerificationCode string `json:"verificationCode,omitempty"`
}

// FetchTestResult retrieves a negative test from a commercial test provider. The provider
// may answer HTTP 400 with a valid pending wrapper; that answer is a result, not an error.
func (g *Gateway) FetchTestResult(ctx context.Context, provider models.TestProvider, token RequestToken, verificationCode string) (TestResult, error) {
	var result TestResult
	err := g.observe(ctx, CallTestResult, provider.Identifier, func(ctx context.Context) error {
		resp, err := g.factory.ForProvider(provider.Identifier, provider.TLS).Do(ctx, network.Request{
			Method:      http.MethodPost,
			URL:         provider.ResultURL,
			BearerToken: token.Token,
			Headers:     map[string]string{protocolVersionHeader: protocolVersion},
			Body:        testResultRequest{VerificationCode: verificationCode},
		})
		decoded, err := network.Decode[models.EventWrapper](ctx, g.verifier, resp, err, network.ProceedOn400())
		if err != nil {
			return err
		}
		if err := g.validateWrapper(decoded.Envelope); err != nil {
			return err
		}
		envelope := decoded.Envelope
		result = TestResult{
			Remote:               models.RemoteEvent{Wrapper: decoded.Value, SignedResponse: &envelope},
			VerificationRequired: decoded.Value.Status == models.StatusVerificationRequired,
		}
		return nil
	})
	return result, err
}

// PrepareIssue fetches the nonce for one issuance attempt.
func (g *Gateway) PrepareIssue(ctx context.Context) (models.PrepareIssueEnvelope, error) {
	var envelope models.PrepareIssueEnvelope
	err := g.observe(ctx, CallPrepareIssue, "", func(ctx context.Context) error {
		resp, err := g.backend.Do(ctx, network.Request{
			Method: http.MethodPost,
			URL:    g.apiURL + "/holder/prepare_issue",
		})
		decoded, err := network.DecodeJSON[models.PrepareIssueEnvelope](resp, err)
		if err != nil {
			return err
		}
		envelope = decoded
		return nil
	})
	return envelope, err
}

// FetchGreenCards submits events to the signer.
func (g *Gateway) FetchGreenCards(ctx context.Context, request models.CredentialsRequest) (*models.GreenCardResponse, error) {
	var response *models.GreenCardResponse
	err := g.observe(ctx, CallCredentials, "", func(ctx context.Context) error {
		resp, err := g.backend.Do(ctx, network.Request{
			Method: http.MethodPost,
			URL:    g.apiURL + "/holder/credentials",
			Body:   request,
		})
		decoded, err := network.Decode[models.GreenCardResponse](ctx, g.verifier, resp, err)
		if err != nil {
			return err
		}
		response = &decoded.Value
		return nil
	})
	return response, err
}

// FetchConfiguration fetches the signed remote configuration.
func (g *Gateway) FetchConfiguration(ctx context.Context) (models.RemoteConfiguration, error) {
	var cfg models.RemoteConfiguration
	err := g.observe(ctx, CallConfiguration, "", func(ctx context.Context) error {
		resp, err := g.backend.Do(ctx, network.Request{
			Method:  http.MethodGet,
			URL:     g.cdnURL + "/holder/config",
			Timeout: g.configTimeout,
		})
		decoded, err := network.Decode[models.RemoteConfiguration](ctx, g.verifier, resp, err)
		if err != nil {
			return err
		}
		cfg = decoded.Value
		return nil
	})
	return cfg, err
}

func (g *Gateway) validateWrapper(envelope models.SignedResponse) error {
	if g.validator == nil {
		return nil
	}
	payload, err := base64.StdEncoding.DecodeString(envelope.Payload)
	if err != nil {
		return &network.ServerError{Kind: network.ErrorCannotDeserialize, Err: err}
	}
	if err := g.validator.ValidateWrapper(payload); err != nil {
		return &network.ServerError{Kind: network.ErrorCannotDeserialize, Err: err}
	}
	return nil
}

// observe wraps one upstream call in a span and records its outcome.
func (g *Gateway) observe(ctx context.Context, call, providerID string, fn func(ctx context.Context) error) error {
	attrs := []tracer.Attribute{tracer.String(tracer.AttrCall, call)}
	if providerID != "" {
		attrs = append(attrs, tracer.String(tracer.AttrProviderID, providerID))
	}
	ctx, span := g.tracer.Start(ctx, tracer.SpanProviderPrefix+call, attrs...)
	start := time.Now()

	err := fn(ctx)

	outcome := "success"
	if err != nil {
		outcome = string(network.KindOf(err))
		span.SetAttributes(tracer.String(tracer.AttrErrorKind, outcome))
		g.logger.WarnContext(ctx, "upstream call failed",
			"call", call,
			"provider_id", providerID,
			"error_kind", outcome,
		)
	}
	g.metrics.ObserveUpstream(call, outcome, time.Since(start))
	span.End(err)
	return err
}

// checkAuthToken rejects a login JWT whose exp claim lies in the past. Tokens that are not
// JWTs are passed on unchecked; the backend stays the authority.
func checkAuthToken(authToken string, now time.Time) error {
	if authToken == "" {
		return &network.ServerError{Kind: network.ErrorInvalidRequest, Err: errors.New("missing auth token")}
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(authToken, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		return &network.ServerError{
			Kind: network.ErrorInvalidRequest,
			Err:  fmt.Errorf("%w at %s", ErrAuthTokenExpired, claims.ExpiresAt.Format(time.RFC3339)),
		}
	}
	return nil
}
