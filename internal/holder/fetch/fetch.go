// Package fetch runs one retrieval session: access tokens and the provider list in
// parallel, then information-availability and event calls fanned out over the providers.
// All branches are joined before a result is produced.
package fetch

import (
	"context"
	"io"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"healthwallet/internal/holder/errorcode"
	"healthwallet/internal/holder/models"
	"healthwallet/internal/holder/network"
	"healthwallet/internal/holder/tracer"
)

// Gateway is the subset of the provider gateway a session needs.
type Gateway interface {
	FetchAccessTokens(ctx context.Context, authToken string) ([]models.AccessToken, error)
	FetchProviders(ctx context.Context) (models.ProviderList, error)
	FetchInformationAvailable(ctx context.Context, provider models.Provider, token models.AccessToken, mode models.EventMode) (models.InformationAvailable, error)
	FetchEvents(ctx context.Context, provider models.Provider, token models.AccessToken, mode models.EventMode) (models.RemoteEvent, error)
}

// Blocking tells the caller whether the failures prevent showing any events.
type Blocking string

const (
	// BlockingNone: proceed with RemoteEvents, possibly alongside partial error codes.
	BlockingNone Blocking = ""
	// BlockingNoInternet: offer a retry alert.
	BlockingNoInternet Blocking = "no_internet"
	// BlockingServerBusy: every failed call answered 429.
	BlockingServerBusy Blocking = "server_busy"
	// BlockingError: show an error with the collected codes.
	BlockingError Blocking = "error"
)

// Result is the joined outcome of a retrieval session.
type Result struct {
	Mode         models.EventMode
	RemoteEvents []models.RemoteEvent
	// Errors lists the codes of every failed call: access tokens, providers, then per
	// provider in identifier order.
	Errors   []errorcode.Code
	Blocking Blocking
}

// ErrorMessage joins the collected codes for display.
func (r Result) ErrorMessage() string {
	return errorcode.Join(r.Errors)
}

const defaultProviderConcurrency = 8

// Session fans retrieval calls out over the providers.
type Session struct {
	gateway     Gateway
	tracer      tracer.Tracer
	logger      *slog.Logger
	concurrency int
}

type Option func(*Session)

func WithTracer(t tracer.Tracer) Option {
	return func(s *Session) { s.tracer = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithConcurrency bounds the number of provider calls in flight.
func WithConcurrency(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(gateway Gateway, opts ...Option) *Session {
	s := &Session{
		gateway:     gateway,
		tracer:      tracer.NewNoop(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		concurrency: defaultProviderConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// callFailure records a failed call for error-code generation.
type callFailure struct {
	step     errorcode.Step
	provider string
	err      error
}

// Run performs the retrieval for mode using the holder's login token.
func (s *Session) Run(ctx context.Context, mode models.EventMode, authToken string) Result {
	ctx, span := s.tracer.Start(ctx, tracer.SpanFetch, tracer.String(tracer.AttrEventMode, mode.String()))
	result := s.run(ctx, mode, authToken)
	span.SetAttributes(
		tracer.Int(tracer.AttrProviders, len(result.RemoteEvents)),
		tracer.String("blocking", string(result.Blocking)),
	)
	span.End(nil)
	return result
}

func (s *Session) run(ctx context.Context, mode models.EventMode, authToken string) Result {
	var (
		tokens       []models.AccessToken
		providerList models.ProviderList
		tokensErr    error
		providersErr error
		g            errgroup.Group
	)
	g.Go(func() error {
		tokens, tokensErr = s.gateway.FetchAccessTokens(ctx, authToken)
		return nil
	})
	g.Go(func() error {
		providerList, providersErr = s.gateway.FetchProviders(ctx)
		return nil
	})
	_ = g.Wait()

	var failures []callFailure
	if tokensErr != nil {
		failures = append(failures, callFailure{step: errorcode.StepAccessTokens, err: tokensErr})
	}
	if providersErr != nil {
		failures = append(failures, callFailure{step: errorcode.StepProviders, err: providersErr})
	}
	if len(failures) > 0 {
		return s.conclude(mode, nil, failures)
	}

	candidates := eligibleProviders(providerList.EventProviders, tokens, mode)
	s.logger.InfoContext(ctx, "retrieving events",
		"event_mode", mode.String(),
		"provider_count", len(candidates),
	)

	available, unomiFailures := s.fanOutInformationAvailable(ctx, candidates, mode)
	remoteEvents, eventFailures := s.fanOutEvents(ctx, available, mode)

	failures = append(failures, mergeByProvider(unomiFailures, eventFailures)...)
	return s.conclude(mode, remoteEvents, failures)
}

// candidate is a provider together with its matching access token.
type candidate struct {
	provider models.Provider
	token    models.AccessToken
}

// eligibleProviders keeps providers that have a token and serve mode, ordered by identifier.
func eligibleProviders(providers []models.Provider, tokens []models.AccessToken, mode models.EventMode) []candidate {
	var out []candidate
	for _, p := range providers {
		if !p.Supports(mode) {
			continue
		}
		for _, t := range tokens {
			if p.MatchesToken(t) {
				out = append(out, candidate{provider: p, token: t})
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].provider.Identifier < out[j].provider.Identifier
	})
	return out
}

func (s *Session) fanOutInformationAvailable(ctx context.Context, candidates []candidate, mode models.EventMode) ([]candidate, []callFailure) {
	infos := make([]models.InformationAvailable, len(candidates))
	errs := make([]error, len(candidates))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			infos[i], errs[i] = s.gateway.FetchInformationAvailable(ctx, c.provider, c.token, mode)
			return nil
		})
	}
	_ = g.Wait()

	var (
		available []candidate
		failures  []callFailure
	)
	for i, c := range candidates {
		if errs[i] != nil {
			failures = append(failures, callFailure{step: errorcode.StepUnomi, provider: c.provider.Identifier, err: errs[i]})
			continue
		}
		if infos[i].InformationAvailable {
			available = append(available, c)
		}
	}
	return available, failures
}

func (s *Session) fanOutEvents(ctx context.Context, candidates []candidate, mode models.EventMode) ([]models.RemoteEvent, []callFailure) {
	events := make([]models.RemoteEvent, len(candidates))
	errs := make([]error, len(candidates))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			events[i], errs[i] = s.gateway.FetchEvents(ctx, c.provider, c.token, mode)
			return nil
		})
	}
	_ = g.Wait()

	var (
		remote   []models.RemoteEvent
		failures []callFailure
	)
	for i, c := range candidates {
		if errs[i] != nil {
			failures = append(failures, callFailure{step: errorcode.StepEvents, provider: c.provider.Identifier, err: errs[i]})
			continue
		}
		remote = append(remote, events[i])
	}
	return remote, failures
}

// mergeByProvider orders per-provider failures by identifier, unomi before events.
func mergeByProvider(unomi, events []callFailure) []callFailure {
	out := append(append([]callFailure{}, unomi...), events...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].provider < out[j].provider
	})
	return out
}

func (s *Session) conclude(mode models.EventMode, remote []models.RemoteEvent, failures []callFailure) Result {
	flow := errorcode.FlowFor(mode)
	result := Result{Mode: mode, RemoteEvents: remote}
	if len(failures) == 0 {
		return result
	}

	allBusy := true
	for _, f := range failures {
		kind := network.KindOf(f.err)
		if kind == network.ErrorNoInternetConnection {
			result.Blocking = BlockingNoInternet
			result.RemoteEvents = nil
			return result
		}
		if kind != network.ErrorServerBusy {
			allBusy = false
		}
		result.Errors = append(result.Errors, errorcode.FromError(flow, f.step, f.provider, f.err))
	}

	if len(remote) > 0 {
		// Events from the reachable providers are still shown; the codes go along as a notice.
		return result
	}
	if allBusy {
		result.Blocking = BlockingServerBusy
	} else {
		result.Blocking = BlockingError
	}
	return result
}
