package session

import (
	"context"
	"log/slog"

	"healthwallet/internal/holder/dcc"
	"healthwallet/internal/holder/errorcode"
	"healthwallet/internal/holder/fetch"
	"healthwallet/internal/holder/identity"
	"healthwallet/internal/holder/models"
	"healthwallet/internal/holder/network"
	"healthwallet/internal/holder/providers"
	"healthwallet/internal/holder/viewstate"
	dErrors "healthwallet/pkg/domain-errors"
)

// Fetcher runs a provider retrieval.
type Fetcher interface {
	Run(ctx context.Context, mode models.EventMode, authToken string) fetch.Result
}

// TestResultGateway retrieves commercial test results.
type TestResultGateway interface {
	FetchProviders(ctx context.Context) (models.ProviderList, error)
	FetchTestResult(ctx context.Context, provider models.TestProvider, token providers.RequestToken, verificationCode string) (providers.TestResult, error)
}

// Dependencies are shared by every session a Service starts.
type Dependencies struct {
	Fetcher     Fetcher
	TestResults TestResultGateway
	Issuer      Issuer
	Wallet      Wallet
	Comparator  IdentityComparator
	Reader      dcc.CredentialReader
	Logger      *slog.Logger
}

// Service starts sessions.
type Service struct {
	deps Dependencies
}

func NewService(deps Dependencies) *Service {
	if deps.Comparator == nil {
		deps.Comparator = identity.NewComparator()
	}
	if deps.Reader == nil {
		deps.Reader = dcc.NewJSONReader()
	}
	return &Service{deps: deps}
}

// Start retrieves the events of mode from every eligible provider.
func (svc *Service) Start(ctx context.Context, mode models.EventMode, authToken string) (*Session, error) {
	if mode == models.ModePaperflow {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "paper flow sessions start from a scanned certificate")
	}
	if authToken == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "auth token is required")
	}
	s := newSession(mode, svc.deps)
	s.applyFetch(svc.deps.Fetcher.Run(ctx, mode, authToken), svc.deps.Reader)
	return s, nil
}

// StartPaperflow lists a scanned certificate.
func (svc *Service) StartPaperflow(credential, couplingCode string) (*Session, error) {
	remote, _, err := dcc.RemoteEventFor(svc.deps.Reader, credential, couplingCode)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidPayload, "certificate could not be read")
	}
	s := newSession(models.ModePaperflow, svc.deps)
	s.mu.Lock()
	s.applyRemoteLocked([]models.RemoteEvent{remote}, svc.deps.Reader)
	s.mu.Unlock()
	return s, nil
}

// StartTestResult retrieves a negative test from the commercial provider the retrieval
// token names.
func (svc *Service) StartTestResult(ctx context.Context, rawToken, verificationCode string) (*Session, error) {
	token, err := providers.ParseRequestToken(rawToken)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid retrieval token")
	}

	s := newSession(models.ModeTest, svc.deps)
	list, err := svc.deps.TestResults.FetchProviders(ctx)
	if err != nil {
		s.applyFailure(errorcode.FromError(errorcode.FlowTest, errorcode.StepProviders, errorcode.NoProvider, err), err)
		return s, nil
	}
	provider, err := providers.FindTestProvider(list.TestProviders, token)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "unknown test provider")
	}

	result, err := svc.deps.TestResults.FetchTestResult(ctx, provider, token, verificationCode)
	if err != nil {
		s.applyFailure(errorcode.FromError(errorcode.FlowTest, errorcode.StepEvents, provider.Identifier, err), err)
		return s, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if result.VerificationRequired {
		s.state = viewstate.Feedback(viewstate.VerificationRequiredContent())
		return s, nil
	}
	s.applyRemoteLocked([]models.RemoteEvent{result.Remote}, svc.deps.Reader)
	return s, nil
}

// applyFailure shows a single failed call the way a blocked retrieval is shown.
func (s *Session) applyFailure(code errorcode.Code, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch network.KindOf(err) {
	case network.ErrorNoInternetConnection:
		alert := viewstate.NoInternetAlert()
		s.alert = &alert
	case network.ErrorServerBusy:
		s.state = viewstate.Feedback(viewstate.ServerBusyContent(code.String()))
	default:
		s.state = viewstate.Feedback(viewstate.ServerUnreachableContent(code.String()))
	}
}
