package fetch

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"healthwallet/internal/holder/models"
	"healthwallet/internal/holder/network"
)

// stubGateway is a test double for Gateway.
type stubGateway struct {
	mu           sync.Mutex
	tokens       []models.AccessToken
	tokensErr    error
	providers    models.ProviderList
	providersErr error
	unomi        map[string]error
	unknown      map[string]bool
	events       map[string]error
	eventCalls   []string
}

func (g *stubGateway) FetchAccessTokens(context.Context, string) ([]models.AccessToken, error) {
	return g.tokens, g.tokensErr
}

func (g *stubGateway) FetchProviders(context.Context) (models.ProviderList, error) {
	return g.providers, g.providersErr
}

func (g *stubGateway) FetchInformationAvailable(_ context.Context, p models.Provider, _ models.AccessToken, _ models.EventMode) (models.InformationAvailable, error) {
	if err := g.unomi[p.Identifier]; err != nil {
		return models.InformationAvailable{}, err
	}
	return models.InformationAvailable{ProviderIdentifier: p.Identifier, InformationAvailable: !g.unknown[p.Identifier]}, nil
}

func (g *stubGateway) FetchEvents(_ context.Context, p models.Provider, _ models.AccessToken, _ models.EventMode) (models.RemoteEvent, error) {
	g.mu.Lock()
	g.eventCalls = append(g.eventCalls, p.Identifier)
	g.mu.Unlock()
	if err := g.events[p.Identifier]; err != nil {
		return models.RemoteEvent{}, err
	}
	return models.RemoteEvent{Wrapper: models.EventWrapper{ProviderIdentifier: p.Identifier, Status: models.StatusComplete}}, nil
}

type FetchSuite struct {
	suite.Suite
	gateway *stubGateway
	session *Session
}

func TestFetchSuite(t *testing.T) {
	suite.Run(t, new(FetchSuite))
}

func (s *FetchSuite) SetupTest() {
	s.gateway = &stubGateway{
		tokens: []models.AccessToken{
			{ProviderIdentifier: "ggd", UnomiAccessToken: "u1", EventAccessToken: "e1"},
			{ProviderIdentifier: "RIVM", UnomiAccessToken: "u2", EventAccessToken: "e2"},
		},
		providers: models.ProviderList{EventProviders: []models.Provider{
			{Identifier: "RIVM", Usages: []string{"v"}},
			{Identifier: "GGD", Usages: []string{"v", "nt"}},
			{Identifier: "ZKVI", Usages: []string{"v"}},
		}},
		unomi:   map[string]error{},
		unknown: map[string]bool{},
		events:  map[string]error{},
	}
	s.session = New(s.gateway, WithConcurrency(2))
}

func timeout() error {
	return &network.ServerError{Kind: network.ErrorServerUnreachableTimedOut}
}

func busy() error {
	return &network.ServerError{Kind: network.ErrorServerBusy, StatusCode: http.StatusTooManyRequests}
}

func (s *FetchSuite) TestHappyPath() {
	result := s.session.Run(context.Background(), models.ModeVaccination, "login")

	s.Equal(BlockingNone, result.Blocking)
	s.Empty(result.Errors)
	s.Require().Len(result.RemoteEvents, 2, "provider without token is skipped")
	s.Equal("GGD", result.RemoteEvents[0].Wrapper.ProviderIdentifier)
	s.Equal("RIVM", result.RemoteEvents[1].Wrapper.ProviderIdentifier)
}

func (s *FetchSuite) TestProvidersNotServingModeAreSkipped() {
	result := s.session.Run(context.Background(), models.ModeTest, "login")

	s.Require().Len(result.RemoteEvents, 1)
	s.Equal([]string{"GGD"}, s.gateway.eventCalls)
}

func (s *FetchSuite) TestNoInformationAvailableSkipsEvents() {
	s.gateway.unknown["RIVM"] = true

	result := s.session.Run(context.Background(), models.ModeVaccination, "login")

	s.Len(result.RemoteEvents, 1)
	s.Equal([]string{"GGD"}, s.gateway.eventCalls)
}

func (s *FetchSuite) TestTokenAndProviderFailureCombinations() {
	cases := []struct {
		name         string
		tokensErr    error
		providersErr error
		wantBlocking Blocking
		wantMessage  string
	}{
		{"both time out", timeout(), timeout(), BlockingError, "i 220 000 004<br />i 230 000 004"},
		{"tokens busy", busy(), nil, BlockingServerBusy, "i 220 000 429"},
		{"providers busy", nil, busy(), BlockingServerBusy, "i 230 000 429"},
		{"both busy", busy(), busy(), BlockingServerBusy, "i 220 000 429<br />i 230 000 429"},
		{"busy and timeout", busy(), timeout(), BlockingError, "i 220 000 429<br />i 230 000 004"},
		{"tokens unreachable", &network.ServerError{Kind: network.ErrorServerUnreachableInvalidHost}, nil, BlockingError, "i 220 000 002"},
		{"providers no internet", nil, &network.ServerError{Kind: network.ErrorNoInternetConnection}, BlockingNoInternet, ""},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.gateway.tokensErr = tc.tokensErr
			s.gateway.providersErr = tc.providersErr

			result := s.session.Run(context.Background(), models.ModeVaccination, "login")

			s.Equal(tc.wantBlocking, result.Blocking)
			s.Equal(tc.wantMessage, result.ErrorMessage())
			s.Empty(result.RemoteEvents)
		})
	}
}

func (s *FetchSuite) TestPartialProviderFailureStillProceeds() {
	s.gateway.events["RIVM"] = timeout()

	result := s.session.Run(context.Background(), models.ModeVaccination, "login")

	s.Equal(BlockingNone, result.Blocking)
	s.Require().Len(result.RemoteEvents, 1)
	s.Equal("i 250 RIVM 004", result.ErrorMessage())
}

func (s *FetchSuite) TestAllProviderFailuresBlockInIdentifierOrder() {
	s.gateway.unomi["RIVM"] = busy()
	s.gateway.events["GGD"] = &network.ServerError{Kind: network.ErrorCannotDeserialize}

	result := s.session.Run(context.Background(), models.ModeVaccination, "login")

	s.Equal(BlockingError, result.Blocking)
	s.Equal("i 250 GGD 030<br />i 240 RIVM 429", result.ErrorMessage())
}
