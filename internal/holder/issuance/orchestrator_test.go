package issuance

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"healthwallet/internal/holder/classify"
	"healthwallet/internal/holder/dcc"
	"healthwallet/internal/holder/greencard"
	"healthwallet/internal/holder/metrics"
	"healthwallet/internal/holder/models"
	"healthwallet/internal/holder/network"
	"healthwallet/internal/holder/store"
	"healthwallet/internal/holder/viewstate"
)

const scannedVaccination = `{"issuer":"NL","dcc":{"dob":"1960-01-01","nam":{"fn":"Bouwer","gn":"Bob"},
"v":[{"tg":"840539006","mp":"EU/1/20/1528","ma":"ORG-100030215","dn":2,"sd":2,"dt":"2021-07-18","co":"NL","ci":"URN:UCI:01:NL:ABC"}]}}`

const scannedMixed = `{"issuer":"NL","dcc":{"dob":"1960-01-01","nam":{"fn":"Bouwer","gn":"Bob"},
"v":[{"dt":"2021-07-18","ci":"a"}],"t":[{"sc":"2021-07-01","ci":"b"}]}}`

// stubSigner records what was stored when it was called and answers with a canned result.
type stubSigner struct {
	response  *models.GreenCardResponse
	err       error
	evaluated *bool
	calls     int
}

func (s *stubSigner) SignEventsIntoGreenCards(_ context.Context, evaluate greencard.Evaluator) (*models.GreenCardResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	ok := evaluate(s.response)
	s.evaluated = &ok
	if !ok {
		return nil, &greencard.Error{Kind: greencard.KindDidNotEvaluate, Response: s.response}
	}
	return s.response, nil
}

type stubConfig struct {
	cfg models.RemoteConfiguration
}

func (c stubConfig) Current() models.RemoteConfiguration { return c.cfg }

// failingWallet fails every StoreEventGroup call.
type failingWallet struct {
	*store.InMemoryStore
}

func (failingWallet) StoreEventGroup(context.Context, models.EventGroup) (models.EventGroup, error) {
	return models.EventGroup{}, errors.New("disk full")
}

type OrchestratorSuite struct {
	suite.Suite
	wallet   *store.InMemoryStore
	signer   *stubSigner
	metrics  *metrics.Metrics
	orch     *Orchestrator
	now      time.Time
	ctx      context.Context
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.now = time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = context.Background()
	s.wallet = store.NewInMemory()
	s.signer = &stubSigner{response: s.cards(models.OriginVaccination)}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.orch = s.newOrchestrator(s.wallet)
}

func (s *OrchestratorSuite) newOrchestrator(wallet Wallet) *Orchestrator {
	return New(wallet, s.signer, stubConfig{models.RemoteConfiguration{RecoveryExpirationDays: 365}},
		WithClock(func() time.Time { return s.now }),
		WithMetrics(s.metrics),
		WithCredentialReader(dcc.NewJSONReader()),
	)
}

func (s *OrchestratorSuite) origin(t models.OriginType, eventTime time.Time) models.Origin {
	return models.Origin{Type: t, EventTime: eventTime, ValidFrom: eventTime, ExpirationTime: s.now.AddDate(0, 6, 0)}
}

func (s *OrchestratorSuite) cards(types ...models.OriginType) *models.GreenCardResponse {
	var origins []models.Origin
	for _, t := range types {
		origins = append(origins, s.origin(t, s.now.AddDate(0, -1, 0)))
	}
	return &models.GreenCardResponse{Domestic: &models.DomesticGreenCard{Origins: origins}}
}

func remoteEvent(provider string, status models.EventStatus, events ...models.Event) models.RemoteEvent {
	return models.RemoteEvent{
		Wrapper: models.EventWrapper{
			ProtocolVersion:    "3.0",
			ProviderIdentifier: provider,
			Status:             status,
			Identity:           &models.Identity{FirstName: "Bob", LastName: "Bouwer", BirthDate: "1960-01-01"},
			Events:             events,
		},
		SignedResponse: &models.SignedResponse{Payload: "cGF5bG9hZA==", Signature: "c2ln"},
	}
}

func vaccination(date string) models.Event {
	return models.Event{Unique: "v-" + date, Payload: &models.Vaccination{Date: date, HpkCode: "2924528"}}
}

func positiveTest(date string) models.Event {
	return models.Event{Unique: "p-" + date, Payload: &models.PositiveTest{SampleDate: date, PositiveResult: true}}
}

func (s *OrchestratorSuite) groups() []models.EventGroup {
	groups, err := s.wallet.ListEventGroups(s.ctx)
	s.Require().NoError(err)
	return groups
}

func (s *OrchestratorSuite) TestVaccinationContinueFinalizesGroups() {
	out := s.orch.MakeQR(s.ctx, models.ModeVaccination, []models.RemoteEvent{
		remoteEvent("GGD", models.StatusComplete, vaccination("2021-06-01")),
		remoteEvent("RIVM", models.StatusPending),
	})

	s.Equal(classify.Continue, out.EndState)
	s.Require().NotNil(out.State)
	s.Equal(viewstate.KindCompleted, out.State.Kind, "continue returns to the overview without a screen")
	s.Empty(out.State.Content.Title)
	s.Nil(out.Alert)

	groups := s.groups()
	s.Require().Len(groups, 1, "only complete wrappers are stored")
	s.Equal("GGD", groups[0].ProviderIdentifier)
	s.False(groups[0].IsDraft)
	s.Require().NotNil(groups[0].ExpiryDate)
	s.True(groups[0].ExpiryDate.Equal(s.now.AddDate(0, 6, 0)))
	s.Equal(1.0, testutil.ToFloat64(s.orch.metrics.IssuanceOutcomesTotal.WithLabelValues("vaccination", "continue")))
}

func (s *OrchestratorSuite) TestSupersedesGroupOfSameModeAndProvider() {
	_, err := s.wallet.StoreEventGroup(s.ctx, models.EventGroup{Type: models.ModeVaccination, ProviderIdentifier: "ggd", JSONData: []byte(`{}`)})
	s.Require().NoError(err)
	_, err = s.wallet.StoreEventGroup(s.ctx, models.EventGroup{Type: models.ModeTest, ProviderIdentifier: "GGD", JSONData: []byte(`{}`)})
	s.Require().NoError(err)

	s.orch.MakeQR(s.ctx, models.ModeVaccination, []models.RemoteEvent{
		remoteEvent("GGD", models.StatusComplete, vaccination("2021-06-01")),
	})

	groups := s.groups()
	s.Require().Len(groups, 2)
	s.Equal(models.ModeTest, groups[0].Type)
	s.Equal(models.ModeVaccination, groups[1].Type)
	s.Equal("GGD", groups[1].ProviderIdentifier)
}

func (s *OrchestratorSuite) TestPaperflowVaccinationsAccumulate() {
	scan := func() models.RemoteEvent {
		remote, _, err := dcc.RemoteEventFor(dcc.NewJSONReader(), scannedVaccination, "ABC123")
		s.Require().NoError(err)
		return remote
	}

	s.orch.MakeQR(s.ctx, models.ModePaperflow, []models.RemoteEvent{scan()})
	out := s.orch.MakeQR(s.ctx, models.ModePaperflow, []models.RemoteEvent{scan()})

	s.Equal(classify.Continue, out.EndState)
	groups := s.groups()
	s.Require().Len(groups, 2)
	for _, g := range groups {
		s.Equal(models.ModeVaccination, g.Type)
		s.Equal(models.DCCProviderIdentifier, g.ProviderIdentifier)
	}
}

func (s *OrchestratorSuite) TestPaperflowUnhandledCredential() {
	remote, _, err := dcc.RemoteEventFor(dcc.NewJSONReader(), scannedMixed, "ABC123")
	s.Require().NoError(err)

	out := s.orch.MakeQR(s.ctx, models.ModePaperflow, []models.RemoteEvent{remote})

	s.Require().NotNil(out.State)
	s.Contains(out.State.Content.Body, "i 460 000 057")
	s.Empty(s.groups())
	s.Zero(s.signer.calls)
}

func (s *OrchestratorSuite) TestStorageFailureIsFatal() {
	orch := s.newOrchestrator(failingWallet{s.wallet})

	out := orch.MakeQR(s.ctx, models.ModeVaccination, []models.RemoteEvent{
		remoteEvent("GGD", models.StatusComplete, vaccination("2021-06-01")),
	})

	s.Require().NotNil(out.State)
	s.Equal(viewstate.KindFeedback, out.State.Kind)
	s.Contains(out.State.Content.Body, "i 260 000 053")
	s.Zero(s.signer.calls)
	s.Empty(s.groups())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.IssuanceOutcomesTotal.WithLabelValues("vaccination", "error")))
}

func (s *OrchestratorSuite) TestNoInternetShowsAlertAndDiscardsDrafts() {
	s.signer.err = &greencard.Error{Kind: greencard.KindNoInternet}

	out := s.orch.MakeQR(s.ctx, models.ModeVaccination, []models.RemoteEvent{
		remoteEvent("GGD", models.StatusComplete, vaccination("2021-06-01")),
	})

	s.Nil(out.State)
	s.Require().NotNil(out.Alert)
	s.Equal(viewstate.ActionRetry, out.Alert.OkAction)
	s.Empty(s.groups())
}

func (s *OrchestratorSuite) TestServerErrorCode() {
	s.signer.err = &greencard.Error{
		Kind:   greencard.KindServerError,
		Step:   "80",
		Server: &network.ServerError{Kind: network.ErrorServerError, StatusCode: http.StatusInternalServerError, Response: &models.ServerResponse{Code: 99702}},
	}

	out := s.orch.MakeQR(s.ctx, models.ModeTest, []models.RemoteEvent{
		remoteEvent("XXX", models.StatusComplete, models.Event{Payload: &models.NegativeTest{SampleDate: "2022-02-28", NegativeResult: true}}),
	})

	s.Require().NotNil(out.State)
	s.Contains(out.State.Content.Body, "i 180 000 500 99702")
}

func (s *OrchestratorSuite) TestServerBusyShowsAlert() {
	s.signer.err = &greencard.Error{
		Kind:   greencard.KindServerError,
		Step:   "80",
		Server: &network.ServerError{Kind: network.ErrorServerBusy, StatusCode: http.StatusTooManyRequests},
	}

	out := s.orch.MakeQR(s.ctx, models.ModeVaccination, []models.RemoteEvent{
		remoteEvent("GGD", models.StatusComplete, vaccination("2021-06-01")),
	})

	s.Nil(out.State)
	s.Require().NotNil(out.Alert)
	s.Contains(out.Alert.Subtitle, "i 280 000 429")
}

func (s *OrchestratorSuite) TestOriginMismatch() {
	s.signer.response = s.cards(models.OriginTest)

	out := s.orch.MakeQR(s.ctx, models.ModeVaccination, []models.RemoteEvent{
		remoteEvent("GGD", models.StatusComplete, vaccination("2021-06-01")),
	})

	s.Equal(classify.OriginMismatch, out.EndState)
	s.Require().NotNil(out.State)
	s.Contains(out.State.Content.Body, "i 280 000 058")
	s.Empty(s.groups())
}

func (s *OrchestratorSuite) TestRecoveryTooOld() {
	s.signer.response = &models.GreenCardResponse{}

	out := s.orch.MakeQR(s.ctx, models.ModeRecovery, []models.RemoteEvent{
		remoteEvent("GGD", models.StatusComplete, positiveTest("2020-10-01")),
	})

	s.Equal(classify.RecoveryTooOld, out.EndState)
}

func (s *OrchestratorSuite) TestPositiveTestTooOldWhenAlreadyVaccinated() {
	s.Require().NoError(s.wallet.StoreGreenCards(s.ctx, models.GreenCardsFromResponse(s.cards(models.OriginVaccination))))
	s.signer.response = s.cards(models.OriginVaccination)

	out := s.orch.MakeQR(s.ctx, models.ModeRecovery, []models.RemoteEvent{
		remoteEvent("GGD", models.StatusComplete, positiveTest("2021-01-01")),
	})

	s.Equal(classify.PositiveTestTooOld, out.EndState)
}

func (s *OrchestratorSuite) TestPositiveTestRecoveryBeforeVaccination() {
	s.signer.response = &models.GreenCardResponse{Domestic: &models.DomesticGreenCard{Origins: []models.Origin{
		s.origin(models.OriginRecovery, s.now.AddDate(0, -4, 0)),
		s.origin(models.OriginVaccination, s.now.AddDate(0, -2, 0)),
	}}}

	out := s.orch.MakeQR(s.ctx, models.ModeVaccinationAndPositiveTest, []models.RemoteEvent{
		remoteEvent("GGD", models.StatusComplete, positiveTest("2021-11-01"), vaccination("2022-01-01")),
	})

	s.Equal(classify.RecoveryAndVaccinationCreated, out.EndState)
}

func (s *OrchestratorSuite) TestCustomSignerError() {
	s.signer.err = &greencard.Error{Kind: greencard.KindCustomError, Title: "Title", Message: "Message"}

	out := s.orch.MakeQR(s.ctx, models.ModeVaccination, []models.RemoteEvent{
		remoteEvent("GGD", models.StatusComplete, vaccination("2021-06-01")),
	})

	s.Require().NotNil(out.State)
	s.Equal("Title", out.State.Content.Title)
	s.Equal("Message", out.State.Content.Body)
}
