// Package issuance drives make-QR: the reviewed events are stored, signed into green cards,
// checked against what the flow asked for and classified into the screen the holder sees.
package issuance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"healthwallet/internal/holder/classify"
	"healthwallet/internal/holder/dcc"
	"healthwallet/internal/holder/errorcode"
	"healthwallet/internal/holder/greencard"
	"healthwallet/internal/holder/metrics"
	"healthwallet/internal/holder/models"
	"healthwallet/internal/holder/network"
	"healthwallet/internal/holder/store"
	"healthwallet/internal/holder/tracer"
	"healthwallet/internal/holder/viewstate"
)

const genericErrorTitle = "Sorry, something went wrong"

// Wallet is the persistence the orchestrator needs.
type Wallet interface {
	StoreEventGroup(ctx context.Context, group models.EventGroup) (models.EventGroup, error)
	RemoveExistingEventGroups(ctx context.Context, filter store.EventGroupFilter) (int, error)
	RemoveEventGroup(ctx context.Context, id uuid.UUID) error
	FinalizeEventGroup(ctx context.Context, id uuid.UUID, expiry *time.Time) error
	ListGreenCards(ctx context.Context) ([]models.GreenCard, error)
	RemoveExpiredGreenCards(ctx context.Context, now time.Time) ([]models.GreenCard, error)
}

// Signer signs the stored events into green cards.
type Signer interface {
	SignEventsIntoGreenCards(ctx context.Context, evaluate greencard.Evaluator) (*models.GreenCardResponse, error)
}

// ConfigSource supplies the remote configuration currently in effect.
type ConfigSource interface {
	Current() models.RemoteConfiguration
}

// Outcome is the result of one make-QR attempt. State is nil when the current screen stays
// (an alert is shown over it instead).
type Outcome struct {
	EndState classify.EndState
	State    *viewstate.State
	Alert    *viewstate.Alert
	Response *models.GreenCardResponse
}

// Orchestrator runs make-QR attempts. It never retries on its own.
type Orchestrator struct {
	wallet  Wallet
	signer  Signer
	config  ConfigSource
	reader  dcc.CredentialReader
	tracer  tracer.Tracer
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Orchestrator)

func WithTracer(t tracer.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithCredentialReader(r dcc.CredentialReader) Option {
	return func(o *Orchestrator) { o.reader = r }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(wallet Wallet, signer Signer, config ConfigSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		wallet: wallet,
		signer: signer,
		config: config,
		reader: dcc.NewJSONReader(),
		tracer: tracer.NewNoop(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// MakeQR stores remote, signs the wallet and classifies the result. Only complete
// wrappers are stored.
func (o *Orchestrator) MakeQR(ctx context.Context, mode models.EventMode, remote []models.RemoteEvent) Outcome {
	ctx, span := o.tracer.Start(ctx, tracer.SpanIssuance, tracer.String(tracer.AttrEventMode, string(mode)))
	outcome, err := o.makeQR(ctx, span, mode, remote)
	label := string(outcome.EndState)
	if label == "" {
		label = "error"
	}
	span.SetAttributes(tracer.String(tracer.AttrEndState, label))
	span.End(err)
	o.metrics.IncIssuanceOutcome(string(mode), label)
	return outcome
}

func (o *Orchestrator) makeQR(ctx context.Context, span tracer.Span, mode models.EventMode, remote []models.RemoteEvent) (Outcome, error) {
	flow := errorcode.FlowFor(mode)
	now := o.now()

	remote = completeOnly(remote)
	expanded := mode
	if mode == models.ModePaperflow {
		var err error
		if expanded, err = o.paperflowMode(remote); err != nil {
			code := errorcode.New(flow, errorcode.StepStoring, errorcode.UnhandledCredential)
			return errorOutcome(genericErrorTitle, code), err
		}
	}

	held := o.holdsDomesticVaccination(ctx, now)

	stored, err := o.storeEventGroups(ctx, mode, expanded, remote, now)
	if err != nil {
		o.logger.ErrorContext(ctx, "storing event groups failed", "event_mode", string(mode), "error", err)
		o.discardDrafts(ctx, stored)
		code := errorcode.New(flow, errorcode.StepStoring, errorcode.StoringEvents)
		return errorOutcome(genericErrorTitle, code), err
	}
	span.AddEvent(tracer.EventGroupsStored, tracer.Int(tracer.AttrEventGroups, len(stored)))

	response, err := o.signer.SignEventsIntoGreenCards(ctx, classify.Evaluator(expanded, now))
	if err != nil {
		o.discardDrafts(ctx, stored)
		return o.signingFailed(ctx, mode, expanded, remote, held, now, err)
	}

	o.finalize(ctx, expanded, stored, response, now)
	state := o.classify(expanded, response, remote, held, now)
	view := EndStateView(state, expanded, flow)
	return Outcome{EndState: state, State: &view, Response: response}, nil
}

func completeOnly(remote []models.RemoteEvent) []models.RemoteEvent {
	out := make([]models.RemoteEvent, 0, len(remote))
	for _, r := range remote {
		if r.Wrapper.Status == models.StatusComplete {
			out = append(out, r)
		}
	}
	return out
}

var errNoCredential = errors.New("paper flow without a certificate")

// paperflowMode expands the scanned certificate into the mode it is issued under.
func (o *Orchestrator) paperflowMode(remote []models.RemoteEvent) (models.EventMode, error) {
	for _, r := range remote {
		for _, e := range r.Wrapper.Events {
			p, ok := e.Payload.(*models.DCC)
			if !ok {
				continue
			}
			c, err := o.reader.ReadEuCredential([]byte(p.Credential))
			if err != nil {
				return "", err
			}
			return dcc.ModeFor(c)
		}
	}
	return "", errNoCredential
}

func (o *Orchestrator) holdsDomesticVaccination(ctx context.Context, now time.Time) bool {
	if removed, err := o.wallet.RemoveExpiredGreenCards(ctx, now); err != nil {
		o.logger.WarnContext(ctx, "removing expired green cards failed", "error", err)
	} else {
		o.metrics.AddGreenCardsRemoved(len(removed))
	}
	cards, err := o.wallet.ListGreenCards(ctx)
	if err != nil {
		o.logger.WarnContext(ctx, "listing green cards failed", "error", err)
		return false
	}
	for _, c := range cards {
		if c.Kind == models.GreenCardDomestic && c.HasValidOrigin(models.OriginVaccination, now) {
			return true
		}
	}
	return false
}

// storeEventGroups persists each remote event as a draft group. Earlier groups of the same
// mode and provider are superseded, except for scanned vaccinations which accumulate.
func (o *Orchestrator) storeEventGroups(ctx context.Context, mode, expanded models.EventMode, remote []models.RemoteEvent, now time.Time) ([]models.EventGroup, error) {
	additive := mode == models.ModePaperflow && expanded == models.ModeVaccination
	stored := make([]models.EventGroup, 0, len(remote))
	for _, r := range remote {
		provider := r.Wrapper.ProviderIdentifier
		if !additive {
			if _, err := o.wallet.RemoveExistingEventGroups(ctx, store.EventGroupFilter{Mode: expanded, ProviderIdentifier: provider}); err != nil {
				return stored, err
			}
		}
		data, err := models.EncodeSignedResponse(r)
		if err != nil {
			return stored, err
		}
		g, err := o.wallet.StoreEventGroup(ctx, models.EventGroup{
			Type:               expanded,
			ProviderIdentifier: provider,
			MaxIssuedAt:        models.MaxIssuedAt(r.Wrapper, now),
			JSONData:           data,
			IsDraft:            true,
		})
		if err != nil {
			return stored, err
		}
		stored = append(stored, g)
	}
	o.metrics.IncEventGroupsStored(string(expanded), len(stored))
	return stored, nil
}

func (o *Orchestrator) discardDrafts(ctx context.Context, stored []models.EventGroup) {
	for _, g := range stored {
		if err := o.wallet.RemoveEventGroup(ctx, g.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			o.logger.WarnContext(ctx, "discarding draft event group failed", "event_group_id", g.ID.String(), "error", err)
		}
	}
}

// finalize clears the draft flag and records the latest expiry among the origins of the
// flow's types.
func (o *Orchestrator) finalize(ctx context.Context, mode models.EventMode, stored []models.EventGroup, response *models.GreenCardResponse, now time.Time) {
	var expiry *time.Time
	for _, t := range originTypes(mode) {
		if exp, ok := response.LatestExpiration(t, now); ok && (expiry == nil || exp.After(*expiry)) {
			expiry = &exp
		}
	}
	for _, g := range stored {
		if err := o.wallet.FinalizeEventGroup(ctx, g.ID, expiry); err != nil {
			o.logger.WarnContext(ctx, "finalizing event group failed", "event_group_id", g.ID.String(), "error", err)
		}
	}
}

func originTypes(mode models.EventMode) []models.OriginType {
	switch mode {
	case models.ModeRecovery, models.ModeVaccinationAndPositiveTest:
		return []models.OriginType{models.OriginRecovery, models.OriginVaccination}
	case models.ModeTest:
		return []models.OriginType{models.OriginTest}
	case models.ModeVaccinationAssessment:
		return []models.OriginType{models.OriginVaccinationAssessment}
	default:
		return []models.OriginType{models.OriginVaccination}
	}
}

func (o *Orchestrator) classify(mode models.EventMode, response *models.GreenCardResponse, remote []models.RemoteEvent, held bool, now time.Time) classify.EndState {
	return classify.Classify(classify.Input{
		Mode:                    mode,
		Response:                response,
		Now:                     now,
		HeldDomesticVaccination: held,
		PositiveEventDates:      positiveEventDates(remote),
		RecoveryExpirationDays:  o.config.Current().RecoveryExpirationDays,
	})
}

func positiveEventDates(remote []models.RemoteEvent) []time.Time {
	var dates []time.Time
	for _, r := range remote {
		for _, e := range r.Wrapper.Events {
			if e.Type() != models.EventTypeRecovery && e.Type() != models.EventTypePositiveTest {
				continue
			}
			if d, ok := e.Date(); ok {
				dates = append(dates, d)
			}
		}
	}
	return dates
}

func (o *Orchestrator) signingFailed(ctx context.Context, mode, expanded models.EventMode, remote []models.RemoteEvent, held bool, now time.Time, err error) (Outcome, error) {
	flow := errorcode.FlowFor(mode)
	var gcErr *greencard.Error
	if !errors.As(err, &gcErr) {
		code := errorcode.New(flow, errorcode.StepSigner, errorcode.InvalidResponse)
		return errorOutcome(genericErrorTitle, code), err
	}

	switch gcErr.Kind {
	case greencard.KindNoInternet:
		alert := viewstate.NoInternetAlert()
		return Outcome{Alert: &alert}, err
	case greencard.KindDidNotEvaluate:
		state := o.classify(expanded, gcErr.Response, remote, held, now)
		if state == classify.Continue {
			state = classify.OriginMismatch
		}
		feedback := viewstate.Feedback(EndStateContent(state, expanded, flow))
		return Outcome{EndState: state, State: &feedback, Response: gcErr.Response}, nil
	case greencard.KindCustomError:
		feedback := viewstate.Feedback(viewstate.Content{
			Title:         gcErr.Title,
			Body:          gcErr.Message,
			PrimaryAction: &viewstate.Action{Title: "Back to overview", Kind: viewstate.ActionBackToOverview},
		})
		return Outcome{State: &feedback}, err
	}

	code, ok := gcErr.Code(flow)
	if !ok {
		code = errorcode.New(flow, errorcode.StepSigner, errorcode.InvalidResponse)
	}
	if gcErr.Server != nil && gcErr.Server.Kind == network.ErrorServerBusy {
		alert := viewstate.ServerBusyAlert(code.String())
		return Outcome{Alert: &alert}, err
	}
	o.logger.ErrorContext(ctx, "signing failed", "event_mode", string(mode), "error_code", code.String(), "error", err)
	return errorOutcome(genericErrorTitle, code), err
}

func errorOutcome(title string, code errorcode.Code) Outcome {
	feedback := viewstate.Feedback(viewstate.ErrorContent(title, code.String()))
	return Outcome{State: &feedback}
}
