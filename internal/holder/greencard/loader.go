// Package greencard turns the stored event groups into green cards: it asks the signer for a
// nonce, derives the issue commitment, submits the events and persists what comes back.
package greencard

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/hkdf"

	"healthwallet/internal/holder/errorcode"
	"healthwallet/internal/holder/models"
	"healthwallet/internal/holder/network"
	"healthwallet/internal/holder/tracer"
)

// customErrorCode is the signer body code for a rejection the holder explains with the
// signer's own wording.
const customErrorCode = 99857

const commitmentSize = 32

// Gateway is the signer side of the backend.
type Gateway interface {
	PrepareIssue(ctx context.Context) (models.PrepareIssueEnvelope, error)
	FetchGreenCards(ctx context.Context, request models.CredentialsRequest) (*models.GreenCardResponse, error)
}

// Wallet is the storage the loader reads events from and writes cards to.
type Wallet interface {
	ListEventGroups(ctx context.Context) ([]models.EventGroup, error)
	StoreGreenCards(ctx context.Context, cards []models.GreenCard) error
}

// Evaluator decides whether a signer response carries what the flow asked for.
type Evaluator func(*models.GreenCardResponse) bool

// Loader signs stored events into green cards.
type Loader struct {
	gateway Gateway
	wallet  Wallet
	secret  []byte
	tracer  tracer.Tracer
	logger  *slog.Logger
}

type Option func(*Loader)

func WithTracer(t tracer.Tracer) Option {
	return func(l *Loader) { l.tracer = t }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// New creates a Loader. secret is the holder master secret the commitment is derived from.
func New(gateway Gateway, wallet Wallet, secret []byte, opts ...Option) *Loader {
	l := &Loader{
		gateway: gateway,
		wallet:  wallet,
		secret:  secret,
		tracer:  tracer.NewNoop(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SignEventsIntoGreenCards submits every stored event group to the signer. When evaluate
// rejects the response nothing is persisted and a KindDidNotEvaluate error carrying the
// response is returned.
func (l *Loader) SignEventsIntoGreenCards(ctx context.Context, evaluate Evaluator) (*models.GreenCardResponse, error) {
	groups, err := l.wallet.ListEventGroups(ctx)
	if err != nil {
		return nil, &Error{Kind: KindNoSignedEvents, Step: errorcode.StepSigner, Err: err}
	}
	events := make([]models.SignedResponse, 0, len(groups))
	for _, g := range groups {
		var signed models.SignedResponse
		if err := json.Unmarshal(g.JSONData, &signed); err != nil {
			l.logger.WarnContext(ctx, "skipping undecodable event group",
				"event_group_id", g.ID.String(), "error", err)
			continue
		}
		events = append(events, signed)
	}
	if len(events) == 0 {
		return nil, &Error{Kind: KindNoSignedEvents, Step: errorcode.StepSigner}
	}

	prepared, err := l.gateway.PrepareIssue(ctx)
	if err != nil {
		return nil, signerError(errorcode.StepPrepareIssue, err)
	}

	commitment, err := l.commitment(prepared)
	if err != nil {
		return nil, &Error{Kind: KindCommitmentFailed, Step: errorcode.StepPrepareIssue, Err: err}
	}

	ctx, span := l.tracer.Start(ctx, tracer.SpanSignerCredentials, tracer.Int(tracer.AttrEventGroups, len(events)))
	response, err := l.gateway.FetchGreenCards(ctx, models.CredentialsRequest{
		Events:                 events,
		Stoken:                 prepared.Stoken,
		IssueCommitmentMessage: commitment,
	})
	if err == nil {
		span.AddEvent(tracer.EventSigned)
	}
	span.End(err)
	if err != nil {
		return nil, signerError(errorcode.StepSigner, err)
	}

	if !evaluate(response) {
		return nil, &Error{Kind: KindDidNotEvaluate, Step: errorcode.StepSigner, Response: response}
	}

	if err := l.wallet.StoreGreenCards(ctx, models.GreenCardsFromResponse(response)); err != nil {
		return nil, &Error{Kind: KindFailedToSaveCards, Step: errorcode.StepSigner, Err: err}
	}
	return response, nil
}

// commitment derives the issue commitment from the master secret bound to this nonce.
func (l *Loader) commitment(prepared models.PrepareIssueEnvelope) (string, error) {
	if len(l.secret) == 0 {
		return "", errors.New("holder secret not configured")
	}
	if prepared.PrepareIssueMessage == "" || prepared.Stoken == "" {
		return "", errors.New("prepare issue response incomplete")
	}
	nonce, err := base64.StdEncoding.DecodeString(prepared.PrepareIssueMessage)
	if err != nil {
		return "", fmt.Errorf("decode prepare issue message: %w", err)
	}
	key := make([]byte, commitmentSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, l.secret, []byte(prepared.Stoken), nonce), key); err != nil {
		return "", fmt.Errorf("derive commitment: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func signerError(step errorcode.Step, err error) *Error {
	se := network.AsServerError(err)
	switch {
	case se.Kind == network.ErrorNoInternetConnection:
		return &Error{Kind: KindNoInternet, Step: step, Server: se}
	case se.Kind == network.ErrorServerError && se.Response != nil && se.Response.Code == customErrorCode:
		return &Error{
			Kind:    KindCustomError,
			Step:    step,
			Server:  se,
			Title:   "We can't create a certificate",
			Message: "The data you retrieved cannot be used to create a certificate right now. Try again later.",
		}
	default:
		return &Error{Kind: KindServerError, Step: step, Server: se}
	}
}
