// Package session is the list-events state machine: it turns a retrieval result into the
// screen the holder reviews and runs make-QR when they confirm.
package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"healthwallet/internal/holder/dcc"
	"healthwallet/internal/holder/fetch"
	"healthwallet/internal/holder/issuance"
	"healthwallet/internal/holder/models"
	"healthwallet/internal/holder/reconcile"
	"healthwallet/internal/holder/store"
	"healthwallet/internal/holder/viewstate"
	dErrors "healthwallet/pkg/domain-errors"
)

var (
	// ErrInProgress is returned when make-QR is requested while one is running.
	ErrInProgress = dErrors.New(dErrors.CodeConflict, "an issuance is already in progress")
	// ErrNotListing is returned when make-QR is requested outside the list state.
	ErrNotListing = dErrors.New(dErrors.CodeConflict, "session has no events to issue")
)

// Issuer runs make-QR.
type Issuer interface {
	MakeQR(ctx context.Context, mode models.EventMode, remote []models.RemoteEvent) issuance.Outcome
}

// Wallet is the stored data the session checks identities against and clears on replace.
type Wallet interface {
	ListEventGroups(ctx context.Context) ([]models.EventGroup, error)
	RemoveExistingEventGroups(ctx context.Context, filter store.EventGroupFilter) (int, error)
	StoreGreenCards(ctx context.Context, cards []models.GreenCard) error
}

// IdentityComparator decides whether remote events belong to the stored holder.
type IdentityComparator interface {
	Compare(existing []models.EventGroup, remote []models.RemoteEvent) bool
}

// Session holds one reviewed retrieval. Its methods are safe for concurrent use; state
// transitions are serialized by mu.
type Session struct {
	ID   uuid.UUID
	Mode models.EventMode

	remote     []models.RemoteEvent
	issuer     Issuer
	wallet     Wallet
	comparator IdentityComparator
	logger     *slog.Logger

	mu       sync.Mutex
	state    viewstate.State
	alert    *viewstate.Alert
	progress atomic.Int32
}

// Snapshot is what a renderer needs at one moment.
type Snapshot struct {
	ID           uuid.UUID        `json:"id"`
	Mode         models.EventMode `json:"mode"`
	State        viewstate.State  `json:"state"`
	Alert        *viewstate.Alert `json:"alert,omitempty"`
	ShowProgress bool             `json:"show_progress"`
}

func newSession(mode models.EventMode, deps Dependencies) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		ID:         uuid.New(),
		Mode:       mode,
		issuer:     deps.Issuer,
		wallet:     deps.Wallet,
		comparator: deps.Comparator,
		logger:     logger,
		state:      viewstate.Loading(viewstate.LoadingContent(mode)),
	}
}

// State returns the current screen.
func (s *Session) State() viewstate.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Alert returns the pending alert, if any.
func (s *Session) Alert() *viewstate.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alert
}

// ShouldShowProgress reports whether an issuance is running.
func (s *Session) ShouldShowProgress() bool {
	return s.progress.Load() > 0
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:           s.ID,
		Mode:         s.Mode,
		State:        s.state,
		Alert:        s.alert,
		ShowProgress: s.ShouldShowProgress(),
	}
}

// applyFetch moves the session out of loading according to a retrieval result.
func (s *Session) applyFetch(result fetch.Result, reader dcc.CredentialReader) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch result.Blocking {
	case fetch.BlockingNoInternet:
		alert := viewstate.NoInternetAlert()
		s.alert = &alert
		return
	case fetch.BlockingServerBusy:
		s.state = viewstate.Feedback(viewstate.ServerBusyContent(result.ErrorMessage()))
		return
	case fetch.BlockingError:
		s.state = viewstate.Feedback(viewstate.ServerUnreachableContent(result.ErrorMessage()))
		return
	}

	s.applyRemoteLocked(result.RemoteEvents, reader)
	if len(result.Errors) > 0 && s.state.Kind == viewstate.KindListEvents {
		alert := viewstate.PartialFailureAlert(result.ErrorMessage())
		s.alert = &alert
	}
}

func (s *Session) applyRemoteLocked(remote []models.RemoteEvent, reader dcc.CredentialReader) {
	s.remote = remote
	built := reconcile.Build(remote, s.Mode)
	switch built.Outcome {
	case reconcile.OutcomePending:
		s.state = viewstate.Feedback(viewstate.PendingContent())
	case reconcile.OutcomeNoEvents:
		s.state = viewstate.Feedback(viewstate.NoEventsContent(s.Mode))
	default:
		s.state = viewstate.ListEvents(viewstate.ListContent(s.Mode), reconcile.Rows(built.Items, reader))
	}
}

// UserWantsToMakeQR starts issuance for the listed events. When they belong to someone
// other than the stored holder, nothing is stored and the replace alert is raised instead.
func (s *Session) UserWantsToMakeQR(ctx context.Context) (Snapshot, error) {
	err := s.exclusive(func() error {
		existing, err := s.wallet.ListEventGroups(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "list stored event groups")
		}
		if !s.comparator.Compare(existing, s.remote) {
			alert := viewstate.IdentityMismatchAlert()
			s.setAlert(&alert)
			return nil
		}
		s.issue(ctx)
		return nil
	})
	return s.Snapshot(), err
}

// ReplaceExistingData clears the wallet and issues for the listed events. It answers the
// identity mismatch alert.
func (s *Session) ReplaceExistingData(ctx context.Context) (Snapshot, error) {
	err := s.exclusive(func() error {
		if _, err := s.wallet.RemoveExistingEventGroups(ctx, store.EventGroupFilter{}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "remove stored event groups")
		}
		if err := s.wallet.StoreGreenCards(ctx, nil); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "remove stored green cards")
		}
		s.logger.InfoContext(ctx, "stored data replaced", "session_id", s.ID.String(), "event_mode", string(s.Mode))
		s.issue(ctx)
		return nil
	})
	return s.Snapshot(), err
}

// exclusive runs fn while holding the progress counter, only from the list state.
func (s *Session) exclusive(fn func() error) error {
	if !s.progress.CompareAndSwap(0, 1) {
		return ErrInProgress
	}
	defer s.progress.Store(0)

	if s.State().Kind != viewstate.KindListEvents {
		return ErrNotListing
	}
	return fn()
}

func (s *Session) issue(ctx context.Context) {
	s.setAlert(nil)
	outcome := s.issuer.MakeQR(ctx, s.Mode, s.remote)

	s.mu.Lock()
	if outcome.State != nil {
		s.state = *outcome.State
	}
	s.alert = outcome.Alert
	s.mu.Unlock()

	if outcome.EndState != "" {
		s.logger.InfoContext(ctx, "issuance finished",
			"session_id", s.ID.String(), "event_mode", string(s.Mode), "end_state", string(outcome.EndState))
	}
}

// DismissAlert clears the alert, for example after Cancel on the replace dialog.
func (s *Session) DismissAlert() Snapshot {
	s.setAlert(nil)
	return s.Snapshot()
}

// GoBack asks for confirmation before discarding listed events. Outside the list state
// there is nothing to lose and no alert is raised.
func (s *Session) GoBack() Snapshot {
	if s.State().Kind == viewstate.KindListEvents {
		alert := viewstate.BackConfirmationAlert()
		s.setAlert(&alert)
	}
	return s.Snapshot()
}

// SomethingWrong is the help content behind the list's secondary action.
func (s *Session) SomethingWrong() viewstate.Content {
	return viewstate.SomethingWrongContent(s.Mode)
}

func (s *Session) setAlert(alert *viewstate.Alert) {
	s.mu.Lock()
	s.alert = alert
	s.mu.Unlock()
}
