// Package handler exposes the holder flows over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"healthwallet/internal/holder/models"
	"healthwallet/internal/holder/session"
	"healthwallet/internal/holder/store"
	"healthwallet/internal/platform/middleware"
	dErrors "healthwallet/pkg/domain-errors"
	"healthwallet/pkg/platform/httputil"
)

// Sessions starts list-events sessions.
type Sessions interface {
	Start(ctx context.Context, mode models.EventMode, authToken string) (*session.Session, error)
	StartPaperflow(credential, couplingCode string) (*session.Session, error)
	StartTestResult(ctx context.Context, rawToken, verificationCode string) (*session.Session, error)
}

// Wallet is the stored data the API lists and deletes.
type Wallet interface {
	ListEventGroups(ctx context.Context) ([]models.EventGroup, error)
	RemoveEventGroup(ctx context.Context, id uuid.UUID) error
}

// Handler handles the holder endpoints.
type Handler struct {
	sessions Sessions
	cache    *SessionCache
	wallet   Wallet
	logger   *slog.Logger
}

func New(sessions Sessions, cache *SessionCache, wallet Wallet, logger *slog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		cache:    cache,
		wallet:   wallet,
		logger:   logger,
	}
}

// Register registers the holder routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", h.handleStart)
		r.Post("/paperflow", h.handleStartPaperflow)
		r.Post("/test-result", h.handleStartTestResult)
		r.Get("/{id}", h.handleGetSession)
		r.Get("/{id}/something-wrong", h.handleSomethingWrong)
		r.Post("/{id}/make-qr", h.handleMakeQR)
		r.Post("/{id}/replace", h.handleReplace)
		r.Post("/{id}/back", h.handleBack)
		r.Post("/{id}/dismiss", h.handleDismiss)
	})
	r.Get("/v1/event-groups", h.handleListEventGroups)
	r.Delete("/v1/event-groups/{id}", h.handleDeleteEventGroup)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[startRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	s, err := h.sessions.Start(ctx, req.mode, req.AuthToken)
	h.started(ctx, w, s, err)
}

func (h *Handler) handleStartPaperflow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[paperflowRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	s, err := h.sessions.StartPaperflow(req.Credential, req.CouplingCode)
	h.started(ctx, w, s, err)
}

func (h *Handler) handleStartTestResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[testResultRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	s, err := h.sessions.StartTestResult(ctx, req.Token, req.VerificationCode)
	h.started(ctx, w, s, err)
}

func (h *Handler) started(ctx context.Context, w http.ResponseWriter, s *session.Session, err error) {
	if err != nil {
		h.logger.WarnContext(ctx, "failed to start session",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if err := h.cache.Put(s); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "session started",
		"request_id", middleware.GetRequestID(ctx),
		"session_id", s.ID.String(),
		"event_mode", string(s.Mode),
		"state", string(s.State().Kind),
	)
	httputil.WriteJSON(w, http.StatusCreated, s.Snapshot())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) handleSomethingWrong(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.SomethingWrong())
}

func (h *Handler) handleMakeQR(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := s.UserWantsToMakeQR(r.Context())
	h.issued(w, r, s, snap, err)
}

func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := s.ReplaceExistingData(r.Context())
	h.issued(w, r, s, snap, err)
}

// issued answers make-QR and replace. A session that reached a terminal state is
// evicted; the response is the last the client sees of it.
func (h *Handler) issued(w http.ResponseWriter, r *http.Request, s *session.Session, snap session.Snapshot, err error) {
	if err != nil {
		h.logger.WarnContext(r.Context(), "make-qr rejected",
			"request_id", middleware.GetRequestID(r.Context()),
			"session_id", snap.ID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if snap.State.IsTerminal() && snap.Alert == nil {
		h.cache.Remove(s.ID)
		h.logger.InfoContext(r.Context(), "session finished",
			"request_id", middleware.GetRequestID(r.Context()),
			"session_id", s.ID.String(),
			"state", string(snap.State.Kind),
		)
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleBack(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.GoBack())
}

func (h *Handler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.DismissAlert())
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid session id"))
		return nil, false
	}
	s, err := h.cache.Get(id)
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) handleListEventGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groups, err := h.wallet.ListEventGroups(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list event groups",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list event groups"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventGroupsResponse(groups))
}

func (h *Handler) handleDeleteEventGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid event group id"))
		return
	}
	err = h.wallet.RemoveEventGroup(ctx, id)
	switch {
	case store.IsNotFound(err):
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "event group not found"))
	case err != nil:
		h.logger.ErrorContext(ctx, "failed to remove event group",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "remove event group"))
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
