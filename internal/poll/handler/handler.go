// Package handler wires the poll lifecycle engine to its HTTP surface. It
// stays thin: parse, delegate, translate. Role enforcement happens in the
// per-route authorizer middleware, not here.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pollboard/internal/identity"
	"pollboard/internal/poll/models"
	"pollboard/internal/poll/service"
	"pollboard/pkg/domain"
	"pollboard/pkg/platform/httputil"
	"pollboard/pkg/requestcontext"
)

// Service is the lifecycle engine contract the handler depends on.
type Service interface {
	Create(ctx context.Context, ident domain.Identity, params service.CreateParams) (*models.PollView, error)
	List(ctx context.Context, page, limit int) (*models.ListResult, error)
	Get(ctx context.Context, pollID domain.PollID) (*models.PollView, error)
	Edit(ctx context.Context, pollID domain.PollID, params service.EditParams) (*models.PollView, error)
	Lock(ctx context.Context, pollID domain.PollID) (*models.PollView, error)
	Unlock(ctx context.Context, pollID domain.PollID) (*models.PollView, error)
	AddOption(ctx context.Context, pollID domain.PollID, text string) (*models.PollView, error)
	RemoveOption(ctx context.Context, pollID domain.PollID, optionID domain.OptionID) (*models.PollView, error)
	Vote(ctx context.Context, ident domain.Identity, pollID domain.PollID, optionID domain.OptionID) (*models.PollView, error)
	Unvote(ctx context.Context, ident domain.Identity, pollID domain.PollID, optionID domain.OptionID) (*models.PollView, error)
	Delete(ctx context.Context, pollID domain.PollID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the poll routes. Each route names its operation once; the
// authorizer middleware reads the role table for it.
func (h *Handler) Register(r chi.Router) {
	guard := func(op identity.Operation) func(http.Handler) http.Handler {
		return identity.Require(op, h.logger)
	}

	r.With(guard(identity.OpListPolls)).Get("/polls", h.handleList)
	r.With(guard(identity.OpGetPoll)).Get("/polls/{id}", h.handleGet)
	r.With(guard(identity.OpCreatePoll)).Post("/polls", h.handleCreate)
	r.With(guard(identity.OpEditPoll)).Put("/polls/{id}", h.handleUpdate)
	r.With(guard(identity.OpDeletePoll)).Delete("/polls/{id}", h.handleDelete)
	r.With(guard(identity.OpLockPoll)).Patch("/polls/{id}/lock", h.handleLock)
	r.With(guard(identity.OpUnlockPoll)).Patch("/polls/{id}/unlock", h.handleUnlock)
	r.With(guard(identity.OpAddOption)).Post("/polls/{id}/options", h.handleAddOption)
	r.With(guard(identity.OpRemoveOption)).Delete("/polls/{pollId}/options/{optionId}", h.handleRemoveOption)
	r.With(guard(identity.OpVote)).Post("/polls/{pollId}/vote/{optionId}", h.handleVote)
	r.With(guard(identity.OpUnvote)).Post("/polls/{pollId}/unvote/{optionId}", h.handleUnvote)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.service.List(r.Context(), page, limit)
	if err != nil {
		h.fail(w, r, "list polls", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "polls retrieved successfully", result)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	pollID, err := domain.ParsePollID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.service.Get(r.Context(), pollID)
	if err != nil {
		h.fail(w, r, "get poll", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "poll retrieved successfully", view)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[CreatePollRequest](w, r)
	if !ok {
		return
	}
	ident := requestcontext.Identity(r.Context())
	view, err := h.service.Create(r.Context(), ident, service.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Options:     req.Options,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		h.fail(w, r, "create poll", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, "poll created successfully", view)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	pollID, err := domain.ParsePollID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeJSON[UpdatePollRequest](w, r)
	if !ok {
		return
	}
	view, err := h.service.Edit(r.Context(), pollID, service.EditParams{
		Title:       req.Title,
		Description: req.Description,
		Options:     req.Options,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		h.fail(w, r, "update poll", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "poll updated successfully", view)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	pollID, err := domain.ParsePollID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), pollID); err != nil {
		h.fail(w, r, "delete poll", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "poll deleted successfully", nil)
}

func (h *Handler) handleLock(w http.ResponseWriter, r *http.Request) {
	h.setLocked(w, r, true)
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	h.setLocked(w, r, false)
}

func (h *Handler) setLocked(w http.ResponseWriter, r *http.Request, locked bool) {
	pollID, err := domain.ParsePollID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var (
		view    *models.PollView
		message string
	)
	if locked {
		view, err = h.service.Lock(r.Context(), pollID)
		message = "poll locked"
	} else {
		view, err = h.service.Unlock(r.Context(), pollID)
		message = "poll unlocked"
	}
	if err != nil {
		h.fail(w, r, "set poll lock", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, message, view)
}

func (h *Handler) handleAddOption(w http.ResponseWriter, r *http.Request) {
	pollID, err := domain.ParsePollID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeJSON[AddOptionRequest](w, r)
	if !ok {
		return
	}
	view, err := h.service.AddOption(r.Context(), pollID, req.Text)
	if err != nil {
		h.fail(w, r, "add option", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "option added", view)
}

func (h *Handler) handleRemoveOption(w http.ResponseWriter, r *http.Request) {
	pollID, optionID, err := pollAndOptionIDs(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.service.RemoveOption(r.Context(), pollID, optionID)
	if err != nil {
		h.fail(w, r, "remove option", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "option removed", view)
}

func (h *Handler) handleVote(w http.ResponseWriter, r *http.Request) {
	pollID, optionID, err := pollAndOptionIDs(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ident := requestcontext.Identity(r.Context())
	view, err := h.service.Vote(r.Context(), ident, pollID, optionID)
	if err != nil {
		h.fail(w, r, "vote", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "vote successful", view)
}

func (h *Handler) handleUnvote(w http.ResponseWriter, r *http.Request) {
	pollID, optionID, err := pollAndOptionIDs(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ident := requestcontext.Identity(r.Context())
	view, err := h.service.Unvote(r.Context(), ident, pollID, optionID)
	if err != nil {
		h.fail(w, r, "unvote", err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "unvote successful", view)
}

func pollAndOptionIDs(r *http.Request) (domain.PollID, domain.OptionID, error) {
	pollID, err := domain.ParsePollID(chi.URLParam(r, "pollId"))
	if err != nil {
		return domain.PollID{}, domain.OptionID{}, err
	}
	optionID, err := domain.ParseOptionID(chi.URLParam(r, "optionId"))
	if err != nil {
		return domain.PollID{}, domain.OptionID{}, err
	}
	return pollID, optionID, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	ctx := r.Context()
	h.logger.ErrorContext(ctx, operation+" failed",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requestcontext.Identity(ctx).UserID,
		"error", err,
	)
	httputil.WriteError(w, err)
}
