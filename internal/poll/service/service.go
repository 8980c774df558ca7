// Package service implements the poll lifecycle engine: every guarded state
// transition over the poll aggregate, followed by a durable write.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pollboard/internal/audit"
	"pollboard/internal/identity"
	"pollboard/internal/poll/metrics"
	"pollboard/internal/poll/models"
	"pollboard/internal/poll/store"
	"pollboard/pkg/domain"
	dErrors "pollboard/pkg/domain-errors"
	"pollboard/pkg/requestcontext"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

var tracer = otel.Tracer("pollboard/poll")

// Service is the lifecycle engine. Role checks happen upstream in the
// authorizer middleware; the engine enforces domain preconditions and owns
// every mutation of the poll aggregate.
type Service struct {
	store    store.Store
	resolver identity.Resolver
	auditor  *audit.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(st store.Store, resolver identity.Resolver, auditor *audit.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: st, resolver: resolver, auditor: auditor, metrics: m, logger: logger}
}

// CreateParams carries validated-at-the-boundary creation input.
type CreateParams struct {
	Title       string
	Description string
	Options     []string
	ExpiresAt   *time.Time
}

// EditParams is a partial update. Nil fields stay untouched. Creator and
// voter sets are never part of a patch; votes belong to Vote/Unvote alone.
type EditParams struct {
	Title       *string
	Description *string
	Options     []string
	ExpiresAt   *time.Time
}

// Create builds and persists a new poll owned by the caller.
func (s *Service) Create(ctx context.Context, ident domain.Identity, params CreateParams) (*models.PollView, error) {
	ctx, span := tracer.Start(ctx, "poll.Create")
	defer span.End()

	if strings.TrimSpace(params.Title) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if !models.ValidateOptionTexts(params.Options) {
		return nil, dErrors.New(dErrors.CodeValidation, "poll must have at least 2 options with non-empty text")
	}

	poll := models.NewPoll(ident.UserID, params.Title, params.Description, params.Options, params.ExpiresAt, requestcontext.Now(ctx))
	if err := s.store.Create(ctx, poll); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to create poll")
	}

	s.metrics.PollsCreated.Inc()
	s.audit(ctx, audit.ActionPollCreated, poll.ID, ident.UserID)
	s.logger.InfoContext(ctx, "poll created",
		"request_id", requestcontext.RequestID(ctx),
		"poll_id", poll.ID,
		"creator_id", ident.UserID,
	)
	return s.view(ctx, poll)
}

// List returns one page of polls, newest first.
func (s *Service) List(ctx context.Context, page, limit int) (*models.ListResult, error) {
	ctx, span := tracer.Start(ctx, "poll.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	polls, total, err := s.store.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list polls")
	}

	ids := make([]domain.UserID, 0, len(polls))
	seen := make(map[domain.UserID]struct{}, len(polls))
	for _, poll := range polls {
		if _, ok := seen[poll.CreatorID]; ok {
			continue
		}
		seen[poll.CreatorID] = struct{}{}
		ids = append(ids, poll.CreatorID)
	}
	names, err := s.resolveNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]models.ListItem, len(polls))
	for i, poll := range polls {
		items[i] = models.NewListItem(poll, names)
	}
	return &models.ListResult{Polls: items, Total: total, Page: page, Limit: limit}, nil
}

// Get returns the poll detail with resolved voter identities.
func (s *Service) Get(ctx context.Context, pollID domain.PollID) (*models.PollView, error) {
	ctx, span := tracer.Start(ctx, "poll.Get", trace.WithAttributes(attribute.String("poll.id", pollID.String())))
	defer span.End()

	poll, err := s.load(ctx, pollID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, poll)
}

// Edit applies a partial update. Replacing the option list resets voter sets
// for options whose text changed identity; options are matched positionally
// against existing text so an unchanged list keeps its votes.
func (s *Service) Edit(ctx context.Context, pollID domain.PollID, params EditParams) (*models.PollView, error) {
	ctx, span := tracer.Start(ctx, "poll.Edit", trace.WithAttributes(attribute.String("poll.id", pollID.String())))
	defer span.End()

	poll, err := s.load(ctx, pollID)
	if err != nil {
		return nil, err
	}

	if params.Title != nil {
		if strings.TrimSpace(*params.Title) == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "title must not be empty")
		}
		poll.Title = strings.TrimSpace(*params.Title)
	}
	if params.Description != nil {
		poll.Description = strings.TrimSpace(*params.Description)
	}
	if params.ExpiresAt != nil {
		poll.ExpiresAt = params.ExpiresAt
	}
	if params.Options != nil {
		if !models.ValidateOptionTexts(params.Options) {
			return nil, dErrors.New(dErrors.CodeValidation, "poll must have at least 2 options with non-empty text")
		}
		poll.Options = rebuildOptions(poll.Options, params.Options)
	}

	if err := s.store.Replace(ctx, poll); err != nil {
		return nil, s.storeErr(err, "failed to update poll")
	}
	s.audit(ctx, audit.ActionPollEdited, poll.ID, requestcontext.Identity(ctx).UserID)
	return s.reload(ctx, pollID)
}

// Lock closes the voting gate. Idempotent.
func (s *Service) Lock(ctx context.Context, pollID domain.PollID) (*models.PollView, error) {
	return s.setLocked(ctx, pollID, true, audit.ActionPollLocked)
}

// Unlock reopens the voting gate. Idempotent.
func (s *Service) Unlock(ctx context.Context, pollID domain.PollID) (*models.PollView, error) {
	return s.setLocked(ctx, pollID, false, audit.ActionPollUnlocked)
}

func (s *Service) setLocked(ctx context.Context, pollID domain.PollID, locked bool, action audit.Action) (*models.PollView, error) {
	ctx, span := tracer.Start(ctx, "poll.SetLocked", trace.WithAttributes(
		attribute.String("poll.id", pollID.String()),
		attribute.Bool("poll.locked", locked),
	))
	defer span.End()

	poll, err := s.load(ctx, pollID)
	if err != nil {
		return nil, err
	}
	poll.IsLocked = locked
	if err := s.store.Replace(ctx, poll); err != nil {
		return nil, s.storeErr(err, "failed to update poll")
	}
	s.audit(ctx, action, pollID, requestcontext.Identity(ctx).UserID)
	return s.reload(ctx, pollID)
}

// AddOption appends a new option with a fresh id and empty voter set.
func (s *Service) AddOption(ctx context.Context, pollID domain.PollID, text string) (*models.PollView, error) {
	ctx, span := tracer.Start(ctx, "poll.AddOption", trace.WithAttributes(attribute.String("poll.id", pollID.String())))
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "option text is required")
	}

	poll, err := s.load(ctx, pollID)
	if err != nil {
		return nil, err
	}
	poll.Options = append(poll.Options, models.Option{ID: domain.NewOptionID(), Text: text})
	if err := s.store.Replace(ctx, poll); err != nil {
		return nil, s.storeErr(err, "failed to add option")
	}
	s.audit(ctx, audit.ActionOptionAdded, pollID, requestcontext.Identity(ctx).UserID)
	return s.reload(ctx, pollID)
}

// RemoveOption deletes an option and the votes it holds. Removal that would
// leave the poll below the 2-option minimum is rejected.
func (s *Service) RemoveOption(ctx context.Context, pollID domain.PollID, optionID domain.OptionID) (*models.PollView, error) {
	ctx, span := tracer.Start(ctx, "poll.RemoveOption", trace.WithAttributes(
		attribute.String("poll.id", pollID.String()),
		attribute.String("option.id", optionID.String()),
	))
	defer span.End()

	poll, err := s.load(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if _, ok := poll.Option(optionID); !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "option not found")
	}
	if len(poll.Options) <= models.MinOptions {
		return nil, dErrors.New(dErrors.CodeValidation, "poll must keep at least 2 options")
	}

	kept := poll.Options[:0]
	for _, opt := range poll.Options {
		if opt.ID != optionID {
			kept = append(kept, opt)
		}
	}
	poll.Options = kept
	if err := s.store.Replace(ctx, poll); err != nil {
		return nil, s.storeErr(err, "failed to remove option")
	}
	s.audit(ctx, audit.ActionOptionRemoved, pollID, requestcontext.Identity(ctx).UserID)
	return s.reload(ctx, pollID)
}

// Vote records the caller's single vote in the poll. Precondition order:
// poll exists, poll not locked, poll not expired, caller has not voted
// anywhere in the poll, option exists. The store primitive decides
// concurrent duplicates; the checks here fix the error ordering.
func (s *Service) Vote(ctx context.Context, ident domain.Identity, pollID domain.PollID, optionID domain.OptionID) (*models.PollView, error) {
	ctx, span := tracer.Start(ctx, "poll.Vote", trace.WithAttributes(
		attribute.String("poll.id", pollID.String()),
		attribute.String("option.id", optionID.String()),
	))
	defer span.End()

	poll, err := s.load(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if err := s.checkGates(poll, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if _, voted := poll.VotedOption(ident.UserID); voted {
		s.metrics.VotesRejected.WithLabelValues(metrics.ReasonDuplicate).Inc()
		return nil, dErrors.New(dErrors.CodeConflict, "you have already voted")
	}
	if _, ok := poll.Option(optionID); !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "option not found")
	}

	if err := s.store.AddVote(ctx, pollID, optionID, ident.UserID); err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyVoted):
			s.metrics.VotesRejected.WithLabelValues(metrics.ReasonDuplicate).Inc()
			return nil, dErrors.New(dErrors.CodeConflict, "you have already voted")
		case errors.Is(err, store.ErrOptionNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "option not found")
		case errors.Is(err, store.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "poll not found")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to record vote")
		}
	}

	s.metrics.VotesCast.Inc()
	s.audit(ctx, audit.ActionVoteCast, pollID, ident.UserID)
	s.logger.InfoContext(ctx, "vote recorded",
		"request_id", requestcontext.RequestID(ctx),
		"poll_id", pollID,
		"option_id", optionID,
		"user_id", ident.UserID,
	)
	return s.reload(ctx, pollID)
}

// Unvote withdraws the caller's vote from the given option. It is gated by
// lock and expiry exactly like Vote: once a poll is closed, its recorded
// outcome stops moving in either direction.
func (s *Service) Unvote(ctx context.Context, ident domain.Identity, pollID domain.PollID, optionID domain.OptionID) (*models.PollView, error) {
	ctx, span := tracer.Start(ctx, "poll.Unvote", trace.WithAttributes(
		attribute.String("poll.id", pollID.String()),
		attribute.String("option.id", optionID.String()),
	))
	defer span.End()

	poll, err := s.load(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if err := s.checkGates(poll, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if _, ok := poll.Option(optionID); !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "option not found")
	}

	if err := s.store.RemoveVote(ctx, pollID, optionID, ident.UserID); err != nil {
		switch {
		case errors.Is(err, store.ErrVoteNotFound):
			return nil, dErrors.New(dErrors.CodeConflict, "you have not voted for this option")
		case errors.Is(err, store.ErrOptionNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "option not found")
		case errors.Is(err, store.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "poll not found")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to withdraw vote")
		}
	}

	s.audit(ctx, audit.ActionVoteWithdrawn, pollID, ident.UserID)
	return s.reload(ctx, pollID)
}

// Delete removes the poll permanently, options and votes included.
func (s *Service) Delete(ctx context.Context, pollID domain.PollID) error {
	ctx, span := tracer.Start(ctx, "poll.Delete", trace.WithAttributes(attribute.String("poll.id", pollID.String())))
	defer span.End()

	if err := s.store.Delete(ctx, pollID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "poll not found")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to delete poll")
	}
	s.audit(ctx, audit.ActionPollDeleted, pollID, requestcontext.Identity(ctx).UserID)
	return nil
}

// checkGates enforces the lock and expiry gates for vote traffic. Both gates
// block vote/unvote only; lock, edit, and delete run regardless.
func (s *Service) checkGates(poll *models.Poll, now time.Time) error {
	if poll.IsLocked {
		s.metrics.VotesRejected.WithLabelValues(metrics.ReasonLocked).Inc()
		return dErrors.New(dErrors.CodeForbidden, "poll is locked")
	}
	if poll.HasExpired(now) {
		s.metrics.VotesRejected.WithLabelValues(metrics.ReasonExpired).Inc()
		return dErrors.New(dErrors.CodeForbidden, "poll has expired")
	}
	return nil
}

// storeErr translates write-path store failures. A NotFound here means the
// poll vanished between load and write, for example a concurrent delete.
func (s *Service) storeErr(err error, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "poll not found")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, message)
}

func (s *Service) load(ctx context.Context, pollID domain.PollID) (*models.Poll, error) {
	poll, err := s.store.Get(ctx, pollID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "poll not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load poll")
	}
	return poll, nil
}

func (s *Service) reload(ctx context.Context, pollID domain.PollID) (*models.PollView, error) {
	poll, err := s.load(ctx, pollID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, poll)
}

func (s *Service) view(ctx context.Context, poll *models.Poll) (*models.PollView, error) {
	names, err := s.resolveNames(ctx, poll.VoterIDs())
	if err != nil {
		return nil, err
	}
	return models.NewPollView(poll, names), nil
}

func (s *Service) resolveNames(ctx context.Context, ids []domain.UserID) (map[domain.UserID]string, error) {
	names, err := s.resolver.DisplayNames(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to resolve identities")
	}
	return names, nil
}

func (s *Service) audit(ctx context.Context, action audit.Action, pollID domain.PollID, actor domain.UserID) {
	if s.auditor == nil {
		return
	}
	s.auditor.Emit(ctx, audit.Event{
		Action:    action,
		PollID:    pollID,
		ActorID:   actor,
		RequestID: requestcontext.RequestID(ctx),
		Timestamp: requestcontext.Now(ctx),
	})
}

// rebuildOptions maps a patched text list onto the existing option set.
// Positions whose text is unchanged keep their option id (and therefore
// their votes); new or reworded positions get fresh ids with empty voter
// sets.
func rebuildOptions(existing []models.Option, texts []string) []models.Option {
	rebuilt := make([]models.Option, len(texts))
	for i, text := range texts {
		text = strings.TrimSpace(text)
		if i < len(existing) && existing[i].Text == text {
			rebuilt[i] = models.Option{ID: existing[i].ID, Text: text}
			continue
		}
		rebuilt[i] = models.Option{ID: domain.NewOptionID(), Text: text}
	}
	return rebuilt
}
