package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"pollboard/internal/audit"
	"pollboard/internal/identity"
	"pollboard/internal/poll/metrics"
	"pollboard/internal/poll/models"
	"pollboard/internal/poll/store"
	"pollboard/pkg/domain"
	dErrors "pollboard/pkg/domain-errors"
	"pollboard/pkg/requestcontext"
	"pollboard/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	store   *store.InMemory
	sink    *audit.InMemorySink
	service *Service
	admin   domain.Identity
	user    domain.Identity
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.admin = testutil.NewAdminIdentity()
	s.user = testutil.NewUserIdentity()

	ctx := requestcontext.WithTime(context.Background(), s.now)
	ctx = requestcontext.WithIdentity(ctx, s.admin)
	s.ctx = requestcontext.WithRequestID(ctx, "req-test")

	s.store = store.NewInMemory()
	s.sink = audit.NewInMemorySink()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(
		s.store,
		identity.NewStaticResolver(nil),
		audit.NewPublisher(s.sink, logger),
		metrics.NewWith(prometheus.NewRegistry()),
		logger,
	)
}

func (s *ServiceSuite) createPoll(options ...string) *models.PollView {
	if len(options) == 0 {
		options = []string{"Pizza", "Sushi"}
	}
	view, err := s.service.Create(s.ctx, s.admin, CreateParams{Title: "Lunch", Options: options})
	s.Require().NoError(err)
	return view
}

// ctxAt shifts the request time while keeping identity and request id.
func (s *ServiceSuite) ctxAt(now time.Time) context.Context {
	return requestcontext.WithTime(s.ctx, now)
}

func (s *ServiceSuite) TestCreate() {
	view := s.createPoll()

	s.False(view.ID.IsZero())
	s.Equal("Lunch", view.Title)
	s.Equal(s.admin.UserID, view.Creator.ID)
	s.NotEmpty(view.Creator.DisplayName)
	s.Require().Len(view.Options, 2)
	s.Equal(0, view.TotalVotes)
	s.False(view.IsLocked)

	events, err := s.sink.ListByPoll(s.ctx, view.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionPollCreated, events[0].Action)
	s.Equal(s.admin.UserID, events[0].ActorID)
}

func (s *ServiceSuite) TestCreateValidation() {
	_, err := s.service.Create(s.ctx, s.admin, CreateParams{Title: "  ", Options: []string{"a", "b"}})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Create(s.ctx, s.admin, CreateParams{Title: "Lunch", Options: []string{"only one"}})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Create(s.ctx, s.admin, CreateParams{Title: "Lunch", Options: []string{"a", "   "}})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestGetUnknownPoll() {
	_, err := s.service.Get(s.ctx, domain.NewPollID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestListClampsPaging() {
	for i := 0; i < 3; i++ {
		s.createPoll()
	}

	result, err := s.service.List(s.ctx, -5, 0)
	s.Require().NoError(err)
	s.Equal(1, result.Page)
	s.Equal(10, result.Limit)
	s.Equal(3, result.Total)
	s.Len(result.Polls, 3)

	result, err = s.service.List(s.ctx, 1, 1000)
	s.Require().NoError(err)
	s.Equal(100, result.Limit)
}

func (s *ServiceSuite) TestEditPatchesOnlyProvidedFields() {
	created := s.createPoll()

	title := "Dinner"
	view, err := s.service.Edit(s.ctx, created.ID, EditParams{Title: &title})
	s.Require().NoError(err)
	s.Equal("Dinner", view.Title)
	s.Require().Len(view.Options, 2)
	s.Equal(created.Options[0].ID, view.Options[0].ID, "untouched options keep their ids")
}

func (s *ServiceSuite) TestEditRejectsBlankTitle() {
	created := s.createPoll()
	blank := "   "
	_, err := s.service.Edit(s.ctx, created.ID, EditParams{Title: &blank})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestEditOptionsKeepVotesForUnchangedPositions() {
	created := s.createPoll("Pizza", "Sushi")
	_, err := s.service.Vote(s.ctx, s.user, created.ID, created.Options[0].ID)
	s.Require().NoError(err)

	view, err := s.service.Edit(s.ctx, created.ID, EditParams{Options: []string{"Pizza", "Tacos"}})
	s.Require().NoError(err)

	s.Require().Len(view.Options, 2)
	s.Equal(created.Options[0].ID, view.Options[0].ID)
	s.Equal(1, view.Options[0].Votes, "unchanged position keeps its votes")
	s.NotEqual(created.Options[1].ID, view.Options[1].ID)
	s.Equal(0, view.Options[1].Votes, "reworded position starts clean")
}

func (s *ServiceSuite) TestLockUnlockIdempotent() {
	created := s.createPoll()

	view, err := s.service.Lock(s.ctx, created.ID)
	s.Require().NoError(err)
	s.True(view.IsLocked)

	view, err = s.service.Lock(s.ctx, created.ID)
	s.Require().NoError(err)
	s.True(view.IsLocked)

	view, err = s.service.Unlock(s.ctx, created.ID)
	s.Require().NoError(err)
	s.False(view.IsLocked)
}

func (s *ServiceSuite) TestAddOption() {
	created := s.createPoll()

	view, err := s.service.AddOption(s.ctx, created.ID, "  Tacos  ")
	s.Require().NoError(err)
	s.Require().Len(view.Options, 3)
	s.Equal("Tacos", view.Options[2].Text)
	s.Equal(0, view.Options[2].Votes)

	_, err = s.service.AddOption(s.ctx, created.ID, "   ")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestRemoveOptionDropsItsVotes() {
	created := s.createPoll("Pizza", "Sushi", "Tacos")
	_, err := s.service.Vote(s.ctx, s.user, created.ID, created.Options[2].ID)
	s.Require().NoError(err)

	view, err := s.service.RemoveOption(s.ctx, created.ID, created.Options[2].ID)
	s.Require().NoError(err)
	s.Len(view.Options, 2)
	s.Equal(0, view.TotalVotes, "removed option takes its votes with it")
}

func (s *ServiceSuite) TestRemoveOptionGuards() {
	created := s.createPoll()

	_, err := s.service.RemoveOption(s.ctx, created.ID, domain.NewOptionID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.RemoveOption(s.ctx, created.ID, created.Options[0].ID)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "cannot drop below two options")
}

func (s *ServiceSuite) TestVote() {
	created := s.createPoll()

	view, err := s.service.Vote(s.ctx, s.user, created.ID, created.Options[0].ID)
	s.Require().NoError(err)
	s.Equal(1, view.Options[0].Votes)
	s.Require().Len(view.Options[0].Voters, 1)
	s.Equal(s.user.UserID, view.Options[0].Voters[0].ID)
	s.Equal(1, view.TotalVotes)

	// Votes always equal the voter set size.
	s.Equal(len(view.Options[0].Voters), view.Options[0].Votes)
}

func (s *ServiceSuite) TestVoteOncePerPoll() {
	created := s.createPoll()

	_, err := s.service.Vote(s.ctx, s.user, created.ID, created.Options[0].ID)
	s.Require().NoError(err)

	_, err = s.service.Vote(s.ctx, s.user, created.ID, created.Options[0].ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = s.service.Vote(s.ctx, s.user, created.ID, created.Options[1].ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "one vote per poll, not per option")

	// The failed second vote left the state untouched.
	view, err := s.service.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(1, view.Options[0].Votes)
	s.Equal(0, view.Options[1].Votes)
}

func (s *ServiceSuite) TestTwoVotersSplitAcrossOptions() {
	created := s.createPoll()
	other := testutil.NewUserIdentity()

	_, err := s.service.Vote(s.ctx, s.user, created.ID, created.Options[0].ID)
	s.Require().NoError(err)
	_, err = s.service.Vote(s.ctx, other, created.ID, created.Options[1].ID)
	s.Require().NoError(err)

	view, err := s.service.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(1, view.Options[0].Votes)
	s.Equal(1, view.Options[1].Votes)
	s.Equal(2, view.TotalVotes)
}

func (s *ServiceSuite) TestVoteGates() {
	created := s.createPoll()

	_, err := s.service.Lock(s.ctx, created.ID)
	s.Require().NoError(err)

	_, err = s.service.Vote(s.ctx, s.user, created.ID, created.Options[0].ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal("poll is locked", dErrors.MessageOf(err))

	// Unlock reopens the gate.
	_, err = s.service.Unlock(s.ctx, created.ID)
	s.Require().NoError(err)
	_, err = s.service.Vote(s.ctx, s.user, created.ID, created.Options[0].ID)
	s.NoError(err)
}

func (s *ServiceSuite) TestVoteExpiredPoll() {
	expiry := s.now.Add(time.Hour)
	view, err := s.service.Create(s.ctx, s.admin, CreateParams{
		Title:     "Lunch",
		Options:   []string{"Pizza", "Sushi"},
		ExpiresAt: &expiry,
	})
	s.Require().NoError(err)

	// Before the deadline voting works.
	_, err = s.service.Vote(s.ctx, s.user, view.ID, view.Options[0].ID)
	s.Require().NoError(err)

	// After the deadline it answers forbidden.
	late := s.ctxAt(expiry.Add(time.Minute))
	_, err = s.service.Vote(late, testutil.NewUserIdentity(), view.ID, view.Options[0].ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal("poll has expired", dErrors.MessageOf(err))
}

func (s *ServiceSuite) TestVoteLockWinsOverExpiry() {
	expiry := s.now.Add(-time.Hour)
	view, err := s.service.Create(s.ctx, s.admin, CreateParams{
		Title:     "Lunch",
		Options:   []string{"Pizza", "Sushi"},
		ExpiresAt: &expiry,
	})
	s.Require().NoError(err)
	_, err = s.service.Lock(s.ctx, view.ID)
	s.Require().NoError(err)

	_, err = s.service.Vote(s.ctx, s.user, view.ID, view.Options[0].ID)
	s.Equal("poll is locked", dErrors.MessageOf(err))
}

func (s *ServiceSuite) TestVoteUnknownOption() {
	created := s.createPoll()
	_, err := s.service.Vote(s.ctx, s.user, created.ID, domain.NewOptionID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal("option not found", dErrors.MessageOf(err))
}

func (s *ServiceSuite) TestVoteUnknownPoll() {
	created := s.createPoll()
	_, err := s.service.Vote(s.ctx, s.user, domain.NewPollID(), created.Options[0].ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal("poll not found", dErrors.MessageOf(err))
}

func (s *ServiceSuite) TestUnvoteThenVoteElsewhere() {
	created := s.createPoll()

	_, err := s.service.Vote(s.ctx, s.user, created.ID, created.Options[0].ID)
	s.Require().NoError(err)

	view, err := s.service.Unvote(s.ctx, s.user, created.ID, created.Options[0].ID)
	s.Require().NoError(err)
	s.Equal(0, view.TotalVotes)

	view, err = s.service.Vote(s.ctx, s.user, created.ID, created.Options[1].ID)
	s.Require().NoError(err)
	s.Equal(0, view.Options[0].Votes)
	s.Equal(1, view.Options[1].Votes)
}

func (s *ServiceSuite) TestUnvoteWithoutPriorVote() {
	created := s.createPoll()

	_, err := s.service.Unvote(s.ctx, s.user, created.ID, created.Options[0].ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Equal("you have not voted for this option", dErrors.MessageOf(err))

	// State is unchanged by the failed withdrawal.
	view, err := s.service.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(0, view.TotalVotes)
}

func (s *ServiceSuite) TestUnvoteGatedLikeVote() {
	created := s.createPoll()
	_, err := s.service.Vote(s.ctx, s.user, created.ID, created.Options[0].ID)
	s.Require().NoError(err)

	_, err = s.service.Lock(s.ctx, created.ID)
	s.Require().NoError(err)

	_, err = s.service.Unvote(s.ctx, s.user, created.ID, created.Options[0].ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden), "a locked poll's outcome stops moving in either direction")
}

func (s *ServiceSuite) TestDelete() {
	created := s.createPoll()

	s.Require().NoError(s.service.Delete(s.ctx, created.ID))

	_, err := s.service.Get(s.ctx, created.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	err = s.service.Delete(s.ctx, created.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestAuditTrailPerPoll() {
	created := s.createPoll()
	_, err := s.service.Vote(s.ctx, s.user, created.ID, created.Options[0].ID)
	s.Require().NoError(err)
	_, err = s.service.Lock(s.ctx, created.ID)
	s.Require().NoError(err)

	events, err := s.sink.ListByPoll(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Equal(audit.ActionPollCreated, events[0].Action)
	s.Equal(audit.ActionVoteCast, events[1].Action)
	s.Equal(audit.ActionPollLocked, events[2].Action)
	s.Equal("req-test", events[0].RequestID)
}
