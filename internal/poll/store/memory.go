package store

import (
	"context"
	"sort"
	"sync"

	"pollboard/internal/poll/models"
	"pollboard/pkg/domain"
	"pollboard/pkg/requestcontext"
)

// InMemory keeps polls in a map guarded by one mutex. Vote primitives run
// entirely under the lock, which serializes writes per process and makes
// AddVote atomic. Snapshots are deep copies so callers never alias store
// state.
type InMemory struct {
	mu    sync.RWMutex
	polls map[domain.PollID]*models.Poll
}

func NewInMemory() *InMemory {
	return &InMemory{polls: make(map[domain.PollID]*models.Poll)}
}

func (s *InMemory) Create(_ context.Context, poll *models.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[poll.ID] = poll.Clone()
	return nil
}

func (s *InMemory) Get(_ context.Context, id domain.PollID) (*models.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	poll, ok := s.polls[id]
	if !ok {
		return nil, ErrNotFound
	}
	return poll.Clone(), nil
}

func (s *InMemory) Replace(ctx context.Context, poll *models.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.polls[poll.ID]
	if !ok {
		return ErrNotFound
	}

	// Carry surviving votes over: voter sets belong to the vote primitives,
	// not to Replace callers.
	next := poll.Clone()
	for i := range next.Options {
		if existing, found := current.Option(next.Options[i].ID); found {
			next.Options[i].Voters = append([]domain.UserID(nil), existing.Voters...)
		} else {
			next.Options[i].Voters = nil
		}
	}
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = requestcontext.Now(ctx)
	next.Recount()
	s.polls[next.ID] = next
	return nil
}

func (s *InMemory) Delete(_ context.Context, id domain.PollID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.polls[id]; !ok {
		return ErrNotFound
	}
	delete(s.polls, id)
	return nil
}

func (s *InMemory) List(_ context.Context, offset, limit int) ([]*models.Poll, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.Poll, 0, len(s.polls))
	for _, poll := range s.polls {
		all = append(all, poll)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() > all[j].ID.String()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []*models.Poll{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	page := make([]*models.Poll, 0, end-offset)
	for _, poll := range all[offset:end] {
		page = append(page, poll.Clone())
	}
	return page, total, nil
}

func (s *InMemory) AddVote(ctx context.Context, pollID domain.PollID, optionID domain.OptionID, voterID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[pollID]
	if !ok {
		return ErrNotFound
	}
	if _, voted := poll.VotedOption(voterID); voted {
		return ErrAlreadyVoted
	}
	option, ok := poll.Option(optionID)
	if !ok {
		return ErrOptionNotFound
	}
	option.Voters = append(option.Voters, voterID)
	poll.Recount()
	poll.UpdatedAt = requestcontext.Now(ctx)
	return nil
}

func (s *InMemory) RemoveVote(ctx context.Context, pollID domain.PollID, optionID domain.OptionID, voterID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[pollID]
	if !ok {
		return ErrNotFound
	}
	option, ok := poll.Option(optionID)
	if !ok {
		return ErrOptionNotFound
	}
	for i, voter := range option.Voters {
		if voter == voterID {
			option.Voters = append(option.Voters[:i], option.Voters[i+1:]...)
			poll.Recount()
			poll.UpdatedAt = requestcontext.Now(ctx)
			return nil
		}
	}
	return ErrVoteNotFound
}
