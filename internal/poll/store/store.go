// Package store persists poll aggregates.
//
// Vote bookkeeping is deliberately not a read-modify-write on the whole
// document: AddVote and RemoveVote are atomic store-level primitives so two
// concurrent votes can never clobber each other. Everything else follows
// full-document replace semantics with single-document atomicity.
package store

import (
	"context"
	"errors"

	"pollboard/internal/poll/models"
	"pollboard/pkg/domain"
	"pollboard/pkg/platform/sentinel"
)

var (
	// ErrNotFound signals the poll id did not resolve.
	ErrNotFound = sentinel.ErrNotFound
	// ErrOptionNotFound signals the option id did not resolve within the poll.
	ErrOptionNotFound = errors.New("option not found")
	// ErrAlreadyVoted signals the voter already holds a vote in this poll.
	// AddVote returns it even under concurrent duplicate requests; this is
	// the store-enforced one-vote-per-poll invariant.
	ErrAlreadyVoted = errors.New("already voted")
	// ErrVoteNotFound signals the voter holds no vote on the given option.
	ErrVoteNotFound = errors.New("vote not found")
)

// Store is the poll persistence contract.
type Store interface {
	// Create persists a new poll document.
	Create(ctx context.Context, poll *models.Poll) error
	// Get returns a snapshot of the poll, or ErrNotFound.
	Get(ctx context.Context, id domain.PollID) (*models.Poll, error)
	// Replace overwrites the poll's own fields and option set atomically.
	// Votes held by options whose ids survive the replace are preserved.
	Replace(ctx context.Context, poll *models.Poll) error
	// Delete removes the poll with its options and votes, or ErrNotFound.
	Delete(ctx context.Context, id domain.PollID) error
	// List returns one page of polls, newest first, plus the total count.
	List(ctx context.Context, offset, limit int) ([]*models.Poll, int, error)

	// AddVote records voterID's vote for optionID if and only if the voter
	// holds no vote anywhere in the poll. Atomic with respect to concurrent
	// AddVote calls on the same poll.
	AddVote(ctx context.Context, pollID domain.PollID, optionID domain.OptionID, voterID domain.UserID) error
	// RemoveVote withdraws voterID's vote from optionID, or ErrVoteNotFound
	// when no such vote exists.
	RemoveVote(ctx context.Context, pollID domain.PollID, optionID domain.OptionID, voterID domain.UserID) error
}
