// Package audit captures lifecycle actions for operational visibility.
// Events are emitted from the poll service and fanned out to a sink; sinks
// are best-effort and must never fail a domain operation.
package audit

import (
	"time"

	"pollboard/pkg/domain"
)

// Action names what happened to a poll.
type Action string

const (
	ActionPollCreated   Action = "poll_created"
	ActionPollEdited    Action = "poll_edited"
	ActionPollLocked    Action = "poll_locked"
	ActionPollUnlocked  Action = "poll_unlocked"
	ActionPollDeleted   Action = "poll_deleted"
	ActionOptionAdded   Action = "option_added"
	ActionOptionRemoved Action = "option_removed"
	ActionVoteCast      Action = "vote_cast"
	ActionVoteWithdrawn Action = "vote_withdrawn"
)

// Event is one audit record. Keep it transport-agnostic so sinks can fan out.
type Event struct {
	Action    Action        `json:"action"`
	PollID    domain.PollID `json:"poll_id"`
	ActorID   domain.UserID `json:"actor_id"`
	RequestID string        `json:"request_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
