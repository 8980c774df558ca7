package models

import (
	"time"

	"pollboard/pkg/domain"
)

// View types carry resolved display names and derived counts for the HTTP
// surface. They are built from a Poll snapshot plus a name map; voter
// counters are always recomputed from the voter sets here, never copied.

// UserRef is an identity reference resolved for display.
type UserRef struct {
	ID          domain.UserID `json:"id"`
	DisplayName string        `json:"displayName"`
}

// OptionView is one option with its voters resolved.
type OptionView struct {
	ID     domain.OptionID `json:"id"`
	Text   string          `json:"text"`
	Votes  int             `json:"votes"`
	Voters []UserRef       `json:"voters"`
}

// PollView is the full poll detail.
type PollView struct {
	ID          domain.PollID `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Creator     UserRef       `json:"creator"`
	Options     []OptionView  `json:"options"`
	IsLocked    bool          `json:"isLocked"`
	ExpiresAt   *time.Time    `json:"expiresAt,omitempty"`
	TotalVotes  int           `json:"totalVotes"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// ListItem is the condensed poll shape for paginated listings.
type ListItem struct {
	ID          domain.PollID `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Creator     UserRef       `json:"creator"`
	OptionCount int           `json:"optionCount"`
	VotesCount  int           `json:"votesCount"`
	IsLocked    bool          `json:"isLocked"`
	ExpiresAt   *time.Time    `json:"expiresAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// ListResult is one page of polls plus the total count.
type ListResult struct {
	Polls []ListItem `json:"polls"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}

// NewPollView assembles the detail view from a poll and resolved names.
func NewPollView(p *Poll, names map[domain.UserID]string) *PollView {
	view := &PollView{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Creator:     newUserRef(p.CreatorID, names),
		Options:     make([]OptionView, len(p.Options)),
		IsLocked:    p.IsLocked,
		ExpiresAt:   p.ExpiresAt,
		TotalVotes:  p.TotalVotes(),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for i, opt := range p.Options {
		voters := make([]UserRef, len(opt.Voters))
		for j, voter := range opt.Voters {
			voters[j] = newUserRef(voter, names)
		}
		view.Options[i] = OptionView{
			ID:     opt.ID,
			Text:   opt.Text,
			Votes:  len(opt.Voters),
			Voters: voters,
		}
	}
	return view
}

// NewListItem assembles the listing shape from a poll and resolved names.
func NewListItem(p *Poll, names map[domain.UserID]string) ListItem {
	return ListItem{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Creator:     newUserRef(p.CreatorID, names),
		OptionCount: len(p.Options),
		VotesCount:  p.TotalVotes(),
		IsLocked:    p.IsLocked,
		ExpiresAt:   p.ExpiresAt,
		CreatedAt:   p.CreatedAt,
	}
}

func newUserRef(id domain.UserID, names map[domain.UserID]string) UserRef {
	return UserRef{ID: id, DisplayName: names[id]}
}
