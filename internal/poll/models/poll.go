// Package models defines the Poll aggregate and its invariants.
//
// Options live only inside their owning poll: ordered, addressed by id, with
// no independent lifecycle. Vote counts are derived from the voter sets and
// recomputed on every mutation; they are never trusted as input.
package models

import (
	"strings"
	"time"

	"pollboard/pkg/domain"
)

// MinOptions is the smallest option count a poll may hold.
const MinOptions = 2

// Option is one selectable choice within a poll.
type Option struct {
	ID     domain.OptionID
	Text   string
	Voters []domain.UserID
	Votes  int
}

// Poll is a question with a fixed, named set of options, owned by a creator.
type Poll struct {
	ID          domain.PollID
	Title       string
	Description string
	CreatorID   domain.UserID
	Options     []Option
	IsLocked    bool
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewPoll builds a poll from validated creation input. Option ids are
// assigned here; voter sets start empty.
func NewPoll(creator domain.UserID, title, description string, optionTexts []string, expiresAt *time.Time, now time.Time) *Poll {
	options := make([]Option, len(optionTexts))
	for i, text := range optionTexts {
		options[i] = Option{ID: domain.NewOptionID(), Text: strings.TrimSpace(text)}
	}
	return &Poll{
		ID:          domain.NewPollID(),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		CreatorID:   creator,
		Options:     options,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Option returns the option with the given id, if present.
func (p *Poll) Option(id domain.OptionID) (*Option, bool) {
	for i := range p.Options {
		if p.Options[i].ID == id {
			return &p.Options[i], true
		}
	}
	return nil, false
}

// VotedOption returns the id of the option the user has voted for, if any.
// The one-vote-per-poll rule means there is at most one.
func (p *Poll) VotedOption(userID domain.UserID) (domain.OptionID, bool) {
	for i := range p.Options {
		for _, voter := range p.Options[i].Voters {
			if voter == userID {
				return p.Options[i].ID, true
			}
		}
	}
	return domain.OptionID{}, false
}

// HasExpired reports whether the expiry gate is closed at the given instant.
func (p *Poll) HasExpired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

// Recount recomputes every option's vote counter from its voter set,
// deduplicating voters within an option. Call after any mutation that
// touches voters.
func (p *Poll) Recount() {
	for i := range p.Options {
		seen := make(map[domain.UserID]struct{}, len(p.Options[i].Voters))
		deduped := p.Options[i].Voters[:0]
		for _, voter := range p.Options[i].Voters {
			if _, dup := seen[voter]; dup {
				continue
			}
			seen[voter] = struct{}{}
			deduped = append(deduped, voter)
		}
		p.Options[i].Voters = deduped
		p.Options[i].Votes = len(deduped)
	}
}

// TotalVotes sums the voter sets across all options.
func (p *Poll) TotalVotes() int {
	total := 0
	for i := range p.Options {
		total += len(p.Options[i].Voters)
	}
	return total
}

// VoterIDs returns every distinct identity referenced by the poll, creator
// included, for display-name resolution.
func (p *Poll) VoterIDs() []domain.UserID {
	seen := map[domain.UserID]struct{}{p.CreatorID: {}}
	ids := []domain.UserID{p.CreatorID}
	for i := range p.Options {
		for _, voter := range p.Options[i].Voters {
			if _, ok := seen[voter]; ok {
				continue
			}
			seen[voter] = struct{}{}
			ids = append(ids, voter)
		}
	}
	return ids
}

// Clone returns a deep copy so store snapshots never alias caller state.
func (p *Poll) Clone() *Poll {
	clone := *p
	if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		clone.ExpiresAt = &t
	}
	clone.Options = make([]Option, len(p.Options))
	for i, opt := range p.Options {
		copied := opt
		copied.Voters = append([]domain.UserID(nil), opt.Voters...)
		clone.Options[i] = copied
	}
	return &clone
}

// ValidateOptionTexts enforces the creation rules: at least MinOptions
// options, each with non-empty text.
func ValidateOptionTexts(texts []string) bool {
	if len(texts) < MinOptions {
		return false
	}
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return false
		}
	}
	return true
}
