package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pollboard/internal/poll/models"
	"pollboard/pkg/domain"
	"pollboard/pkg/requestcontext"
)

// Postgres persists polls across three tables. Votes live in their own
// table with a (poll_id, voter_id) primary key, so one-vote-per-poll is a
// database constraint rather than an application-level read-modify-write:
// concurrent duplicate votes lose the INSERT race instead of clobbering
// each other.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS polls (
	id          UUID PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	creator_id  UUID NOT NULL,
	is_locked   BOOLEAN NOT NULL DEFAULT FALSE,
	expires_at  TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS poll_options (
	id       UUID PRIMARY KEY,
	poll_id  UUID NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
	text     TEXT NOT NULL,
	position INT NOT NULL
);

CREATE TABLE IF NOT EXISTS poll_votes (
	poll_id    UUID NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
	option_id  UUID NOT NULL REFERENCES poll_options(id) ON DELETE CASCADE,
	voter_id   UUID NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (poll_id, voter_id)
);

CREATE INDEX IF NOT EXISTS idx_poll_options_poll ON poll_options (poll_id, position);
CREATE INDEX IF NOT EXISTS idx_poll_votes_option ON poll_votes (option_id);
`

// Migrate applies the schema. Idempotent.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate poll schema: %w", err)
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, poll *models.Poll) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create poll: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO polls (id, title, description, creator_id, is_locked, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		poll.ID.String(), poll.Title, poll.Description, poll.CreatorID.String(),
		poll.IsLocked, poll.ExpiresAt, poll.CreatedAt, poll.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert poll: %w", err)
	}
	for i, opt := range poll.Options {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO poll_options (id, poll_id, text, position)
			VALUES ($1, $2, $3, $4)`,
			opt.ID.String(), poll.ID.String(), opt.Text, i,
		)
		if err != nil {
			return fmt.Errorf("insert poll option: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create poll: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id domain.PollID) (*models.Poll, error) {
	poll, err := s.getPollRow(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.loadOptions(ctx, []*models.Poll{poll}); err != nil {
		return nil, err
	}
	return poll, nil
}

func (s *Postgres) getPollRow(ctx context.Context, id domain.PollID) (*models.Poll, error) {
	var (
		poll       models.Poll
		rawID      string
		rawCreator string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, creator_id, is_locked, expires_at, created_at, updated_at
		FROM polls WHERE id = $1`, id.String(),
	).Scan(&rawID, &poll.Title, &poll.Description, &rawCreator, &poll.IsLocked, &poll.ExpiresAt, &poll.CreatedAt, &poll.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select poll: %w", err)
	}
	if poll.ID, err = parsePollID(rawID); err != nil {
		return nil, err
	}
	if poll.CreatorID, err = parseUserID(rawCreator); err != nil {
		return nil, err
	}
	return &poll, nil
}

// loadOptions fills the option and voter sets for the given polls in two
// queries regardless of page size.
func (s *Postgres) loadOptions(ctx context.Context, polls []*models.Poll) error {
	if len(polls) == 0 {
		return nil
	}
	byID := make(map[domain.PollID]*models.Poll, len(polls))
	ids := make([]string, len(polls))
	for i, p := range polls {
		byID[p.ID] = p
		ids[i] = p.ID.String()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, poll_id, text
		FROM poll_options WHERE poll_id = ANY($1)
		ORDER BY poll_id, position`, pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("select poll options: %w", err)
	}
	defer rows.Close()
	optionOwner := make(map[domain.OptionID]*models.Poll)
	for rows.Next() {
		var rawOption, rawPoll, text string
		if err := rows.Scan(&rawOption, &rawPoll, &text); err != nil {
			return fmt.Errorf("scan poll option: %w", err)
		}
		optionID, err := parseOptionID(rawOption)
		if err != nil {
			return err
		}
		pollID, err := parsePollID(rawPoll)
		if err != nil {
			return err
		}
		poll := byID[pollID]
		poll.Options = append(poll.Options, models.Option{ID: optionID, Text: text})
		optionOwner[optionID] = poll
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate poll options: %w", err)
	}

	voteRows, err := s.db.QueryContext(ctx, `
		SELECT option_id, voter_id
		FROM poll_votes WHERE poll_id = ANY($1)
		ORDER BY created_at`, pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("select poll votes: %w", err)
	}
	defer voteRows.Close()
	for voteRows.Next() {
		var rawOption, rawVoter string
		if err := voteRows.Scan(&rawOption, &rawVoter); err != nil {
			return fmt.Errorf("scan poll vote: %w", err)
		}
		optionID, err := parseOptionID(rawOption)
		if err != nil {
			return err
		}
		voterID, err := parseUserID(rawVoter)
		if err != nil {
			return err
		}
		poll, ok := optionOwner[optionID]
		if !ok {
			continue
		}
		if option, found := poll.Option(optionID); found {
			option.Voters = append(option.Voters, voterID)
		}
	}
	if err := voteRows.Err(); err != nil {
		return fmt.Errorf("iterate poll votes: %w", err)
	}

	for _, poll := range polls {
		poll.Recount()
	}
	return nil
}

func (s *Postgres) Replace(ctx context.Context, poll *models.Poll) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace poll: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE polls SET title = $2, description = $3, is_locked = $4, expires_at = $5, updated_at = $6
		WHERE id = $1`,
		poll.ID.String(), poll.Title, poll.Description, poll.IsLocked, poll.ExpiresAt, requestcontext.Now(ctx),
	)
	if err != nil {
		return fmt.Errorf("update poll: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update poll rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	kept := make([]string, len(poll.Options))
	for i, opt := range poll.Options {
		kept[i] = opt.ID.String()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO poll_options (id, poll_id, text, position)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, position = EXCLUDED.position`,
			opt.ID.String(), poll.ID.String(), opt.Text, i,
		)
		if err != nil {
			return fmt.Errorf("upsert poll option: %w", err)
		}
	}
	// Dropped options take their votes with them via ON DELETE CASCADE.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM poll_options WHERE poll_id = $1 AND NOT (id = ANY($2))`,
		poll.ID.String(), pq.Array(kept),
	)
	if err != nil {
		return fmt.Errorf("prune poll options: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace poll: %w", err)
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, id domain.PollID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM polls WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete poll: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete poll rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, offset, limit int) ([]*models.Poll, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM polls`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count polls: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, creator_id, is_locked, expires_at, created_at, updated_at
		FROM polls
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2`, offset, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select polls: %w", err)
	}
	defer rows.Close()

	polls := make([]*models.Poll, 0, limit)
	for rows.Next() {
		var (
			poll       models.Poll
			rawID      string
			rawCreator string
		)
		err := rows.Scan(&rawID, &poll.Title, &poll.Description, &rawCreator, &poll.IsLocked, &poll.ExpiresAt, &poll.CreatedAt, &poll.UpdatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scan poll: %w", err)
		}
		if poll.ID, err = parsePollID(rawID); err != nil {
			return nil, 0, err
		}
		if poll.CreatorID, err = parseUserID(rawCreator); err != nil {
			return nil, 0, err
		}
		polls = append(polls, &poll)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate polls: %w", err)
	}

	if err := s.loadOptions(ctx, polls); err != nil {
		return nil, 0, err
	}
	return polls, total, nil
}

func (s *Postgres) AddVote(ctx context.Context, pollID domain.PollID, optionID domain.OptionID, voterID domain.UserID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add vote: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var pollExists, alreadyVoted, optionExists bool
	err = tx.QueryRowContext(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM polls WHERE id = $1),
			EXISTS (SELECT 1 FROM poll_votes WHERE poll_id = $1 AND voter_id = $3),
			EXISTS (SELECT 1 FROM poll_options WHERE id = $2 AND poll_id = $1)`,
		pollID.String(), optionID.String(), voterID.String(),
	).Scan(&pollExists, &alreadyVoted, &optionExists)
	if err != nil {
		return fmt.Errorf("check vote preconditions: %w", err)
	}
	switch {
	case !pollExists:
		return ErrNotFound
	case alreadyVoted:
		return ErrAlreadyVoted
	case !optionExists:
		return ErrOptionNotFound
	}

	// The primary key on (poll_id, voter_id) decides concurrent duplicates;
	// the precondition read above only fixes the error ordering.
	res, err := tx.ExecContext(ctx, `
		INSERT INTO poll_votes (poll_id, option_id, voter_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (poll_id, voter_id) DO NOTHING`,
		pollID.String(), optionID.String(), voterID.String(), requestcontext.Now(ctx),
	)
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert vote rows: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyVoted
	}

	if err := s.touch(ctx, tx, pollID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add vote: %w", err)
	}
	return nil
}

func (s *Postgres) RemoveVote(ctx context.Context, pollID domain.PollID, optionID domain.OptionID, voterID domain.UserID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove vote: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM poll_votes WHERE poll_id = $1 AND option_id = $2 AND voter_id = $3`,
		pollID.String(), optionID.String(), voterID.String(),
	)
	if err != nil {
		return fmt.Errorf("delete vote: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete vote rows: %w", err)
	}
	if affected == 0 {
		var optionExists bool
		err = tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM poll_options WHERE id = $2 AND poll_id = $1)`,
			pollID.String(), optionID.String(),
		).Scan(&optionExists)
		if err != nil {
			return fmt.Errorf("check option: %w", err)
		}
		if !optionExists {
			return ErrOptionNotFound
		}
		return ErrVoteNotFound
	}

	if err := s.touch(ctx, tx, pollID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove vote: %w", err)
	}
	return nil
}

func (s *Postgres) touch(ctx context.Context, tx *sql.Tx, pollID domain.PollID) error {
	if _, err := tx.ExecContext(ctx, `UPDATE polls SET updated_at = $2 WHERE id = $1`, pollID.String(), requestcontext.Now(ctx)); err != nil {
		return fmt.Errorf("touch poll: %w", err)
	}
	return nil
}

func parsePollID(raw string) (domain.PollID, error) {
	u, err := uuid.Parse(raw)
	if err != nil {
		return domain.PollID{}, fmt.Errorf("parse stored poll id: %w", err)
	}
	return domain.PollID(u), nil
}

func parseOptionID(raw string) (domain.OptionID, error) {
	u, err := uuid.Parse(raw)
	if err != nil {
		return domain.OptionID{}, fmt.Errorf("parse stored option id: %w", err)
	}
	return domain.OptionID(u), nil
}

func parseUserID(raw string) (domain.UserID, error) {
	u, err := uuid.Parse(raw)
	if err != nil {
		return domain.UserID{}, fmt.Errorf("parse stored voter id: %w", err)
	}
	return domain.UserID(u), nil
}
