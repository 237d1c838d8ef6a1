package polls

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/backend/internal/models"
)

// Repository is the PostgreSQL Store implementation.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// CreatePoll inserts the poll, its options (ordered), and its invites in one transaction.
func (r *Repository) CreatePoll(ctx context.Context, p *models.Poll) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO polls (id, title, description, creator_id, group_id, visibility, status, voting_deadline)
		VALUES (gen_random_uuid(), $1, NULLIF($2,''), $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, q, p.Title, p.Description, p.CreatorID, p.GroupID, string(p.Visibility), string(p.Status), p.VotingDeadline).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}

	const optQ = `INSERT INTO poll_options (id, poll_id, label, description, position, starts_at, ends_at)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3,''), $4, $5, $6)
		RETURNING id`
	for i := range p.Options {
		opt := &p.Options[i]
		opt.PollID = p.ID
		if err := tx.QueryRow(ctx, optQ, p.ID, opt.Label, opt.Description, opt.Position, opt.StartsAt, opt.EndsAt).Scan(&opt.ID); err != nil {
			return err
		}
	}

	const invQ = `INSERT INTO poll_invites (id, poll_id, user_id)
		VALUES (gen_random_uuid(), $1, $2)
		RETURNING id, created_at`
	for i := range p.Invites {
		inv := &p.Invites[i]
		inv.PollID = p.ID
		if err := tx.QueryRow(ctx, invQ, p.ID, inv.UserID).Scan(&inv.ID, &inv.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetPoll returns a poll hydrated with options, votes, and invites.
func (r *Repository) GetPoll(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	const q = `SELECT id, title, COALESCE(description,''), creator_id, group_id, visibility, status,
		voting_deadline, finalized_option_id, closed_at, created_at, updated_at
		FROM polls WHERE id = $1`
	var p models.Poll
	var visibility, status string
	err := r.pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.Title, &p.Description, &p.CreatorID, &p.GroupID,
		&visibility, &status, &p.VotingDeadline, &p.FinalizedOptionID, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Visibility = models.Visibility(visibility)
	p.Status = models.PollStatus(status)

	if p.Options, err = r.listOptions(ctx, id); err != nil {
		return nil, err
	}
	if p.Votes, err = r.listVotes(ctx, id); err != nil {
		return nil, err
	}
	if p.Invites, err = r.listInvites(ctx, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePoll applies a patch; nil fields keep their current value.
func (r *Repository) UpdatePoll(ctx context.Context, id uuid.UUID, patch PollPatch) error {
	const q = `UPDATE polls SET
		title = COALESCE($2, title),
		description = COALESCE($3, description),
		voting_deadline = COALESCE($4, voting_deadline),
		updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, patch.Title, patch.Description, patch.VotingDeadline)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPollsForUser returns polls the user created or is invited to, newest first (not hydrated).
func (r *Repository) ListPollsForUser(ctx context.Context, userID uuid.UUID) ([]models.Poll, error) {
	const q = `SELECT id, title, COALESCE(description,''), creator_id, group_id, visibility, status,
		voting_deadline, finalized_option_id, closed_at, created_at, updated_at
		FROM polls
		WHERE creator_id = $1 OR id IN (SELECT poll_id FROM poll_invites WHERE user_id = $1)
		ORDER BY created_at DESC`
	return r.listPolls(ctx, q, userID)
}

// ListPollsByGroup returns a group's polls, newest first (not hydrated).
func (r *Repository) ListPollsByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Poll, error) {
	const q = `SELECT id, title, COALESCE(description,''), creator_id, group_id, visibility, status,
		voting_deadline, finalized_option_id, closed_at, created_at, updated_at
		FROM polls WHERE group_id = $1 ORDER BY created_at DESC`
	return r.listPolls(ctx, q, groupID)
}

// Finalize marks the poll finalized and records attendance in one transaction.
// The status is re-checked in the UPDATE predicate so a concurrent finalize
// (or cancel) loses cleanly with ErrInvalidState and writes nothing. The
// attendee set is read from the votes table after the status flip, inside the
// same transaction, so it reflects every vote that committed before the poll
// closed.
func (r *Repository) Finalize(ctx context.Context, pollID, optionID uuid.UUID, closedAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `UPDATE polls SET status = 'finalized', finalized_option_id = $2, closed_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'voting'`
	tag, err := tx.Exec(ctx, q, pollID, optionID, closedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}

	const creatorQ = `UPDATE users SET events_created = events_created + 1, updated_at = NOW()
		WHERE id = (SELECT creator_id FROM polls WHERE id = $1)`
	if _, err := tx.Exec(ctx, creatorQ, pollID); err != nil {
		return err
	}

	const voterQ = `SELECT voter_id FROM votes
		WHERE poll_id = $1 AND $2 = ANY(available_option_ids) ORDER BY created_at`
	rows, err := tx.Query(ctx, voterQ, pollID, optionID)
	if err != nil {
		return err
	}
	var attendees []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		attendees = append(attendees, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	const attQ = `INSERT INTO attendance (id, poll_id, option_id, user_id)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT (poll_id, user_id) DO NOTHING`
	const userQ = `UPDATE users SET events_attended = events_attended + 1, last_attended_at = $2, updated_at = NOW()
		WHERE id = $1`
	for _, userID := range attendees {
		if _, err := tx.Exec(ctx, attQ, pollID, optionID, userID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, userQ, userID, closedAt); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Cancel soft-deletes the poll unless it is finalized or already cancelled.
func (r *Repository) Cancel(ctx context.Context, pollID uuid.UUID, closedAt time.Time) error {
	const q = `UPDATE polls SET status = 'cancelled', closed_at = $2, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('finalized', 'cancelled')`
	tag, err := r.pool.Exec(ctx, q, pollID, closedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// Reopen moves a closed poll back to voting with a fresh deadline.
func (r *Repository) Reopen(ctx context.Context, pollID uuid.UUID, deadline time.Time) error {
	const q = `UPDATE polls SET status = 'voting', finalized_option_id = NULL, closed_at = NULL,
		voting_deadline = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('finalized', 'cancelled', 'expired')`
	tag, err := r.pool.Exec(ctx, q, pollID, deadline)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// ExpireDue moves voting polls past their deadline to expired.
func (r *Repository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	const q = `UPDATE polls SET status = 'expired', closed_at = $1, updated_at = NOW()
		WHERE status = 'voting' AND voting_deadline IS NOT NULL AND voting_deadline < $1`
	tag, err := r.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpsertVote inserts or replaces the (poll, voter) vote row and marks the
// matching invite voted, atomically. The unique key serializes concurrent
// submissions from the same voter. The poll row is locked FOR SHARE and its
// status re-checked first: a finalize in flight holds the row lock, so a vote
// racing it either lands before the transition (and is picked up by the
// finalize attendee scan) or sees the closed status and fails with
// ErrInvalidState.
func (r *Repository) UpsertVote(ctx context.Context, v *models.Vote) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM polls WHERE id = $1 FOR SHARE`, v.PollID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if models.PollStatus(status) != models.StatusVoting {
		return ErrInvalidState
	}

	const q = `INSERT INTO votes (id, poll_id, voter_id, available_option_ids, maybe_option_ids, notes)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, NULLIF($5,''))
		ON CONFLICT (poll_id, voter_id) DO UPDATE SET
			available_option_ids = EXCLUDED.available_option_ids,
			maybe_option_ids = EXCLUDED.maybe_option_ids,
			notes = EXCLUDED.notes,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, q, v.PollID, v.VoterID, v.AvailableOptionIDs, v.MaybeOptionIDs, v.Notes).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return err
	}

	const invQ = `UPDATE poll_invites SET has_voted = TRUE WHERE poll_id = $1 AND user_id = $2`
	if _, err := tx.Exec(ctx, invQ, v.PollID, v.VoterID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DeleteVote removes the voter's vote row if present and clears the invite flag.
func (r *Repository) DeleteVote(ctx context.Context, pollID, voterID uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM votes WHERE poll_id = $1 AND voter_id = $2`, pollID, voterID)
	if err != nil {
		return false, err
	}
	deleted := tag.RowsAffected() > 0
	if deleted {
		if _, err := tx.Exec(ctx, `UPDATE poll_invites SET has_voted = FALSE WHERE poll_id = $1 AND user_id = $2`, pollID, voterID); err != nil {
			return false, err
		}
	}
	return deleted, tx.Commit(ctx)
}

// GetVote returns the voter's vote or ErrNotFound.
func (r *Repository) GetVote(ctx context.Context, pollID, voterID uuid.UUID) (*models.Vote, error) {
	const q = `SELECT id, poll_id, voter_id, available_option_ids, maybe_option_ids, COALESCE(notes,''), created_at, updated_at
		FROM votes WHERE poll_id = $1 AND voter_id = $2`
	var v models.Vote
	err := r.pool.QueryRow(ctx, q, pollID, voterID).
		Scan(&v.ID, &v.PollID, &v.VoterID, &v.AvailableOptionIDs, &v.MaybeOptionIDs, &v.Notes, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// ListUnvotedInvites returns invites without a vote yet.
func (r *Repository) ListUnvotedInvites(ctx context.Context, pollID uuid.UUID) ([]models.PollInvite, error) {
	const q = `SELECT id, poll_id, user_id, has_voted, reminders_sent, last_reminded_at, created_at
		FROM poll_invites WHERE poll_id = $1 AND has_voted = FALSE ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.PollInvite
	for rows.Next() {
		var inv models.PollInvite
		if err := rows.Scan(&inv.ID, &inv.PollID, &inv.UserID, &inv.HasVoted, &inv.RemindersSent, &inv.LastRemindedAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// BumpReminder increments the invite's reminder counter.
func (r *Repository) BumpReminder(ctx context.Context, pollID, userID uuid.UUID, at time.Time) error {
	const q = `UPDATE poll_invites SET reminders_sent = reminders_sent + 1, last_reminded_at = $3
		WHERE poll_id = $1 AND user_id = $2`
	_, err := r.pool.Exec(ctx, q, pollID, userID, at)
	return err
}

// IsGroupMember reports group membership.
func (r *Repository) IsGroupMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`
	var ok bool
	err := r.pool.QueryRow(ctx, q, groupID, userID).Scan(&ok)
	return ok, err
}

// CountGroupMembers returns the group's member count.
func (r *Repository) CountGroupMembers(ctx context.Context, groupID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM group_members WHERE group_id = $1`, groupID).Scan(&n)
	return n, err
}

func (r *Repository) listOptions(ctx context.Context, pollID uuid.UUID) ([]models.PollOption, error) {
	const q = `SELECT id, poll_id, label, COALESCE(description,''), position, starts_at, ends_at
		FROM poll_options WHERE poll_id = $1 ORDER BY position`
	rows, err := r.pool.Query(ctx, q, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.PollOption
	for rows.Next() {
		var o models.PollOption
		if err := rows.Scan(&o.ID, &o.PollID, &o.Label, &o.Description, &o.Position, &o.StartsAt, &o.EndsAt); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

func (r *Repository) listVotes(ctx context.Context, pollID uuid.UUID) ([]models.Vote, error) {
	const q = `SELECT id, poll_id, voter_id, available_option_ids, maybe_option_ids, COALESCE(notes,''), created_at, updated_at
		FROM votes WHERE poll_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Vote
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.PollID, &v.VoterID, &v.AvailableOptionIDs, &v.MaybeOptionIDs, &v.Notes, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

func (r *Repository) listInvites(ctx context.Context, pollID uuid.UUID) ([]models.PollInvite, error) {
	const q = `SELECT id, poll_id, user_id, has_voted, reminders_sent, last_reminded_at, created_at
		FROM poll_invites WHERE poll_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.PollInvite
	for rows.Next() {
		var inv models.PollInvite
		if err := rows.Scan(&inv.ID, &inv.PollID, &inv.UserID, &inv.HasVoted, &inv.RemindersSent, &inv.LastRemindedAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

func (r *Repository) listPolls(ctx context.Context, q string, arg interface{}) ([]models.Poll, error) {
	rows, err := r.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Poll
	for rows.Next() {
		var p models.Poll
		var visibility, status string
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.CreatorID, &p.GroupID, &visibility, &status,
			&p.VotingDeadline, &p.FinalizedOptionID, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Visibility = models.Visibility(visibility)
		p.Status = models.PollStatus(status)
		list = append(list, p)
	}
	return list, rows.Err()
}
