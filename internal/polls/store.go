package polls

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/backend/internal/models"
)

// PollPatch carries creator-editable poll fields. Nil means unchanged.
type PollPatch struct {
	Title          *string
	Description    *string
	VotingDeadline *time.Time
}

// Store is the persistence handle the engine runs against. The production
// implementation is Repository (PostgreSQL); tests use an in-memory fake.
//
// Lifecycle mutators (Finalize, Cancel, Reopen) re-check the status guard
// inside their own transaction and return ErrInvalidState when it no longer
// holds, so concurrent transitions on the same poll serialize: only the first
// caller succeeds and a loser never partially applies.
type Store interface {
	// CreatePoll persists the poll, its ordered options, and its invites in one
	// atomic write, assigning ids and timestamps on p.
	CreatePoll(ctx context.Context, p *models.Poll) error
	// GetPoll returns the poll hydrated with options, votes, and invites.
	GetPoll(ctx context.Context, id uuid.UUID) (*models.Poll, error)
	UpdatePoll(ctx context.Context, id uuid.UUID, patch PollPatch) error
	ListPollsForUser(ctx context.Context, userID uuid.UUID) ([]models.Poll, error)
	ListPollsByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Poll, error)

	// Finalize atomically marks the poll finalized, bumps the creator's
	// events_created counter, and records attendance (insert + counters) for
	// every voter whose available set contains optionID. The attendee set is
	// derived from the vote ledger inside the same transaction, so votes
	// committed up to the transition are never missed. All-or-nothing.
	Finalize(ctx context.Context, pollID, optionID uuid.UUID, closedAt time.Time) error
	Cancel(ctx context.Context, pollID uuid.UUID, closedAt time.Time) error
	Reopen(ctx context.Context, pollID uuid.UUID, deadline time.Time) error
	// ExpireDue moves voting polls whose deadline has passed to expired and
	// returns how many were moved.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)

	// UpsertVote inserts or replaces the voter's single vote row, keyed by
	// (poll, voter), and flags the matching invite as voted in the same write.
	// The poll's voting status is re-checked inside the transaction; a vote
	// racing a finalize loses with ErrInvalidState and writes nothing.
	UpsertVote(ctx context.Context, v *models.Vote) error
	DeleteVote(ctx context.Context, pollID, voterID uuid.UUID) (bool, error)
	GetVote(ctx context.Context, pollID, voterID uuid.UUID) (*models.Vote, error)

	ListUnvotedInvites(ctx context.Context, pollID uuid.UUID) ([]models.PollInvite, error)
	BumpReminder(ctx context.Context, pollID, userID uuid.UUID, at time.Time) error

	IsGroupMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	CountGroupMembers(ctx context.Context, groupID uuid.UUID) (int, error)
}

// Notifier receives fire-and-forget lifecycle events after a transition has
// committed. Implementations must never block or fail the calling operation.
type Notifier interface {
	PollEvent(pollID uuid.UUID, event string, payload interface{})
}

// NopNotifier discards all events.
type NopNotifier struct{}

// PollEvent implements Notifier.
func (NopNotifier) PollEvent(uuid.UUID, string, interface{}) {}
