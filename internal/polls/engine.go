package polls

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherly/backend/internal/models"
)

const (
	// MaxOptions caps the number of options a poll can be created with.
	MaxOptions = 30
	// Reopen window bounds and default, in days.
	ReopenDefaultDays = 7
	ReopenMinDays     = 1
	ReopenMaxDays     = 60
)

// Engine owns the poll lifecycle: entity invariants, state transitions, the
// vote ledger, and result tallies. It is transport-agnostic; every operation
// either fully succeeds or returns one typed error with zero mutation.
type Engine struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates a poll engine over the given store. notifier may be nil.
func NewEngine(store Store, notifier Notifier, logger *zap.Logger) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, notifier: notifier, logger: logger, now: time.Now}
}

// OptionInput describes one option at poll creation.
type OptionInput struct {
	Label       string
	Description string
	StartsAt    *time.Time
	EndsAt      *time.Time
}

// CreateInput describes a new poll.
type CreateInput struct {
	Title          string
	Description    string
	GroupID        *uuid.UUID
	Visibility     models.Visibility
	VotingDeadline *time.Time
	Options        []OptionInput
	InviteeIDs     []uuid.UUID
}

// VoteInput is one voter's availability selection.
type VoteInput struct {
	AvailableOptionIDs []uuid.UUID
	MaybeOptionIDs     []uuid.UUID
	Notes              string
}

// Create validates and persists a new poll. Polls start in voting status with
// 1 to MaxOptions ordered options; the invite list is written atomically with
// the poll.
func (e *Engine) Create(ctx context.Context, creatorID uuid.UUID, in CreateInput) (*models.Poll, error) {
	if in.Title == "" {
		return nil, validationf("title is required")
	}
	if len(in.Options) == 0 {
		return nil, validationf("poll needs at least one option")
	}
	if len(in.Options) > MaxOptions {
		return nil, validationf("poll cannot have more than %d options", MaxOptions)
	}
	visibility := in.Visibility
	if visibility == "" {
		visibility = models.VisibilityInviteOnly
	}
	switch visibility {
	case models.VisibilityInviteOnly:
	case models.VisibilityOpenToGroup:
		if in.GroupID == nil {
			return nil, validationf("open_to_group polls require a group")
		}
	default:
		return nil, validationf("unknown visibility %q", visibility)
	}

	p := &models.Poll{
		Title:          in.Title,
		Description:    in.Description,
		CreatorID:      creatorID,
		GroupID:        in.GroupID,
		Visibility:     visibility,
		Status:         models.StatusVoting,
		VotingDeadline: in.VotingDeadline,
	}
	for i, opt := range in.Options {
		if opt.Label == "" {
			return nil, validationf("option %d has no label", i+1)
		}
		p.Options = append(p.Options, models.PollOption{
			Label:       opt.Label,
			Description: opt.Description,
			Position:    i,
			StartsAt:    opt.StartsAt,
			EndsAt:      opt.EndsAt,
		})
	}
	seen := make(map[uuid.UUID]struct{}, len(in.InviteeIDs))
	for _, id := range in.InviteeIDs {
		if id == creatorID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		p.Invites = append(p.Invites, models.PollInvite{UserID: id})
	}

	if err := e.store.CreatePoll(ctx, p); err != nil {
		return nil, err
	}
	e.notifier.PollEvent(p.ID, "poll_created", p)
	return p, nil
}

// Get returns the hydrated poll if viewerID may see it.
func (e *Engine) Get(ctx context.Context, pollID, viewerID uuid.UUID) (*models.Poll, error) {
	p, err := e.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	member, err := e.groupMember(ctx, p, viewerID)
	if err != nil {
		return nil, err
	}
	if !CanView(p, viewerID, member) {
		return nil, ErrForbidden
	}
	return p, nil
}

// Update applies a creator-only patch. Finalized and cancelled polls are immutable.
func (e *Engine) Update(ctx context.Context, pollID, userID uuid.UUID, patch PollPatch) (*models.Poll, error) {
	p, err := e.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if p.CreatorID != userID {
		return nil, ErrForbidden
	}
	if p.Status == models.StatusFinalized || p.Status == models.StatusCancelled {
		return nil, ErrInvalidState
	}
	if patch.Title != nil && *patch.Title == "" {
		return nil, validationf("title cannot be empty")
	}
	if err := e.store.UpdatePoll(ctx, pollID, patch); err != nil {
		return nil, err
	}
	updated, err := e.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	e.notifier.PollEvent(pollID, "poll_updated", updated)
	return updated, nil
}

// Finalize locks in the winning option and closes voting. Within one atomic
// store transaction the poll becomes finalized, the creator's events_created
// counter is bumped, and every voter available for the chosen option gets an
// attendance record plus counter updates. Concurrent finalize calls serialize
// in the store; only the first succeeds.
func (e *Engine) Finalize(ctx context.Context, pollID, userID, optionID uuid.UUID) (*models.Poll, error) {
	p, err := e.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if p.CreatorID != userID {
		return nil, ErrForbidden
	}
	if p.Status != models.StatusVoting {
		return nil, ErrInvalidState
	}
	if !p.HasOption(optionID) {
		return nil, validationf("option does not belong to this poll")
	}

	if err := e.store.Finalize(ctx, pollID, optionID, e.now()); err != nil {
		return nil, err
	}

	// Re-read for the committed state; the attendee set comes from the ledger
	// as it stood when the transition landed, not the snapshot checked above.
	updated, err := e.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	e.notifier.PollEvent(pollID, "poll_finalized", map[string]interface{}{
		"poll_id":   pollID,
		"option_id": optionID,
		"attendees": Attendees(updated, optionID),
	})
	return updated, nil
}

// Cancel soft-deletes the poll. Allowed from any state except finalized (and
// not when already cancelled). There is no hard delete.
func (e *Engine) Cancel(ctx context.Context, pollID, userID uuid.UUID) (*models.Poll, error) {
	p, err := e.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if p.CreatorID != userID {
		return nil, ErrForbidden
	}
	if p.Status == models.StatusFinalized || p.Status == models.StatusCancelled {
		return nil, ErrInvalidState
	}
	if err := e.store.Cancel(ctx, pollID, e.now()); err != nil {
		return nil, err
	}
	e.notifier.PollEvent(pollID, "poll_cancelled", map[string]interface{}{"poll_id": pollID})
	return e.store.GetPoll(ctx, pollID)
}

// Reopen moves a closed poll back to voting with a fresh deadline of
// now + days (default 7, bounds 1-60). The finalized option and closed-at
// marker are cleared.
func (e *Engine) Reopen(ctx context.Context, pollID, userID uuid.UUID, days int) (*models.Poll, error) {
	if days == 0 {
		days = ReopenDefaultDays
	}
	if days < ReopenMinDays || days > ReopenMaxDays {
		return nil, validationf("reopen window must be between %d and %d days", ReopenMinDays, ReopenMaxDays)
	}
	p, err := e.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if p.CreatorID != userID {
		return nil, ErrForbidden
	}
	if !p.Status.Closed() {
		return nil, ErrInvalidState
	}
	deadline := e.now().AddDate(0, 0, days)
	if err := e.store.Reopen(ctx, pollID, deadline); err != nil {
		return nil, err
	}
	e.notifier.PollEvent(pollID, "poll_reopened", map[string]interface{}{
		"poll_id":         pollID,
		"voting_deadline": deadline,
	})
	return e.store.GetPoll(ctx, pollID)
}

// SubmitVote upserts the voter's availability, keyed by (poll, voter): a
// repeat submission replaces the prior vote. Option ids are validated against
// the poll's option set; unknown ids are rejected.
func (e *Engine) SubmitVote(ctx context.Context, pollID, voterID uuid.UUID, in VoteInput) (*models.Vote, error) {
	p, err := e.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	member, err := e.groupMember(ctx, p, voterID)
	if err != nil {
		return nil, err
	}
	if !CanVote(p, voterID, member) {
		return nil, ErrForbidden
	}
	if p.Status != models.StatusVoting {
		return nil, ErrInvalidState
	}
	if p.VotingDeadline != nil && e.now().After(*p.VotingDeadline) {
		return nil, ErrInvalidState
	}
	valid := p.OptionIDs()
	for _, id := range append(append([]uuid.UUID{}, in.AvailableOptionIDs...), in.MaybeOptionIDs...) {
		if _, ok := valid[id]; !ok {
			return nil, validationf("option %s does not belong to this poll", id)
		}
	}

	v := &models.Vote{
		PollID:             pollID,
		VoterID:            voterID,
		AvailableOptionIDs: dedupe(in.AvailableOptionIDs),
		MaybeOptionIDs:     dedupe(in.MaybeOptionIDs),
		Notes:              in.Notes,
	}
	if err := e.store.UpsertVote(ctx, v); err != nil {
		return nil, err
	}
	e.notifier.PollEvent(pollID, "vote_submitted", map[string]interface{}{
		"poll_id":  pollID,
		"voter_id": voterID,
	})
	return v, nil
}

// DeleteVote removes the voter's vote if present; deleting a missing vote is a no-op.
func (e *Engine) DeleteVote(ctx context.Context, pollID, voterID uuid.UUID) error {
	if _, err := e.store.GetPoll(ctx, pollID); err != nil {
		return err
	}
	deleted, err := e.store.DeleteVote(ctx, pollID, voterID)
	if err != nil {
		return err
	}
	if deleted {
		e.notifier.PollEvent(pollID, "vote_deleted", map[string]interface{}{
			"poll_id":  pollID,
			"voter_id": voterID,
		})
	}
	return nil
}

// UserVote returns the voter's vote, or ErrNotFound when none exists.
func (e *Engine) UserVote(ctx context.Context, pollID, voterID uuid.UUID) (*models.Vote, error) {
	if _, err := e.store.GetPoll(ctx, pollID); err != nil {
		return nil, err
	}
	return e.store.GetVote(ctx, pollID, voterID)
}

// VoterDetails returns every vote on the poll, visible to anyone who can view it.
func (e *Engine) VoterDetails(ctx context.Context, pollID, viewerID uuid.UUID) ([]models.Vote, error) {
	p, err := e.Get(ctx, pollID, viewerID)
	if err != nil {
		return nil, err
	}
	return p.Votes, nil
}

// Results tallies the poll for a viewer. The response-rate denominator is the
// invite list for invite-only polls and the group member count for open polls.
func (e *Engine) Results(ctx context.Context, pollID, viewerID uuid.UUID) (*Results, error) {
	p, err := e.Get(ctx, pollID, viewerID)
	if err != nil {
		return nil, err
	}
	audience := len(p.Invites)
	if p.Visibility == models.VisibilityOpenToGroup && p.GroupID != nil {
		n, err := e.store.CountGroupMembers(ctx, *p.GroupID)
		if err != nil {
			return nil, err
		}
		audience = n
	}
	return ComputeResults(p, audience), nil
}

// UnvotedInvites returns the creator's invitees who have not voted yet, for
// reminder dispatch.
func (e *Engine) UnvotedInvites(ctx context.Context, pollID, userID uuid.UUID) ([]models.PollInvite, error) {
	p, err := e.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if p.CreatorID != userID {
		return nil, ErrForbidden
	}
	if p.Status != models.StatusVoting {
		return nil, ErrInvalidState
	}
	return e.store.ListUnvotedInvites(ctx, pollID)
}

// ListForUser returns polls the user created or is invited to.
func (e *Engine) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Poll, error) {
	return e.store.ListPollsForUser(ctx, userID)
}

// ListByGroup returns a group's polls for one of its members.
func (e *Engine) ListByGroup(ctx context.Context, groupID, viewerID uuid.UUID) ([]models.Poll, error) {
	member, err := e.store.IsGroupMember(ctx, groupID, viewerID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrForbidden
	}
	return e.store.ListPollsByGroup(ctx, groupID)
}

// SetClock overrides the engine's time source. Tests only.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

func (e *Engine) groupMember(ctx context.Context, p *models.Poll, userID uuid.UUID) (bool, error) {
	if p.GroupID == nil {
		return false, nil
	}
	return e.store.IsGroupMember(ctx, *p.GroupID, userID)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
