package models

import (
	"time"

	"github.com/google/uuid"
)

// PollStatus is the lifecycle state of a poll.
type PollStatus string

const (
	StatusDraft     PollStatus = "draft"
	StatusVoting    PollStatus = "voting"
	StatusFinalized PollStatus = "finalized"
	StatusCancelled PollStatus = "cancelled"
	StatusExpired   PollStatus = "expired"
)

// Closed reports whether the status is one voting can be reopened from.
func (s PollStatus) Closed() bool {
	return s == StatusFinalized || s == StatusCancelled || s == StatusExpired
}

// Visibility controls who may view and vote on a poll.
type Visibility string

const (
	// VisibilityInviteOnly restricts the poll to its creator and invite list.
	VisibilityInviteOnly Visibility = "invite_only"
	// VisibilityOpenToGroup lets any member of the linked group view and vote.
	VisibilityOpenToGroup Visibility = "open_to_group"
)

// Poll is a schedulable decision with options awaiting availability votes.
type Poll struct {
	ID                uuid.UUID  `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	CreatorID         uuid.UUID  `json:"creator_id"`
	GroupID           *uuid.UUID `json:"group_id,omitempty"`
	Visibility        Visibility `json:"visibility"`
	Status            PollStatus `json:"status"`
	VotingDeadline    *time.Time `json:"voting_deadline,omitempty"`
	FinalizedOptionID *uuid.UUID `json:"finalized_option_id,omitempty"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Options []PollOption `json:"options,omitempty"`
	Votes   []Vote       `json:"votes,omitempty"`
	Invites []PollInvite `json:"invites,omitempty"`
}

// OptionIDs returns the set of option ids belonging to the poll.
func (p *Poll) OptionIDs() map[uuid.UUID]struct{} {
	ids := make(map[uuid.UUID]struct{}, len(p.Options))
	for _, o := range p.Options {
		ids[o.ID] = struct{}{}
	}
	return ids
}

// HasOption reports whether id is one of the poll's options.
func (p *Poll) HasOption(id uuid.UUID) bool {
	for _, o := range p.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// IsInvited reports whether userID is on the poll's invite list.
func (p *Poll) IsInvited(userID uuid.UUID) bool {
	for _, inv := range p.Invites {
		if inv.UserID == userID {
			return true
		}
	}
	return false
}

// PollOption is one selectable choice (a date/time slot or free text) within a poll.
// Options are append-only once created; votes reference them by id.
type PollOption struct {
	ID          uuid.UUID  `json:"id"`
	PollID      uuid.UUID  `json:"poll_id"`
	Label       string     `json:"label"`
	Description string     `json:"description,omitempty"`
	Position    int        `json:"position"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

// Vote is one user's availability declaration for a poll. At most one row
// exists per (poll, voter); submissions upsert.
type Vote struct {
	ID                 uuid.UUID   `json:"id"`
	PollID             uuid.UUID   `json:"poll_id"`
	VoterID            uuid.UUID   `json:"voter_id"`
	AvailableOptionIDs []uuid.UUID `json:"available_option_ids"`
	MaybeOptionIDs     []uuid.UUID `json:"maybe_option_ids"`
	Notes              string      `json:"notes,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// PollInvite tracks an explicitly invited user and reminder bookkeeping.
type PollInvite struct {
	ID             uuid.UUID  `json:"id"`
	PollID         uuid.UUID  `json:"poll_id"`
	UserID         uuid.UUID  `json:"user_id"`
	HasVoted       bool       `json:"has_voted"`
	RemindersSent  int        `json:"reminders_sent"`
	LastRemindedAt *time.Time `json:"last_reminded_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Attendance links a finalized poll to a user who was available for the
// winning option. Unique per (poll, user).
type Attendance struct {
	ID        uuid.UUID `json:"id"`
	PollID    uuid.UUID `json:"poll_id"`
	OptionID  uuid.UUID `json:"option_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
