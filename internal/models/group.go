package models

import (
	"time"

	"github.com/google/uuid"
)

// Group is a shared scheduling context, typically mirroring a server/channel on
// the chat platform the companion bot runs in.
type Group struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	ExternalID string    `json:"external_id,omitempty"` // chat-platform guild/channel id
	InviteCode string    `json:"invite_code,omitempty"`
	CreatedBy  uuid.UUID `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// GroupMember links a user to a group.
type GroupMember struct {
	GroupID  uuid.UUID `json:"group_id"`
	UserID   uuid.UUID `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}
