package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a platform user. EventsCreated/EventsAttended are lifetime
// counters bumped transactionally when polls are finalized.
type User struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	Password       string     `json:"-"`
	DisplayName    string     `json:"display_name"`
	AvatarURL      string     `json:"avatar_url,omitempty"`
	EventsCreated  int        `json:"events_created"`
	EventsAttended int        `json:"events_attended"`
	LastAttendedAt *time.Time `json:"last_attended_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	EventsCreated  int       `json:"events_created"`
	EventsAttended int       `json:"events_attended"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:             u.ID,
		Email:          u.Email,
		DisplayName:    u.DisplayName,
		AvatarURL:      u.AvatarURL,
		EventsCreated:  u.EventsCreated,
		EventsAttended: u.EventsAttended,
		CreatedAt:      u.CreatedAt,
	}
}
