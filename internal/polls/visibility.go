package polls

import (
	"github.com/google/uuid"

	"github.com/gatherly/backend/internal/models"
)

// CanView reports whether viewer may see the poll. The creator and invited
// users always can; open-to-group polls additionally admit group members.
// isGroupMember is the caller's membership in p.GroupID (ignored for
// invite-only polls).
func CanView(p *models.Poll, viewerID uuid.UUID, isGroupMember bool) bool {
	if p.CreatorID == viewerID || p.IsInvited(viewerID) {
		return true
	}
	return p.Visibility == models.VisibilityOpenToGroup && isGroupMember
}

// CanVote applies the same policy as CanView: anyone who can see a poll may
// cast an availability vote on it. Lifecycle guards (status, deadline) are
// enforced separately by the engine.
func CanVote(p *models.Poll, voterID uuid.UUID, isGroupMember bool) bool {
	return CanView(p, voterID, isGroupMember)
}
