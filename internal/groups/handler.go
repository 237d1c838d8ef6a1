package groups

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gatherly/backend/internal/middleware"
	"github.com/gatherly/backend/internal/models"
	"github.com/gatherly/backend/pkg/response"
)

// Handler handles group HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a groups handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// CreateGroupRequest is the body for POST /groups.
type CreateGroupRequest struct {
	Name       string `json:"name" binding:"required"`
	ExternalID string `json:"external_id"`
}

// JoinGroupRequest is the body for POST /groups/join.
type JoinGroupRequest struct {
	InviteCode string `json:"invite_code" binding:"required"`
}

func newInviteCode() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// CreateGroup handles POST /groups. Creates the group and adds the current
// user as its first member.
func (h *Handler) CreateGroup(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body CreateGroupRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name required")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if len(body.Name) < 1 || len(body.Name) > 255 {
		response.BadRequest(c, "name must be 1-255 characters")
		return
	}
	g := &models.Group{
		Name:       body.Name,
		ExternalID: strings.TrimSpace(body.ExternalID),
		InviteCode: newInviteCode(),
		CreatedBy:  userID,
	}
	if err := h.repo.Create(c.Request.Context(), g); err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique") {
			response.Conflict(c, "a group for this external id already exists")
			return
		}
		response.Internal(c, "failed to create group")
		return
	}
	if err := h.repo.AddMember(c.Request.Context(), g.ID, userID); err != nil {
		response.Internal(c, "failed to add you as a member")
		return
	}
	response.Created(c, g)
}

// JoinGroup handles POST /groups/join. Adds the current user by invite code.
func (h *Handler) JoinGroup(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body JoinGroupRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invite_code required")
		return
	}
	code := strings.TrimSpace(body.InviteCode)
	g, err := h.repo.GetByInviteCode(c.Request.Context(), code)
	if err != nil {
		response.NotFound(c, "group not found")
		return
	}
	if err := h.repo.AddMember(c.Request.Context(), g.ID, userID); err != nil {
		response.Internal(c, "failed to join group")
		return
	}
	response.OK(c, g)
}

// LeaveGroup handles POST /groups/:id/leave.
func (h *Handler) LeaveGroup(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid group id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.repo.RemoveMember(c.Request.Context(), groupID, userID); err != nil {
		response.Internal(c, "failed to leave group")
		return
	}
	response.NoContent(c)
}

// ListMyGroups handles GET /groups.
func (h *Handler) ListMyGroups(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load groups")
		return
	}
	response.OK(c, list)
}

// ListMembers handles GET /groups/:id/members. Members only.
func (h *Handler) ListMembers(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid group id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	ok, err := h.repo.IsMember(c.Request.Context(), groupID, userID)
	if err != nil || !ok {
		response.Forbidden(c, "not a member of this group")
		return
	}
	members, err := h.repo.ListMembers(c.Request.Context(), groupID)
	if err != nil {
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, members)
}
