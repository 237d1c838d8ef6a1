package polls

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherly/backend/internal/middleware"
	"github.com/gatherly/backend/internal/models"
	"github.com/gatherly/backend/pkg/queue"
	"github.com/gatherly/backend/pkg/response"
)

// OptionRequest is one option in CreateRequest.
type OptionRequest struct {
	Label       string     `json:"label" binding:"required"`
	Description string     `json:"description"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

// CreateRequest is the body for POST /polls.
type CreateRequest struct {
	Title          string          `json:"title" binding:"required"`
	Description    string          `json:"description"`
	GroupID        *uuid.UUID      `json:"group_id"`
	Visibility     string          `json:"visibility" binding:"omitempty,oneof=invite_only open_to_group"`
	VotingDeadline *time.Time      `json:"voting_deadline"`
	Options        []OptionRequest `json:"options" binding:"required"`
	InviteeIDs     []uuid.UUID     `json:"invitee_ids"`
}

// VoteRequest is the body for PUT /polls/:id/vote.
type VoteRequest struct {
	AvailableOptionIDs []uuid.UUID `json:"available_option_ids"`
	MaybeOptionIDs     []uuid.UUID `json:"maybe_option_ids"`
	Notes              string      `json:"notes"`
}

// ReopenRequest is the body for POST /polls/:id/reopen.
type ReopenRequest struct {
	Days int `json:"days"`
}

// Handler handles poll HTTP endpoints.
type Handler struct {
	engine *Engine
	jobs   *queue.Queue
	logger *zap.Logger
}

// NewHandler creates a polls handler. jobs may be nil (reminders disabled).
func NewHandler(engine *Engine, jobs *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, jobs: jobs, logger: logger}
}

// Create handles POST /polls.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	in := CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		GroupID:        req.GroupID,
		Visibility:     models.Visibility(req.Visibility),
		VotingDeadline: req.VotingDeadline,
		InviteeIDs:     req.InviteeIDs,
	}
	for _, o := range req.Options {
		in.Options = append(in.Options, OptionInput{
			Label:       o.Label,
			Description: o.Description,
			StartsAt:    o.StartsAt,
			EndsAt:      o.EndsAt,
		})
	}

	p, err := h.engine.Create(c.Request.Context(), userID, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Created(c, p)
}

// Get handles GET /polls/:id.
func (h *Handler) Get(c *gin.Context) {
	pollID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	p, err := h.engine.Get(c.Request.Context(), pollID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, p)
}

// Update handles PATCH /polls/:id (creator only).
func (h *Handler) Update(c *gin.Context) {
	pollID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	var req struct {
		Title          *string    `json:"title"`
		Description    *string    `json:"description"`
		VotingDeadline *time.Time `json:"voting_deadline"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	p, err := h.engine.Update(c.Request.Context(), pollID, userID, PollPatch{
		Title:          req.Title,
		Description:    req.Description,
		VotingDeadline: req.VotingDeadline,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, p)
}

// Finalize handles POST /polls/:id/finalize (creator only).
func (h *Handler) Finalize(c *gin.Context) {
	pollID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	var req struct {
		OptionID uuid.UUID `json:"option_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: option_id required")
		return
	}
	p, err := h.engine.Finalize(c.Request.Context(), pollID, userID, req.OptionID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, p)
}

// Cancel handles POST /polls/:id/cancel (creator only).
func (h *Handler) Cancel(c *gin.Context) {
	pollID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	p, err := h.engine.Cancel(c.Request.Context(), pollID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, p)
}

// Reopen handles POST /polls/:id/reopen (creator only).
func (h *Handler) Reopen(c *gin.Context) {
	pollID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	var req ReopenRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, "invalid request")
		return
	}
	p, err := h.engine.Reopen(c.Request.Context(), pollID, userID, req.Days)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, p)
}

// SubmitVote handles PUT /polls/:id/vote.
func (h *Handler) SubmitVote(c *gin.Context) {
	pollID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	v, err := h.engine.SubmitVote(c.Request.Context(), pollID, userID, VoteInput{
		AvailableOptionIDs: req.AvailableOptionIDs,
		MaybeOptionIDs:     req.MaybeOptionIDs,
		Notes:              req.Notes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, v)
}

// DeleteVote handles DELETE /polls/:id/vote.
func (h *Handler) DeleteVote(c *gin.Context) {
	pollID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	if err := h.engine.DeleteVote(c.Request.Context(), pollID, userID); err != nil {
		h.respondError(c, err)
		return
	}
	response.NoContent(c)
}

// GetMyVote handles GET /polls/:id/vote.
func (h *Handler) GetMyVote(c *gin.Context) {
	pollID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	v, err := h.engine.UserVote(c.Request.Context(), pollID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "no vote recorded")
			return
		}
		h.respondError(c, err)
		return
	}
	response.OK(c, v)
}

// Voters handles GET /polls/:id/voters.
func (h *Handler) Voters(c *gin.Context) {
	pollID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	votes, err := h.engine.VoterDetails(c.Request.Context(), pollID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, votes)
}

// Results handles GET /polls/:id/results.
func (h *Handler) Results(c *gin.Context) {
	pollID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	res, err := h.engine.Results(c.Request.Context(), pollID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, res)
}

// Remind handles POST /polls/:id/remind (creator only): queues one reminder
// job per invitee who has not voted.
func (h *Handler) Remind(c *gin.Context) {
	pollID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	invites, err := h.engine.UnvotedInvites(c.Request.Context(), pollID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if h.jobs == nil {
		response.ServiceUnavailable(c, "reminders are not configured")
		return
	}
	queued := 0
	for _, inv := range invites {
		err := h.jobs.EnqueueReminder(c.Request.Context(), queue.ReminderPayload{
			PollID: pollID,
			UserID: inv.UserID,
		})
		if err != nil {
			h.logger.Warn("enqueue reminder failed", zap.Error(err), zap.String("poll_id", pollID.String()))
			continue
		}
		queued++
	}
	response.OK(c, gin.H{"queued": queued})
}

// ListMine handles GET /polls.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.engine.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, list)
}

// ListByGroup handles GET /groups/:id/polls.
func (h *Handler) ListByGroup(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid group id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.engine.ListByGroup(c.Request.Context(), groupID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, list)
}

func (h *Handler) ids(c *gin.Context) (pollID, userID uuid.UUID, ok bool) {
	pollID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return uuid.Nil, uuid.Nil, false
	}
	return pollID, c.MustGet(middleware.ContextUserID).(uuid.UUID), true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "poll not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, "you do not have access to this poll")
	case errors.Is(err, ErrInvalidState):
		response.Conflict(c, "poll state does not allow this operation")
	case IsValidation(err):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("poll operation failed", zap.Error(err))
		response.Internal(c, "internal error")
	}
}
