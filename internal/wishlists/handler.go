package wishlists

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherly/backend/internal/middleware"
	"github.com/gatherly/backend/internal/models"
	"github.com/gatherly/backend/pkg/queue"
	"github.com/gatherly/backend/pkg/response"
	"github.com/gatherly/backend/pkg/storage"
)

// Handler handles wishlist HTTP endpoints.
type Handler struct {
	repo   *Repository
	jobs   *queue.Queue
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a wishlists handler. jobs and s3 may be nil (image ingest
// disabled).
func NewHandler(repo *Repository, jobs *queue.Queue, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jobs: jobs, s3: s3, logger: logger}
}

// CreateRequest is the body for POST /wishlists.
type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

// ItemRequest is the body for POST /wishlists/:id/items.
type ItemRequest struct {
	Title      string `json:"title" binding:"required"`
	URL        string `json:"url" binding:"omitempty,url"`
	PriceCents int    `json:"price_cents" binding:"omitempty,min=0"`
	Currency   string `json:"currency" binding:"omitempty,len=3"`
	Note       string `json:"note"`
	ImageURL   string `json:"image_url" binding:"omitempty,url"`
}

// Create handles POST /wishlists.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	w := &models.Wishlist{
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	}
	if err := h.repo.Create(c.Request.Context(), w); err != nil {
		h.logger.Error("create wishlist failed", zap.Error(err))
		response.Internal(c, "failed to create wishlist")
		return
	}
	response.Created(c, w)
}

// Get handles GET /wishlists/:id. Private lists are owner-only.
func (h *Handler) Get(c *gin.Context) {
	listID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	w, err := h.repo.GetByID(c.Request.Context(), listID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !w.IsPublic && w.OwnerID != userID {
		response.Forbidden(c, "this wishlist is private")
		return
	}
	h.presignItems(c, w.Items)
	response.OK(c, w)
}

// Update handles PATCH /wishlists/:id (owner only).
func (h *Handler) Update(c *gin.Context) {
	listID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		IsPublic    *bool   `json:"is_public"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	w, err := h.ownedList(c, listID, userID)
	if err != nil {
		return
	}
	if err := h.repo.Update(c.Request.Context(), w.ID, req.Name, req.Description, req.IsPublic); err != nil {
		h.respondError(c, err)
		return
	}
	updated, err := h.repo.GetByID(c.Request.Context(), listID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, updated)
}

// Delete handles DELETE /wishlists/:id (owner only).
func (h *Handler) Delete(c *gin.Context) {
	listID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	w, err := h.ownedList(c, listID, userID)
	if err != nil {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), w.ID); err != nil {
		h.respondError(c, err)
		return
	}
	response.NoContent(c)
}

// ListMine handles GET /wishlists.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListForOwner(c.Request.Context(), userID, false)
	if err != nil {
		response.Internal(c, "failed to load wishlists")
		return
	}
	response.OK(c, list)
}

// ListForUser handles GET /users/:id/wishlists: the public lists of another
// user.
func (h *Handler) ListForUser(c *gin.Context) {
	ownerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	publicOnly := ownerID != userID
	list, err := h.repo.ListForOwner(c.Request.Context(), ownerID, publicOnly)
	if err != nil {
		response.Internal(c, "failed to load wishlists")
		return
	}
	response.OK(c, list)
}

// AddItem handles POST /wishlists/:id/items (owner only). If the item carries
// an image_url, an async ingest job copies the image into object storage.
func (h *Handler) AddItem(c *gin.Context) {
	listID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	w, err := h.ownedList(c, listID, userID)
	if err != nil {
		return
	}
	it := &models.WishlistItem{
		WishlistID: w.ID,
		Title:      req.Title,
		URL:        req.URL,
		PriceCents: req.PriceCents,
		Currency:   req.Currency,
		Note:       req.Note,
		ImageURL:   req.ImageURL,
	}
	if err := h.repo.AddItem(c.Request.Context(), it); err != nil {
		h.logger.Error("add item failed", zap.Error(err))
		response.Internal(c, "failed to add item")
		return
	}
	if it.ImageURL != "" && h.jobs != nil {
		err := h.jobs.EnqueueImageFetch(c.Request.Context(), queue.ImageFetchPayload{
			ItemID:    it.ID,
			SourceURL: it.ImageURL,
		})
		if err != nil {
			h.logger.Warn("enqueue image fetch failed", zap.Error(err), zap.String("item_id", it.ID.String()))
		}
	}
	response.Created(c, it)
}

// UpdateItem handles PATCH /wishlists/:id/items/:itemID (owner only).
func (h *Handler) UpdateItem(c *gin.Context) {
	listID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		response.BadRequest(c, "invalid item id")
		return
	}
	var req struct {
		Title      *string `json:"title"`
		URL        *string `json:"url"`
		Currency   *string `json:"currency"`
		Note       *string `json:"note"`
		PriceCents *int    `json:"price_cents"`
		Position   *int    `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	if _, err := h.ownedItem(c, listID, itemID, userID); err != nil {
		return
	}
	if err := h.repo.UpdateItem(c.Request.Context(), itemID, req.Title, req.URL, req.Currency, req.Note, req.PriceCents, req.Position); err != nil {
		h.respondError(c, err)
		return
	}
	it, err := h.repo.GetItem(c.Request.Context(), itemID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, it)
}

// DeleteItem handles DELETE /wishlists/:id/items/:itemID (owner only).
func (h *Handler) DeleteItem(c *gin.Context) {
	listID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		response.BadRequest(c, "invalid item id")
		return
	}
	if _, err := h.ownedItem(c, listID, itemID, userID); err != nil {
		return
	}
	key, err := h.repo.DeleteItem(c.Request.Context(), itemID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if key != "" && h.s3 != nil {
		if err := h.s3.DeleteObject(c.Request.Context(), key); err != nil {
			h.logger.Warn("delete item image failed", zap.Error(err), zap.String("key", key))
		}
	}
	response.NoContent(c)
}

// ItemImage handles GET /wishlists/:id/items/:itemID/image: a pre-signed
// download URL for the ingested image.
func (h *Handler) ItemImage(c *gin.Context) {
	listID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		response.BadRequest(c, "invalid item id")
		return
	}
	w, err := h.repo.GetByID(c.Request.Context(), listID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !w.IsPublic && w.OwnerID != userID {
		response.Forbidden(c, "this wishlist is private")
		return
	}
	it, err := h.repo.GetItem(c.Request.Context(), itemID)
	if err != nil || it.WishlistID != listID {
		response.NotFound(c, "item not found")
		return
	}
	if it.ImageKey == "" {
		response.NotFound(c, "image not yet available")
		return
	}
	if h.s3 == nil {
		response.ServiceUnavailable(c, "image storage is not configured")
		return
	}
	url, err := h.s3.PresignDownload(c.Request.Context(), it.ImageKey)
	if err != nil {
		response.Internal(c, "failed to sign image url")
		return
	}
	response.OK(c, gin.H{"url": url})
}

func (h *Handler) presignItems(c *gin.Context, items []models.WishlistItem) {
	if h.s3 == nil {
		return
	}
	for i := range items {
		if items[i].ImageKey == "" {
			continue
		}
		url, err := h.s3.PresignDownload(c.Request.Context(), items[i].ImageKey)
		if err != nil {
			continue
		}
		items[i].ImageURL = url
	}
}

func (h *Handler) ids(c *gin.Context) (listID, userID uuid.UUID, ok bool) {
	listID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid wishlist id")
		return uuid.Nil, uuid.Nil, false
	}
	return listID, c.MustGet(middleware.ContextUserID).(uuid.UUID), true
}

// ownedList loads the list and enforces ownership, writing the error response
// itself on failure.
func (h *Handler) ownedList(c *gin.Context, listID, userID uuid.UUID) (*models.Wishlist, error) {
	w, err := h.repo.GetByID(c.Request.Context(), listID)
	if err != nil {
		h.respondError(c, err)
		return nil, err
	}
	if w.OwnerID != userID {
		response.Forbidden(c, "only the owner can modify this wishlist")
		return nil, ErrNotFound
	}
	return w, nil
}

func (h *Handler) ownedItem(c *gin.Context, listID, itemID, userID uuid.UUID) (*models.WishlistItem, error) {
	w, err := h.ownedList(c, listID, userID)
	if err != nil {
		return nil, err
	}
	it, err := h.repo.GetItem(c.Request.Context(), itemID)
	if err != nil {
		h.respondError(c, err)
		return nil, err
	}
	if it.WishlistID != w.ID {
		response.NotFound(c, "item not found in this wishlist")
		return nil, ErrNotFound
	}
	return it, nil
}

func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "wishlist not found")
		return
	}
	h.logger.Error("wishlist operation failed", zap.Error(err))
	response.Internal(c, "internal error")
}
