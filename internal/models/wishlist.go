package models

import (
	"time"

	"github.com/google/uuid"
)

// Wishlist is a user's collection of saved items. Public lists are readable by anyone.
type Wishlist struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Items []WishlistItem `json:"items,omitempty"`
}

// WishlistItem is one saved link/product. ImageKey is set by the worker after the
// source image has been fetched and stored.
type WishlistItem struct {
	ID         uuid.UUID `json:"id"`
	WishlistID uuid.UUID `json:"wishlist_id"`
	Title      string    `json:"title"`
	URL        string    `json:"url,omitempty"`
	PriceCents int       `json:"price_cents"`
	Currency   string    `json:"currency,omitempty"`
	Note       string    `json:"note,omitempty"`
	Position   int       `json:"position"`
	ImageURL   string    `json:"image_url,omitempty"` // original source image
	ImageKey   string    `json:"image_key,omitempty"` // object key once ingested
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
