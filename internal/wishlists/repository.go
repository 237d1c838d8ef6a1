package wishlists

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/backend/internal/models"
)

// ErrNotFound is returned when a wishlist or item does not exist.
var ErrNotFound = errors.New("wishlist not found")

// Repository handles wishlist and wishlist_item persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a wishlists repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a wishlist.
func (r *Repository) Create(ctx context.Context, w *models.Wishlist) error {
	const q = `INSERT INTO wishlists (id, owner_id, name, description, is_public)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3,''), $4)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, w.OwnerID, w.Name, w.Description, w.IsPublic).
		Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
}

// GetByID returns a wishlist with its items ordered by position.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Wishlist, error) {
	const q = `SELECT id, owner_id, name, COALESCE(description,''), is_public, created_at, updated_at
		FROM wishlists WHERE id = $1`
	var w models.Wishlist
	err := r.pool.QueryRow(ctx, q, id).Scan(&w.ID, &w.OwnerID, &w.Name, &w.Description, &w.IsPublic, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	w.Items = items
	return &w, nil
}

func (r *Repository) listItems(ctx context.Context, wishlistID uuid.UUID) ([]models.WishlistItem, error) {
	const q = `SELECT id, wishlist_id, title, COALESCE(url,''), price_cents, COALESCE(currency,''),
		COALESCE(note,''), position, COALESCE(image_url,''), COALESCE(image_key,''), created_at, updated_at
		FROM wishlist_items WHERE wishlist_id = $1 ORDER BY position, created_at`
	rows, err := r.pool.Query(ctx, q, wishlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.WishlistItem
	for rows.Next() {
		var it models.WishlistItem
		if err := rows.Scan(&it.ID, &it.WishlistID, &it.Title, &it.URL, &it.PriceCents, &it.Currency,
			&it.Note, &it.Position, &it.ImageURL, &it.ImageKey, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Update patches wishlist metadata.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, name, description *string, isPublic *bool) error {
	const q = `UPDATE wishlists SET
		name = COALESCE($2, name),
		description = COALESCE($3, description),
		is_public = COALESCE($4, is_public),
		updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, name, description, isPublic)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a wishlist and its items (cascade).
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM wishlists WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForOwner returns all wishlists of a user, without items.
func (r *Repository) ListForOwner(ctx context.Context, ownerID uuid.UUID, publicOnly bool) ([]models.Wishlist, error) {
	q := `SELECT id, owner_id, name, COALESCE(description,''), is_public, created_at, updated_at
		FROM wishlists WHERE owner_id = $1`
	if publicOnly {
		q += ` AND is_public = TRUE`
	}
	q += ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Wishlist
	for rows.Next() {
		var w models.Wishlist
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.Name, &w.Description, &w.IsPublic, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

// AddItem inserts an item at the end of the list.
func (r *Repository) AddItem(ctx context.Context, it *models.WishlistItem) error {
	const q = `INSERT INTO wishlist_items (id, wishlist_id, title, url, price_cents, currency, note, position, image_url)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3,''), $4, NULLIF($5,''), NULLIF($6,''),
			COALESCE((SELECT MAX(position) + 1 FROM wishlist_items WHERE wishlist_id = $1), 0),
			NULLIF($7,''))
		RETURNING id, position, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, it.WishlistID, it.Title, it.URL, it.PriceCents, it.Currency, it.Note, it.ImageURL).
		Scan(&it.ID, &it.Position, &it.CreatedAt, &it.UpdatedAt)
}

// GetItem returns an item by ID.
func (r *Repository) GetItem(ctx context.Context, itemID uuid.UUID) (*models.WishlistItem, error) {
	const q = `SELECT id, wishlist_id, title, COALESCE(url,''), price_cents, COALESCE(currency,''),
		COALESCE(note,''), position, COALESCE(image_url,''), COALESCE(image_key,''), created_at, updated_at
		FROM wishlist_items WHERE id = $1`
	var it models.WishlistItem
	err := r.pool.QueryRow(ctx, q, itemID).Scan(&it.ID, &it.WishlistID, &it.Title, &it.URL, &it.PriceCents,
		&it.Currency, &it.Note, &it.Position, &it.ImageURL, &it.ImageKey, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &it, nil
}

// UpdateItem patches item fields.
func (r *Repository) UpdateItem(ctx context.Context, itemID uuid.UUID, title, url, currency, note *string, priceCents, position *int) error {
	const q = `UPDATE wishlist_items SET
		title = COALESCE($2, title),
		url = COALESCE($3, url),
		currency = COALESCE($4, currency),
		note = COALESCE($5, note),
		price_cents = COALESCE($6, price_cents),
		position = COALESCE($7, position),
		updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, itemID, title, url, currency, note, priceCents, position)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetItemImageKey records the stored object key after the worker has ingested
// the source image.
func (r *Repository) SetItemImageKey(ctx context.Context, itemID uuid.UUID, key string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE wishlist_items SET image_key = $2, updated_at = NOW() WHERE id = $1`, itemID, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem removes an item and returns its image key (if any) so the caller
// can clean up storage.
func (r *Repository) DeleteItem(ctx context.Context, itemID uuid.UUID) (string, error) {
	var key *string
	err := r.pool.QueryRow(ctx,
		`DELETE FROM wishlist_items WHERE id = $1 RETURNING image_key`, itemID).Scan(&key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	if key == nil {
		return "", nil
	}
	return *key, nil
}
