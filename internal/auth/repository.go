package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/backend/internal/models"
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, password_hash, display_name, COALESCE(avatar_url,''),
		events_created, events_attended, last_attended_at,
		created_at, updated_at FROM users WHERE id = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.AvatarURL,
		&u.EventsCreated, &u.EventsAttended, &u.LastAttendedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT id, email, password_hash, display_name, COALESCE(avatar_url,''),
		events_created, events_attended, last_attended_at,
		created_at, updated_at FROM users WHERE email = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email).Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.AvatarURL,
		&u.EventsCreated, &u.EventsAttended, &u.LastAttendedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, email, passwordHash, displayName string) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, display_name)
		VALUES ($1, $2, $3)
		RETURNING id, email, password_hash, display_name, COALESCE(avatar_url,''),
		events_created, events_attended, last_attended_at,
		created_at, updated_at`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email, passwordHash, displayName).
		Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.AvatarURL,
			&u.EventsCreated, &u.EventsAttended, &u.LastAttendedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile updates display name and avatar URL.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, displayName, avatarURL string) (*models.User, error) {
	const q = `UPDATE users SET
		display_name = COALESCE(NULLIF($2,''), display_name),
		avatar_url = COALESCE(NULLIF($3,''), avatar_url),
		updated_at = NOW()
		WHERE id = $1
		RETURNING id, email, password_hash, display_name, COALESCE(avatar_url,''),
		events_created, events_attended, last_attended_at,
		created_at, updated_at`
	var u models.User
	err := r.pool.QueryRow(ctx, q, id, displayName, avatarURL).
		Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.AvatarURL,
			&u.EventsCreated, &u.EventsAttended, &u.LastAttendedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SearchByEmail returns public profiles matching an email prefix, used by
// clients to resolve invitees.
func (r *Repository) SearchByEmail(ctx context.Context, prefix string, limit int) ([]models.UserPublic, error) {
	if limit <= 0 || limit > 25 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `SELECT id, email, display_name, COALESCE(avatar_url,''),
		events_created, events_attended, created_at
		FROM users WHERE email ILIKE $1 || '%' ORDER BY email LIMIT $2`, prefix, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserPublic
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.AvatarURL,
			&u.EventsCreated, &u.EventsAttended, &u.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
