package groups

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/backend/internal/models"
)

// Repository handles group and group_member persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a groups repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create creates a group.
func (r *Repository) Create(ctx context.Context, g *models.Group) error {
	const q = `INSERT INTO groups (id, name, external_id, invite_code, created_by)
		VALUES (gen_random_uuid(), $1, NULLIF($2,''), $3, $4)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, g.Name, g.ExternalID, g.InviteCode, g.CreatedBy).
		Scan(&g.ID, &g.CreatedAt)
}

// GetByID returns a group by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	const q = `SELECT id, name, COALESCE(external_id,''), invite_code, created_by, created_at
		FROM groups WHERE id = $1`
	var g models.Group
	err := r.pool.QueryRow(ctx, q, id).Scan(&g.ID, &g.Name, &g.ExternalID, &g.InviteCode, &g.CreatedBy, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// GetByInviteCode returns a group by its invite code.
func (r *Repository) GetByInviteCode(ctx context.Context, code string) (*models.Group, error) {
	const q = `SELECT id, name, COALESCE(external_id,''), invite_code, created_by, created_at
		FROM groups WHERE invite_code = $1`
	var g models.Group
	err := r.pool.QueryRow(ctx, q, code).Scan(&g.ID, &g.Name, &g.ExternalID, &g.InviteCode, &g.CreatedBy, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// GetByExternalID returns a group by the chat-platform guild/channel id it
// mirrors, used by the companion bot.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*models.Group, error) {
	const q = `SELECT id, name, COALESCE(external_id,''), invite_code, created_by, created_at
		FROM groups WHERE external_id = $1`
	var g models.Group
	err := r.pool.QueryRow(ctx, q, externalID).Scan(&g.ID, &g.Name, &g.ExternalID, &g.InviteCode, &g.CreatedBy, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// AddMember adds a user to a group. Re-joining is a no-op.
func (r *Repository) AddMember(ctx context.Context, groupID, userID uuid.UUID) error {
	const q = `INSERT INTO group_members (group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (group_id, user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, groupID, userID)
	return err
}

// RemoveMember removes a user from a group.
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	return err
}

// IsMember reports whether userID belongs to groupID.
func (r *Repository) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`,
		groupID, userID).Scan(&exists)
	return exists, err
}

// ListForUser returns groups the user is a member of.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Group, error) {
	const q = `SELECT g.id, g.name, COALESCE(g.external_id,''), g.invite_code, g.created_by, g.created_at
		FROM groups g
		INNER JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = $1
		ORDER BY g.name`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.ExternalID, &g.InviteCode, &g.CreatedBy, &g.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &g)
	}
	return list, rows.Err()
}

// Member is a group member with user details.
type Member struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

// ListMembers returns members of a group with display details.
func (r *Repository) ListMembers(ctx context.Context, groupID uuid.UUID) ([]Member, error) {
	const q = `SELECT gm.user_id, u.email, u.display_name, gm.joined_at
		FROM group_members gm
		INNER JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY gm.joined_at ASC`
	rows, err := r.pool.Query(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Email, &m.DisplayName, &m.JoinedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
