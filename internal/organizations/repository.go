package organizations

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/models"
)

// Repository handles organization persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organization repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new organization and makes the creator an administrator member.
func (r *Repository) Create(ctx context.Context, org *models.Organization) error {
	const q = `INSERT INTO organizations (id, name, created_by)
		VALUES (gen_random_uuid(), $1, $2)
		RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, q, org.Name, org.CreatedBy).Scan(&org.ID, &org.CreatedAt); err != nil {
		return err
	}
	const mq = `INSERT INTO organization_members (organization_id, user_id, role)
		VALUES ($1, $2, 'administrator')
		ON CONFLICT (organization_id, user_id) DO UPDATE SET role = 'administrator'`
	_, err := r.pool.Exec(ctx, mq, org.ID, org.CreatedBy)
	return err
}

// GetByID returns an organization by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	const q = `SELECT id, name, created_by, created_at FROM organizations WHERE id = $1`
	var org models.Organization
	err := r.pool.QueryRow(ctx, q, id).Scan(&org.ID, &org.Name, &org.CreatedBy, &org.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// List returns all organizations.
func (r *Repository) List(ctx context.Context) ([]models.Organization, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_by, created_at FROM organizations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Organization
	for rows.Next() {
		var org models.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedBy, &org.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, org)
	}
	return list, rows.Err()
}

// AddMember adds a user to an organization.
func (r *Repository) AddMember(ctx context.Context, orgID, userID uuid.UUID, role string) error {
	const q = `INSERT INTO organization_members (organization_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, orgID, userID, role)
	return err
}

// IsMember reports whether the user belongs to the organization.
func (r *Repository) IsMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM organization_members WHERE organization_id = $1 AND user_id = $2)`
	var ok bool
	err := r.pool.QueryRow(ctx, q, orgID, userID).Scan(&ok)
	return ok, err
}

// MemberRole returns the user's role inside the organization, or "" when
// the user is not a member.
func (r *Repository) MemberRole(ctx context.Context, orgID, userID uuid.UUID) (string, error) {
	const q = `SELECT COALESCE((SELECT role FROM organization_members WHERE organization_id = $1 AND user_id = $2), '')`
	var role string
	err := r.pool.QueryRow(ctx, q, orgID, userID).Scan(&role)
	return role, err
}
