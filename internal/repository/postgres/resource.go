package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"booking-system/internal/domain/event"
	"booking-system/internal/domain/resource"
)

const resourceColumns = `id, tenant_id, category_id, name, description, status,
	capacity, location, attributes, availability_schedule, image_url,
	created_at, updated_at`

type ResourceRepository struct {
	db *pgxpool.Pool
}

func NewResourceRepository(db *pgxpool.Pool) *ResourceRepository {
	return &ResourceRepository{db: db}
}

func scanResource(row rowScanner) (resource.Resource, error) {
	var res resource.Resource
	err := row.Scan(
		&res.ID,
		&res.TenantID,
		&res.CategoryID,
		&res.Name,
		&res.Description,
		&res.Status,
		&res.Capacity,
		&res.Location,
		&res.Attributes,
		&res.Schedule,
		&res.ImageURL,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	return res, err
}

func (r *ResourceRepository) Create(ctx context.Context, res resource.Resource) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO resources (id, tenant_id, category_id, name, description, status,
			capacity, location, attributes, availability_schedule, image_url,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		res.ID, res.TenantID, res.CategoryID, res.Name, res.Description, res.Status,
		res.Capacity, res.Location, res.Attributes, res.Schedule, res.ImageURL,
		res.CreatedAt, res.UpdatedAt)
	if pgCode(err) == codeForeignKeyViolation {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	return nil
}

func (r *ResourceRepository) Get(ctx context.Context, id uuid.UUID) (resource.Resource, error) {
	res, err := scanResource(r.db.QueryRow(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return resource.Resource{}, ErrNotFound
	}
	if err != nil {
		return resource.Resource{}, fmt.Errorf("get resource: %w", err)
	}
	return res, nil
}

type ResourceFilter struct {
	TenantID   uuid.UUID
	CategoryID *uuid.UUID
	Status     *resource.Status
	Limit      int
	Offset     int
}

func (r *ResourceRepository) List(ctx context.Context, f ResourceFilter) ([]resource.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE tenant_id = $1`
	args := []any{f.TenantID}

	if f.CategoryID != nil {
		args = append(args, *f.CategoryID)
		query += fmt.Sprintf(" AND category_id = $%d", len(args))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY name"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var resources []resource.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		resources = append(resources, res)
	}
	return resources, rows.Err()
}

func (r *ResourceRepository) Update(ctx context.Context, res resource.Resource) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE resources
		SET category_id = $2, name = $3, description = $4, status = $5,
			capacity = $6, location = $7, attributes = $8,
			availability_schedule = $9, image_url = $10, updated_at = $11
		WHERE id = $1`,
		res.ID, res.CategoryID, res.Name, res.Description, res.Status,
		res.Capacity, res.Location, res.Attributes, res.Schedule, res.ImageURL,
		res.UpdatedAt)
	if pgCode(err) == codeForeignKeyViolation {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the resource and stages resource.deleted atomically.
func (r *ResourceRepository) Delete(ctx context.Context, id uuid.UUID, stream string, env event.Envelope) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete resource: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return enqueueEvent(ctx, tx, stream, env)
	})
}

// DeleteByTenant runs before DeleteByTenant on categories so the FK
// never blocks.
func (r *ResourceRepository) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM resources WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("delete tenant resources: %w", err)
	}
	return tag.RowsAffected(), nil
}
