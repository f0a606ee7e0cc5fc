package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"booking-system/internal/domain/resource"
)

const categoryColumns = `id, tenant_id, name, description, type, icon, color,
	is_active, metadata, created_at, updated_at`

type CategoryRepository struct {
	db *pgxpool.Pool
}

func NewCategoryRepository(db *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func scanCategory(row rowScanner) (resource.Category, error) {
	var c resource.Category
	err := row.Scan(
		&c.ID,
		&c.TenantID,
		&c.Name,
		&c.Description,
		&c.Type,
		&c.Icon,
		&c.Color,
		&c.IsActive,
		&c.Metadata,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (r *CategoryRepository) Create(ctx context.Context, c resource.Category) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO resource_categories (id, tenant_id, name, description, type,
			icon, color, is_active, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.TenantID, c.Name, c.Description, c.Type,
		c.Icon, c.Color, c.IsActive, c.Metadata, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *CategoryRepository) Get(ctx context.Context, id uuid.UUID) (resource.Category, error) {
	c, err := scanCategory(r.db.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM resource_categories WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return resource.Category{}, ErrNotFound
	}
	if err != nil {
		return resource.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

type CategoryFilter struct {
	TenantID uuid.UUID
	Type     *resource.CategoryType
	IsActive *bool
	Limit    int
	Offset   int
}

func (r *CategoryRepository) List(ctx context.Context, f CategoryFilter) ([]resource.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM resource_categories WHERE tenant_id = $1`
	args := []any{f.TenantID}

	if f.Type != nil {
		args = append(args, *f.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		query += fmt.Sprintf(" AND is_active = $%d", len(args))
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
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []resource.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *CategoryRepository) Update(ctx context.Context, c resource.Category) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE resource_categories
		SET name = $2, description = $3, type = $4, icon = $5, color = $6,
			is_active = $7, metadata = $8, updated_at = $9
		WHERE id = $1`,
		c.ID, c.Name, c.Description, c.Type, c.Icon, c.Color,
		c.IsActive, c.Metadata, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete refuses when resources still reference the category.
func (r *CategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM resource_categories WHERE id = $1`, id)
	if pgCode(err) == codeForeignKeyViolation {
		return ErrRestricted
	}
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByTenant runs after the tenant's resources are gone.
func (r *CategoryRepository) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM resource_categories WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("delete tenant categories: %w", err)
	}
	return tag.RowsAffected(), nil
}
