package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"booking-system/internal/domain/event"
	"booking-system/internal/domain/tenant"
)

const tenantColumns = `id, name, domain, logo_url, theme_primary_color,
	plan, is_active, settings, created_at, updated_at`

type TenantRepository struct {
	db *pgxpool.Pool
}

func NewTenantRepository(db *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{db: db}
}

func scanTenant(row rowScanner) (tenant.Tenant, error) {
	var t tenant.Tenant
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Domain,
		&t.LogoURL,
		&t.ThemePrimaryColor,
		&t.Plan,
		&t.IsActive,
		&t.Settings,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

func (r *TenantRepository) Create(ctx context.Context, t tenant.Tenant) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tenants (id, name, domain, logo_url, theme_primary_color,
			plan, is_active, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.Name, t.Domain, t.LogoURL, t.ThemePrimaryColor,
		t.Plan, t.IsActive, t.Settings, t.CreatedAt, t.UpdatedAt)
	if pgCode(err) == codeUniqueViolation {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (tenant.Tenant, error) {
	t, err := scanTenant(r.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return tenant.Tenant{}, ErrNotFound
	}
	if err != nil {
		return tenant.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

func (r *TenantRepository) GetByDomain(ctx context.Context, domain string) (tenant.Tenant, error) {
	t, err := scanTenant(r.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE domain = $1`, domain))
	if errors.Is(err, pgx.ErrNoRows) {
		return tenant.Tenant{}, ErrNotFound
	}
	if err != nil {
		return tenant.Tenant{}, fmt.Errorf("get tenant by domain: %w", err)
	}
	return t, nil
}

type TenantFilter struct {
	IsActive *bool
	Limit    int
	Offset   int
}

func (r *TenantRepository) List(ctx context.Context, f TenantFilter) ([]tenant.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE 1=1`
	args := []any{}

	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		query += fmt.Sprintf(" AND is_active = $%d", len(args))
	}
	query += " ORDER BY created_at"
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
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (r *TenantRepository) Update(ctx context.Context, t tenant.Tenant) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE tenants
		SET name = $2, domain = $3, logo_url = $4, theme_primary_color = $5,
			plan = $6, is_active = $7, settings = $8, updated_at = $9
		WHERE id = $1`,
		t.ID, t.Name, t.Domain, t.LogoURL, t.ThemePrimaryColor,
		t.Plan, t.IsActive, t.Settings, t.UpdatedAt)
	if pgCode(err) == codeUniqueViolation {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the tenant row and stages tenant.deleted in the same
// transaction. Webhooks go with the row via FK cascade; the other
// services react to the event.
func (r *TenantRepository) Delete(ctx context.Context, id uuid.UUID, stream string, env event.Envelope) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete tenant: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return enqueueEvent(ctx, tx, stream, env)
	})
}
