package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"booking-system/internal/domain/event"
	"booking-system/internal/domain/user"
)

const userColumns = `id, tenant_id, name, email, phone, user_type, department,
	is_active, permissions, profile_metadata, password_hash, created_at, updated_at`

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.TenantID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.Type,
		&u.Department,
		&u.IsActive,
		&u.Permissions,
		&u.ProfileMetadata,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func (r *UserRepository) Create(ctx context.Context, u user.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, tenant_id, name, email, phone, user_type, department,
			is_active, permissions, profile_metadata, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		u.ID, u.TenantID, u.Name, u.Email, u.Phone, u.Type, u.Department,
		u.IsActive, u.Permissions, u.ProfileMetadata, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if pgCode(err) == codeUniqueViolation {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail looks a user up inside one tenant; the same address may
// exist under other tenants.
func (r *UserRepository) GetByEmail(ctx context.Context, tenantID uuid.UUID, email string) (user.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND lower(email) = lower($2)`,
		tenantID, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// ListByEmail finds the address across all tenants. Login without an
// explicit tenant works only when the address is unambiguous.
func (r *UserRepository) ListByEmail(ctx context.Context, email string) ([]user.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1) ORDER BY created_at`,
		email)
	if err != nil {
		return nil, fmt.Errorf("list users by email: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type UserFilter struct {
	TenantID uuid.UUID
	Type     *user.Type
	IsActive *bool
	Search   *string
	Limit    int
	Offset   int
}

func (r *UserRepository) List(ctx context.Context, f UserFilter) ([]user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1`
	args := []any{f.TenantID}

	if f.Type != nil {
		args = append(args, *f.Type)
		query += fmt.Sprintf(" AND user_type = $%d", len(args))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		query += fmt.Sprintf(" AND is_active = $%d", len(args))
	}
	if f.Search != nil && *f.Search != "" {
		args = append(args, "%"+*f.Search+"%")
		query += fmt.Sprintf(" AND (name ILIKE $%d OR email ILIKE $%d)", len(args), len(args))
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
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Update(ctx context.Context, u user.User) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET name = $2, email = $3, phone = $4, user_type = $5, department = $6,
			is_active = $7, permissions = $8, profile_metadata = $9,
			password_hash = $10, updated_at = $11
		WHERE id = $1`,
		u.ID, u.Name, u.Email, u.Phone, u.Type, u.Department,
		u.IsActive, u.Permissions, u.ProfileMetadata, u.PasswordHash, u.UpdatedAt)
	if pgCode(err) == codeUniqueViolation {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the user and stages user.deleted atomically.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID, stream string, env event.Envelope) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return enqueueEvent(ctx, tx, stream, env)
	})
}

// DeleteByTenant is the tenant.deleted cascade; no per-row events.
func (r *UserRepository) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("delete tenant users: %w", err)
	}
	return tag.RowsAffected(), nil
}
