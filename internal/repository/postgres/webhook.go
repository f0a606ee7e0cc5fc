package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"booking-system/internal/domain/tenant"
)

const webhookColumns = `id, tenant_id, url, events, secret, is_active, created_at`

type WebhookRepository struct {
	db *pgxpool.Pool
}

func NewWebhookRepository(db *pgxpool.Pool) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func scanWebhook(row rowScanner) (tenant.Webhook, error) {
	var w tenant.Webhook
	err := row.Scan(
		&w.ID,
		&w.TenantID,
		&w.URL,
		&w.Events,
		&w.Secret,
		&w.IsActive,
		&w.CreatedAt,
	)
	return w, err
}

func (r *WebhookRepository) Create(ctx context.Context, w tenant.Webhook) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO webhooks (id, tenant_id, url, events, secret, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.TenantID, w.URL, w.Events, w.Secret, w.IsActive, w.CreatedAt)
	if pgCode(err) == codeForeignKeyViolation {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert webhook: %w", err)
	}
	return nil
}

func (r *WebhookRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (tenant.Webhook, error) {
	w, err := scanWebhook(r.db.QueryRow(ctx,
		`SELECT `+webhookColumns+` FROM webhooks WHERE id = $1 AND tenant_id = $2`,
		id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return tenant.Webhook{}, ErrNotFound
	}
	if err != nil {
		return tenant.Webhook{}, fmt.Errorf("get webhook: %w", err)
	}
	return w, nil
}

func (r *WebhookRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]tenant.Webhook, error) {
	return r.list(ctx,
		`SELECT `+webhookColumns+` FROM webhooks WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID)
}

// ListActiveByTenant feeds event dispatch; subscription filtering
// happens in the service.
func (r *WebhookRepository) ListActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]tenant.Webhook, error) {
	return r.list(ctx,
		`SELECT `+webhookColumns+` FROM webhooks WHERE tenant_id = $1 AND is_active ORDER BY created_at`,
		tenantID)
}

func (r *WebhookRepository) list(ctx context.Context, query string, args ...any) ([]tenant.Webhook, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []tenant.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func (r *WebhookRepository) Update(ctx context.Context, w tenant.Webhook) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE webhooks
		SET url = $3, events = $4, secret = $5, is_active = $6
		WHERE id = $1 AND tenant_id = $2`,
		w.ID, w.TenantID, w.URL, w.Events, w.Secret, w.IsActive)
	if err != nil {
		return fmt.Errorf("update webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *WebhookRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM webhooks WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
