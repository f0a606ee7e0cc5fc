package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Webhook registers an egress endpoint for a subset of event kinds.
// The secret, when set, signs the delivery body and is never rendered
// back to API callers.
type Webhook struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TenantID  uuid.UUID `db:"tenant_id" json:"tenant_id"`
	URL       string    `db:"url" json:"url"`
	Events    []string  `db:"events" json:"events"`
	Secret    *string   `db:"secret" json:"-"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type WebhookCreateRequest struct {
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   *string  `json:"secret"`
	IsActive *bool    `json:"is_active"`
}

type WebhookUpdateRequest struct {
	URL      *string   `json:"url"`
	Events   *[]string `json:"events"`
	Secret   *string   `json:"secret"`
	IsActive *bool     `json:"is_active"`
}

// NewWebhook registers an endpoint for a tenant. Active unless stated
// otherwise.
func NewWebhook(tenantID uuid.UUID, req WebhookCreateRequest) Webhook {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return Webhook{
		ID:        uuid.New(),
		TenantID:  tenantID,
		URL:       req.URL,
		Events:    req.Events,
		Secret:    req.Secret,
		IsActive:  active,
		CreatedAt: time.Now().UTC(),
	}
}

// Apply merges an update request into the webhook.
func (w *Webhook) Apply(req WebhookUpdateRequest) {
	if req.URL != nil {
		w.URL = *req.URL
	}
	if req.Events != nil {
		w.Events = *req.Events
	}
	if req.Secret != nil {
		w.Secret = req.Secret
	}
	if req.IsActive != nil {
		w.IsActive = *req.IsActive
	}
}

// SubscribedTo reports whether the webhook wants the given kind.
func (w Webhook) SubscribedTo(eventType string) bool {
	for _, e := range w.Events {
		if e == eventType {
			return true
		}
	}
	return false
}
