// Package tenant contains the tenant aggregate: the organization
// record, its embedded scheduling settings, and its webhook registry.
package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Plan identifies the commercial tier of a tenant. The platform only
// inspects it for display; no feature gating happens here.
type Plan string

const (
	PlanBasico       Plan = "basico"
	PlanProfissional Plan = "profissional"
	PlanEnterprise   Plan = "enterprise"
)

// Tenant is an organization owning users, categories, resources,
// bookings and webhooks. Nothing it owns survives its deletion; the
// removal is propagated through the deletion stream.
type Tenant struct {
	ID                uuid.UUID `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Domain            string    `db:"domain" json:"domain"`
	LogoURL           *string   `db:"logo_url" json:"logo_url,omitempty"`
	ThemePrimaryColor *string   `db:"theme_primary_color" json:"theme_primary_color,omitempty"`
	Plan              Plan      `db:"plan" json:"plan"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	Settings          Settings  `db:"settings" json:"settings"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

type CreateRequest struct {
	Name              string    `json:"name"`
	Domain            string    `json:"domain"`
	LogoURL           *string   `json:"logo_url"`
	ThemePrimaryColor *string   `json:"theme_primary_color"`
	Plan              Plan      `json:"plan"`
	Settings          *Settings `json:"settings"`
}

type UpdateRequest struct {
	Name              *string `json:"name"`
	Domain            *string `json:"domain"`
	LogoURL           *string `json:"logo_url"`
	ThemePrimaryColor *string `json:"theme_primary_color"`
	Plan              *Plan   `json:"plan"`
	IsActive          *bool   `json:"is_active"`
}

// New builds a tenant from a signup request. Missing settings fall
// back to the platform defaults; a missing plan becomes basico.
func New(req CreateRequest) Tenant {
	now := time.Now().UTC()
	settings := DefaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}
	plan := req.Plan
	if plan == "" {
		plan = PlanBasico
	}
	return Tenant{
		ID:                uuid.New(),
		Name:              req.Name,
		Domain:            req.Domain,
		LogoURL:           req.LogoURL,
		ThemePrimaryColor: req.ThemePrimaryColor,
		Plan:              plan,
		IsActive:          true,
		Settings:          settings,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Apply merges an update request into the tenant.
func (t *Tenant) Apply(req UpdateRequest) {
	if req.Name != nil {
		t.Name = *req.Name
	}
	if req.Domain != nil {
		t.Domain = *req.Domain
	}
	if req.LogoURL != nil {
		t.LogoURL = req.LogoURL
	}
	if req.ThemePrimaryColor != nil {
		t.ThemePrimaryColor = req.ThemePrimaryColor
	}
	if req.Plan != nil {
		t.Plan = *req.Plan
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	t.UpdatedAt = time.Now().UTC()
}
