package clients

import (
	"context"

	"github.com/google/uuid"

	"booking-system/internal/domain/tenant"
	"booking-system/pkg/cache"
)

// SettingsProvider resolves a tenant's OrganizationSettings for policy
// decisions: Redis cache first, then the tenant service. There is no
// default fallback; when both are unreachable the caller must refuse
// with dependency_unavailable rather than admit against guessed
// policy.
type SettingsProvider struct {
	cache   *cache.Cache
	tenants *TenantClient
}

func NewSettingsProvider(c *cache.Cache, tenants *TenantClient) *SettingsProvider {
	return &SettingsProvider{cache: c, tenants: tenants}
}

func (p *SettingsProvider) Settings(ctx context.Context, tenantID uuid.UUID) (tenant.Settings, error) {
	key := cache.SettingsKey(tenantID)

	var s tenant.Settings
	if p.cache.GetJSON(ctx, key, &s) {
		return s, nil
	}

	s, err := p.tenants.GetSettings(ctx, tenantID)
	if err != nil {
		return tenant.Settings{}, err
	}
	p.cache.SetJSON(ctx, key, s, p.cache.SettingsTTL())
	return s, nil
}
