package clients

import (
	"context"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"booking-system/internal/domain/tenant"
)

type TenantClient struct {
	http *resty.Client
}

func NewTenantClient(baseURL string) *TenantClient {
	return &TenantClient{http: newRestyClient(baseURL)}
}

func (c *TenantClient) Get(ctx context.Context, id uuid.UUID) (tenant.Tenant, error) {
	var t tenant.Tenant
	resp, err := authorized(ctx, c.http).
		SetResult(&t).
		Get("/tenants/" + id.String())
	if err := classify(resp, err); err != nil {
		return tenant.Tenant{}, err
	}
	return t, nil
}

func (c *TenantClient) GetSettings(ctx context.Context, id uuid.UUID) (tenant.Settings, error) {
	var s tenant.Settings
	resp, err := authorized(ctx, c.http).
		SetResult(&s).
		Get("/tenants/" + id.String() + "/settings")
	if err := classify(resp, err); err != nil {
		return tenant.Settings{}, err
	}
	return s, nil
}
