package clients

import (
	"context"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"booking-system/internal/domain/resource"
)

type ResourceClient struct {
	http *resty.Client
}

func NewResourceClient(baseURL string) *ResourceClient {
	return &ResourceClient{http: newRestyClient(baseURL)}
}

func (c *ResourceClient) Get(ctx context.Context, id uuid.UUID) (resource.Resource, error) {
	var res resource.Resource
	resp, err := authorized(ctx, c.http).
		SetResult(&res).
		Get("/resources/" + id.String())
	if err := classify(resp, err); err != nil {
		return resource.Resource{}, err
	}
	return res, nil
}
