package clients

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"booking-system/internal/domain/user"
)

// permissionMemoTTL bounds how stale a remotely read permission set
// may be. Short on purpose: a revoked permission must bite quickly.
const permissionMemoTTL = 60 * time.Second

type UserClient struct {
	http *resty.Client
	memo *gocache.Cache
}

func NewUserClient(baseURL string) *UserClient {
	return &UserClient{
		http: newRestyClient(baseURL),
		memo: gocache.New(permissionMemoTTL, 2*permissionMemoTTL),
	}
}

func (c *UserClient) Get(ctx context.Context, id uuid.UUID) (user.User, error) {
	var u user.User
	resp, err := authorized(ctx, c.http).
		SetResult(&u).
		Get("/users/" + id.String())
	if err := classify(resp, err); err != nil {
		return user.User{}, err
	}
	return u, nil
}

// GetMemoized serves permission checks. JWT claims carry no permission
// bits, so resource and booking writes would otherwise hit the user
// service on every request.
func (c *UserClient) GetMemoized(ctx context.Context, id uuid.UUID) (user.User, error) {
	if cached, ok := c.memo.Get(id.String()); ok {
		return cached.(user.User), nil
	}
	u, err := c.Get(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	c.memo.SetDefault(id.String(), u)
	return u, nil
}
