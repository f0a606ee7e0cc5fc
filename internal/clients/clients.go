// Package clients holds the synchronous HTTP clients the services use
// to read each other. Every call forwards the caller's bearer token,
// so downstream authorization stays in the owning service.
package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"booking-system/internal/auth"
)

const requestTimeout = 10 * time.Second

var (
	// ErrNotFound mirrors a downstream 404.
	ErrNotFound = errors.New("not found upstream")
	// ErrDenied mirrors a downstream 401/403.
	ErrDenied = errors.New("denied upstream")
	// ErrUnavailable is a transport failure or downstream 5xx; callers
	// surface it as dependency_unavailable.
	ErrUnavailable = errors.New("dependency unavailable")
)

func newRestyClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("Accept", "application/json")
}

// authorized builds a request carrying the caller's token when the
// context has one.
func authorized(ctx context.Context, c *resty.Client) *resty.Request {
	req := c.R().SetContext(ctx)
	if token := auth.TokenFromContext(ctx); token != "" {
		req.SetAuthToken(token)
	}
	return req
}

// classify folds a resty outcome into the package sentinels.
func classify(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	code := resp.StatusCode()
	switch {
	case code < http.StatusBadRequest:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrDenied
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", ErrUnavailable, code)
	default:
		return fmt.Errorf("upstream status %d: %s", code, resp.String())
	}
}
