// Package handler exposes the services over HTTP: chi routers, render
// responses, and the single place where service errors become status
// codes. Handlers decode, delegate, encode; no business rules live
// here.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"booking-system/internal/auth"
	bookings "booking-system/internal/bookings/service"
	"booking-system/internal/domain/booking"
	resources "booking-system/internal/resources/service"
	tenants "booking-system/internal/tenants/service"
	users "booking-system/internal/users/service"
)

func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// detail renders the uniform non-conflict error body.
func detail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"detail": msg})
}

// conflictResponse is the 409 body of a blocked admission.
type conflictResponse struct {
	Success   bool               `json:"success"`
	Error     string             `json:"error"`
	Message   string             `json:"message"`
	Conflicts []booking.Conflict `json:"conflicts"`
}

// respondError folds a service error into its HTTP shape. Conflicting
// admissions get the structured 409 body; everything else renders
// {"detail": ...}. Unknown errors are logged and masked as 500.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var conflict *bookings.ConflictError
	if errors.As(err, &conflict) {
		respond(w, r, http.StatusConflict, conflictResponse{
			Error:     "conflict",
			Message:   "the requested time overlaps existing bookings",
			Conflicts: conflict.Conflicts,
		})
		return
	}
	if reason, ok := validationReason(err); ok {
		detail(w, r, http.StatusUnprocessableEntity, reason)
		return
	}

	switch {
	case errors.Is(err, users.ErrInvalidCredentials):
		detail(w, r, http.StatusUnauthorized, "invalid credentials")
	case isNotFound(err):
		detail(w, r, http.StatusNotFound, err.Error())
	case isForbidden(err):
		detail(w, r, http.StatusForbidden, "forbidden")
	case isTaken(err):
		detail(w, r, http.StatusConflict, err.Error())
	case isDependency(err):
		detail(w, r, http.StatusServiceUnavailable, "dependency unavailable")
	default:
		logger.Error("unhandled service error",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		detail(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func validationReason(err error) (string, bool) {
	var (
		tv *tenants.ValidationError
		uv *users.ValidationError
		rv *resources.ValidationError
		bv *bookings.ValidationError
	)
	switch {
	case errors.As(err, &tv):
		return tv.Reason, true
	case errors.As(err, &uv):
		return uv.Reason, true
	case errors.As(err, &rv):
		return rv.Reason, true
	case errors.As(err, &bv):
		return bv.Reason, true
	}
	return "", false
}

func isNotFound(err error) bool {
	return errorsIsAny(err,
		tenants.ErrTenantNotFound, tenants.ErrWebhookNotFound,
		users.ErrUserNotFound, users.ErrTenantNotFound,
		resources.ErrCategoryNotFound, resources.ErrResourceNotFound,
		bookings.ErrBookingNotFound, bookings.ErrResourceNotFound)
}

func isForbidden(err error) bool {
	return errorsIsAny(err,
		tenants.ErrForbidden, users.ErrForbidden,
		resources.ErrForbidden, bookings.ErrForbidden)
}

func isTaken(err error) bool {
	return errorsIsAny(err,
		tenants.ErrDomainTaken, users.ErrEmailTaken, resources.ErrCategoryInUse)
}

func isDependency(err error) bool {
	return errorsIsAny(err,
		users.ErrDependency, resources.ErrDependency, bookings.ErrDependency)
}

func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func decode(r *http.Request, v any) error {
	return render.DecodeJSON(r.Body, v)
}

// mustClaims fetches the verified identity; Middleware guarantees it
// on protected routes, so a miss means a wiring bug and renders 401.
func mustClaims(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		detail(w, r, http.StatusUnauthorized, "missing authorization")
	}
	return claims, ok
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

func queryString(r *http.Request, key string) *string {
	if v := r.URL.Query().Get(key); v != "" {
		return &v
	}
	return nil
}

func queryBool(r *http.Request, key string) *bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func queryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// queryTime accepts RFC3339 instants or bare dates (UTC midnight).
func queryTime(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
