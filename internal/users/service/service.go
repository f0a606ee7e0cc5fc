package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"booking-system/internal/auth"
	"booking-system/internal/clients"
	"booking-system/internal/domain/event"
	"booking-system/internal/domain/user"
	"booking-system/internal/repository/postgres"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrTenantNotFound = errors.New("tenant not found")
	ErrEmailTaken     = errors.New("email already registered for this tenant")
	ErrForbidden      = errors.New("forbidden")
	// ErrInvalidCredentials deliberately hides which part failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDependency         = errors.New("dependency unavailable")
)

// ValidationError carries the caller-facing reason of a 422.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

type Repository interface {
	Create(ctx context.Context, u user.User) error
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetByEmail(ctx context.Context, tenantID uuid.UUID, email string) (user.User, error)
	ListByEmail(ctx context.Context, email string) ([]user.User, error)
	List(ctx context.Context, f postgres.UserFilter) ([]user.User, error)
	Update(ctx context.Context, u user.User) error
	Delete(ctx context.Context, id uuid.UUID, stream string, env event.Envelope) error
	DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// tenantReader is the slice of the tenant client used to check that a
// signup points at a real tenant.
type tenantReader interface {
	Get(ctx context.Context, id uuid.UUID) (tenantRecord, error)
}

// tenantRecord is the thin view the user service needs of a tenant.
type tenantRecord struct {
	ID       uuid.UUID
	IsActive bool
}

// tenantClientAdapter narrows clients.TenantClient to tenantReader.
type tenantClientAdapter struct {
	client *clients.TenantClient
}

func (a tenantClientAdapter) Get(ctx context.Context, id uuid.UUID) (tenantRecord, error) {
	t, err := a.client.Get(ctx, id)
	if err != nil {
		return tenantRecord{}, err
	}
	return tenantRecord{ID: t.ID, IsActive: t.IsActive}, nil
}

type Service struct {
	repo           Repository
	tenants        tenantReader
	tokens         *auth.Manager
	log            *zap.Logger
	deletionStream string
}

func New(repo Repository, tenants *clients.TenantClient, tokens *auth.Manager, logger *zap.Logger, deletionStream string) *Service {
	return &Service{
		repo:           repo,
		tenants:        tenantClientAdapter{client: tenants},
		tokens:         tokens,
		log:            logger,
		deletionStream: deletionStream,
	}
}

// Create registers a profile. Open endpoint: tenants onboard their
// users through it, so the only hard requirements are a real tenant,
// a free address, and a password.
func (s *Service) Create(ctx context.Context, req user.CreateRequest) (user.User, error) {
	if strings.TrimSpace(req.Name) == "" {
		return user.User{}, &ValidationError{Reason: "name is required"}
	}
	if strings.TrimSpace(req.Email) == "" {
		return user.User{}, &ValidationError{Reason: "email is required"}
	}
	if len(req.Password) < 6 {
		return user.User{}, &ValidationError{Reason: "password must have at least 6 characters"}
	}
	if req.Type != "" && req.Type != user.TypeAdmin && req.Type != user.TypeUser {
		return user.User{}, &ValidationError{Reason: fmt.Sprintf("unknown user_type %q", req.Type)}
	}

	if _, err := s.tenants.Get(ctx, req.TenantID); err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return user.User{}, ErrTenantNotFound
		}
		return user.User{}, fmt.Errorf("%w: %v", ErrDependency, err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := user.New(req, hash)
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, postgres.ErrDuplicate) {
			return user.User{}, ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user created",
		zap.String("user_id", u.ID.String()),
		zap.String("tenant_id", u.TenantID.String()),
		zap.String("user_type", string(u.Type)))
	return u, nil
}

// LoginResult carries the minted token alongside the profile.
type LoginResult struct {
	Token string
	User  user.User
}

// Login verifies credentials and mints a bearer token. tenantID is
// optional; without it the address must be unique across tenants.
func (s *Service) Login(ctx context.Context, tenantID *uuid.UUID, email, password string) (LoginResult, error) {
	u, err := s.resolveLoginUser(ctx, tenantID, email)
	if err != nil {
		return LoginResult{}, err
	}
	if !u.IsActive {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !auth.VerifyPassword(password, u.PasswordHash) {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID, u.TenantID, string(u.Type))
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{Token: token, User: u}, nil
}

func (s *Service) resolveLoginUser(ctx context.Context, tenantID *uuid.UUID, email string) (user.User, error) {
	if tenantID != nil {
		u, err := s.repo.GetByEmail(ctx, *tenantID, email)
		if errors.Is(err, postgres.ErrNotFound) {
			return user.User{}, ErrInvalidCredentials
		}
		if err != nil {
			return user.User{}, fmt.Errorf("load user: %w", err)
		}
		return u, nil
	}

	matches, err := s.repo.ListByEmail(ctx, email)
	if err != nil {
		return user.User{}, fmt.Errorf("load user: %w", err)
	}
	switch len(matches) {
	case 0:
		return user.User{}, ErrInvalidCredentials
	case 1:
		return matches[0], nil
	default:
		return user.User{}, &ValidationError{Reason: "email exists under multiple tenants; pass tenant_id"}
	}
}

func (s *Service) Get(ctx context.Context, claims auth.Claims, id uuid.UUID) (user.User, error) {
	u, err := s.get(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if !s.canManage(claims, u) {
		return user.User{}, ErrForbidden
	}
	return u, nil
}

// Me returns the caller's own profile.
func (s *Service) Me(ctx context.Context, claims auth.Claims) (user.User, error) {
	return s.get(ctx, claims.UserID)
}

func (s *Service) List(ctx context.Context, claims auth.Claims, f postgres.UserFilter) ([]user.User, error) {
	if !claims.AdminOf(f.TenantID) {
		return nil, ErrForbidden
	}
	users, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Service) Update(ctx context.Context, claims auth.Claims, id uuid.UUID, req user.UpdateRequest) (user.User, error) {
	u, err := s.get(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if !s.canManage(claims, u) {
		return user.User{}, ErrForbidden
	}
	if !claims.IsAdmin() && (req.Type != nil || req.Permissions != nil || req.IsActive != nil) {
		return user.User{}, ErrForbidden
	}
	if req.Type != nil && *req.Type != user.TypeAdmin && *req.Type != user.TypeUser {
		return user.User{}, &ValidationError{Reason: fmt.Sprintf("unknown user_type %q", *req.Type)}
	}

	u.Apply(req)
	if req.Password != nil {
		if len(*req.Password) < 6 {
			return user.User{}, &ValidationError{Reason: "password must have at least 6 characters"}
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return user.User{}, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, u); err != nil {
		if errors.Is(err, postgres.ErrDuplicate) {
			return user.User{}, ErrEmailTaken
		}
		if errors.Is(err, postgres.ErrNotFound) {
			return user.User{}, ErrUserNotFound
		}
		return user.User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// Delete removes the profile and stages user.deleted in the deleting
// transaction; the booking service cancels the user's active bookings
// when the event arrives.
func (s *Service) Delete(ctx context.Context, claims auth.Claims, id uuid.UUID) error {
	u, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !s.canManage(claims, u) {
		return ErrForbidden
	}

	env, err := event.New(event.UserDeleted, u.TenantID, event.UserDeletedPayload{
		UserID:   u.ID,
		TenantID: u.TenantID,
	})
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, s.deletionStream, env); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.Info("user deleted",
		zap.String("user_id", id.String()),
		zap.String("tenant_id", u.TenantID.String()))
	return nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (user.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, postgres.ErrNotFound) {
		return user.User{}, ErrUserNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// canManage: the tenant's admin, or the user themself. Cross-tenant is
// never allowed.
func (s *Service) canManage(claims auth.Claims, u user.User) bool {
	if claims.TenantID != u.TenantID {
		return false
	}
	return claims.IsAdmin() || claims.UserID == u.ID
}
