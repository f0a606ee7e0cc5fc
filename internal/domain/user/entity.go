// Package user contains the per-tenant user profile and its
// permission set. Email uniqueness holds within a tenant only; the
// same address may sign up under many tenants.
package user

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	// TypeAdmin manages the tenant: users, resources, settings,
	// webhooks.
	TypeAdmin Type = "admin"
	// TypeUser books resources under the tenant's policy.
	TypeUser Type = "user"
)

// Permissions gate individual capabilities. Admins pass every check
// regardless of the stored flags.
type Permissions struct {
	CanBook            bool `json:"can_book"`
	CanManageResources bool `json:"can_manage_resources"`
	CanManageUsers     bool `json:"can_manage_users"`
	CanViewAllBookings bool `json:"can_view_all_bookings"`
}

// DefaultPermissions for a newly created profile. Admins start able
// to see every booking of the tenant.
func DefaultPermissions(t Type) Permissions {
	return Permissions{CanViewAllBookings: t == TypeAdmin}
}

func (p *Permissions) Scan(value any) error {
	if value == nil {
		*p = Permissions{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Permissions", value)
	}
	return json.Unmarshal(data, p)
}

func (p Permissions) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Metadata is an open JSON bag on the profile.
type Metadata map[string]any

func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Metadata", value)
	}
	return json.Unmarshal(data, m)
}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(map[string]any{})
	}
	return json.Marshal(map[string]any(m))
}

type User struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	TenantID        uuid.UUID   `db:"tenant_id" json:"tenant_id"`
	Name            string      `db:"name" json:"name"`
	Email           string      `db:"email" json:"email"`
	Phone           *string     `db:"phone" json:"phone,omitempty"`
	Type            Type        `db:"user_type" json:"user_type"`
	Department      *string     `db:"department" json:"department,omitempty"`
	IsActive        bool        `db:"is_active" json:"is_active"`
	Permissions     Permissions `db:"permissions" json:"permissions"`
	ProfileMetadata Metadata    `db:"profile_metadata" json:"profile_metadata,omitempty"`
	PasswordHash    string      `db:"password_hash" json:"-"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

type CreateRequest struct {
	TenantID        uuid.UUID    `json:"tenant_id"`
	Name            string       `json:"name"`
	Email           string       `json:"email"`
	Phone           *string      `json:"phone"`
	Type            Type         `json:"user_type"`
	Department      *string      `json:"department"`
	Permissions     *Permissions `json:"permissions"`
	ProfileMetadata Metadata     `json:"profile_metadata"`
	Password        string       `json:"password"`
}

type UpdateRequest struct {
	Name            *string      `json:"name"`
	Email           *string      `json:"email"`
	Phone           *string      `json:"phone"`
	Type            *Type        `json:"user_type"`
	Department      *string      `json:"department"`
	IsActive        *bool        `json:"is_active"`
	Permissions     *Permissions `json:"permissions"`
	ProfileMetadata Metadata     `json:"profile_metadata"`
	Password        *string      `json:"password"`
}

// New builds a user from a signup request and an already-computed
// password hash.
func New(req CreateRequest, passwordHash string) User {
	now := time.Now().UTC()
	userType := req.Type
	if userType == "" {
		userType = TypeUser
	}
	permissions := DefaultPermissions(userType)
	if req.Permissions != nil {
		permissions = *req.Permissions
	}
	return User{
		ID:              uuid.New(),
		TenantID:        req.TenantID,
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Type:            userType,
		Department:      req.Department,
		IsActive:        true,
		Permissions:     permissions,
		ProfileMetadata: req.ProfileMetadata,
		PasswordHash:    passwordHash,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Apply merges an update request into the profile. Password changes
// are handled by the caller, which owns the hashing.
func (u *User) Apply(req UpdateRequest) {
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.Phone != nil {
		u.Phone = req.Phone
	}
	if req.Type != nil {
		u.Type = *req.Type
	}
	if req.Department != nil {
		u.Department = req.Department
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	if req.Permissions != nil {
		u.Permissions = *req.Permissions
	}
	if req.ProfileMetadata != nil {
		u.ProfileMetadata = req.ProfileMetadata
	}
	u.UpdatedAt = time.Now().UTC()
}

func (u User) IsAdmin() bool {
	return u.Type == TypeAdmin
}

func (u User) CanBook() bool {
	return u.IsAdmin() || u.Permissions.CanBook
}

func (u User) CanManageResources() bool {
	return u.IsAdmin() || u.Permissions.CanManageResources
}

func (u User) CanManageUsers() bool {
	return u.IsAdmin() || u.Permissions.CanManageUsers
}

func (u User) CanViewAllBookings() bool {
	return u.IsAdmin() || u.Permissions.CanViewAllBookings
}
