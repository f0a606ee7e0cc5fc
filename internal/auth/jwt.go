// Package auth issues and verifies the platform's bearer tokens and
// hashes credentials. Claims are deliberately minimal: subject,
// tenant, role, expiry. Permission bits live in the user store, not
// in the token.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers every verification failure: bad signature,
// expired, malformed ids. Callers map it to 401 without detail.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the verified identity attached to a request.
type Claims struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	UserType string
}

func (c Claims) IsAdmin() bool {
	return c.UserType == "admin"
}

// AdminOf reports whether the caller administers the given tenant.
// Cross-tenant access is always denied, admin or not.
func (c Claims) AdminOf(tenantID uuid.UUID) bool {
	return c.IsAdmin() && c.TenantID == tenantID
}

type tokenClaims struct {
	TenantID string `json:"tenant_id"`
	UserType string `json:"user_type"`
	jwt.RegisteredClaims
}

// Manager signs and parses tokens with a shared HMAC secret.
type Manager struct {
	secret []byte
	method jwt.SigningMethod
	expiry time.Duration
}

func NewManager(secret, algorithm string, expireHours int) (*Manager, error) {
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("algorithm %q is not an HMAC method", algorithm)
	}
	return &Manager{
		secret: []byte(secret),
		method: method,
		expiry: time.Duration(expireHours) * time.Hour,
	}, nil
}

// Issue mints a token for a user.
func (m *Manager) Issue(userID, tenantID uuid.UUID, userType string) (string, error) {
	claims := tokenClaims{
		TenantID: tenantID.String(),
		UserType: userType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.expiry)),
		},
	}
	token, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Parse verifies a raw token and extracts the claims.
func (m *Manager) Parse(raw string) (Claims, error) {
	var tc tokenClaims
	token, err := jwt.ParseWithClaims(raw, &tc, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(tc.Subject)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	tenantID, err := uuid.Parse(tc.TenantID)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	return Claims{UserID: userID, TenantID: tenantID, UserType: tc.UserType}, nil
}
