package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueParseRoundTrip(t *testing.T) {
	m, err := NewManager("test-secret", "HS512", 24)
	require.NoError(t, err)

	userID := uuid.New()
	tenantID := uuid.New()

	token, err := m.Issue(userID, tenantID, "admin")
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, tenantID, claims.TenantID)
	assert.Equal(t, "admin", claims.UserType)
	assert.True(t, claims.IsAdmin())
	assert.True(t, claims.AdminOf(tenantID))
	assert.False(t, claims.AdminOf(uuid.New()))
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer, err := NewManager("secret-a", "HS512", 24)
	require.NoError(t, err)
	verifier, err := NewManager("secret-b", "HS512", 24)
	require.NoError(t, err)

	token, err := issuer.Issue(uuid.New(), uuid.New(), "user")
	require.NoError(t, err)

	_, err = verifier.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m, err := NewManager("test-secret", "HS512", -1)
	require.NoError(t, err)

	token, err := m.Issue(uuid.New(), uuid.New(), "user")
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsAlgorithmMismatch(t *testing.T) {
	hs256, err := NewManager("test-secret", "HS256", 24)
	require.NoError(t, err)
	hs512, err := NewManager("test-secret", "HS512", 24)
	require.NoError(t, err)

	token, err := hs256.Issue(uuid.New(), uuid.New(), "user")
	require.NoError(t, err)

	_, err = hs512.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsUnsignedToken(t *testing.T) {
	m, err := NewManager("test-secret", "HS512", 24)
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":       uuid.NewString(),
		"tenant_id": uuid.NewString(),
		"user_type": "admin",
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewManagerRejectsNonHMAC(t *testing.T) {
	_, err := NewManager("test-secret", "RS256", 24)
	assert.Error(t, err)

	_, err = NewManager("test-secret", "bogus", 24)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)

	assert.True(t, VerifyPassword("s3cret!", hash))
	assert.False(t, VerifyPassword("wrong", hash))
}
