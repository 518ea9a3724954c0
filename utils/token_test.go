package utils

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJwtRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := JwtGenerate("user-7", "org-9", RoleStaff, time.Hour)
	require.NoError(t, err)

	claims, err := JwtValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.UserId)
	assert.Equal(t, "org-9", claims.OrganizationId)
	assert.Equal(t, RoleStaff, claims.Role)

	t.Setenv("JWT_SECRET", "rotated")
	_, err = JwtValidate(token)
	assert.Error(t, err, "signature from the old secret")
}

func TestJwtValidateRejectsExpiredAndUnsigned(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		UserId:         "u",
		OrganizationId: "o",
		Role:           RoleOwner,
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Minute).Unix()},
	})
	signed, err := expired.SignedString(getJwtSecret())
	require.NoError(t, err)
	_, err = JwtValidate(signed)
	assert.Error(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &JwtCustomClaim{UserId: "u"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = JwtValidate(unsigned)
	assert.Error(t, err)

	_, err = JwtGenerate("u", "o", RoleOwner, 0)
	assert.Error(t, err)
}
