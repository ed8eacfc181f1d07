package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techimanshu8/flipkart/pkg/model"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestVerifyToken(t *testing.T) {
	v := NewTokenVerifier("test-secret")

	token := signToken(t, "test-secret", jwt.MapClaims{
		"user_id": "u1",
		"role":    "seller",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	actor, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", actor.ID)
	assert.Equal(t, model.RoleSeller, actor.Role)
}

func TestVerifyTokenRejections(t *testing.T) {
	v := NewTokenVerifier("test-secret")

	cases := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", signToken(t, "other-secret", jwt.MapClaims{"user_id": "u1", "role": "customer"})},
		{"expired", signToken(t, "test-secret", jwt.MapClaims{
			"user_id": "u1", "role": "customer", "exp": time.Now().Add(-time.Hour).Unix(),
		})},
		{"missing user", signToken(t, "test-secret", jwt.MapClaims{"role": "customer"})},
		{"unknown role", signToken(t, "test-secret", jwt.MapClaims{"user_id": "u1", "role": "superuser"})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(tc.token)
			assert.ErrorIs(t, err, model.ErrForbidden)
		})
	}
}
