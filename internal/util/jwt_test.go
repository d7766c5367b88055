package util

import (
	"testing"
	"time"

	"edulink_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	user := &model.User{
		Email: "alice@test.dev",
		Name:  "Alice",
		Role:  model.Student,
	}

	token, err := GenerateJWT(user, "test-secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "alice@test.dev", claims.Email)
	assert.Equal(t, model.Student, claims.Role)
}

func TestParseJWTRejectsWrongSecret(t *testing.T) {
	user := &model.User{Email: "alice@test.dev", Role: model.Student}

	token, err := GenerateJWT(user, "right-secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT(token, "wrong-secret")
	assert.Error(t, err)
}

func TestParseJWTRejectsExpired(t *testing.T) {
	user := &model.User{Email: "alice@test.dev", Role: model.Student}

	token, err := GenerateJWT(user, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(token, "secret")
	assert.Error(t, err)
}
