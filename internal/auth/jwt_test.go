package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ordersync/internal/common"
)

func TestUserIDFromToken(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("user-123", []byte("secret"), time.Hour)
	require.NoError(t, err)

	id, err := UserIDFromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", id)
}

func TestUserIDFromToken_SubjectFallback(t *testing.T) {
	t.Parallel()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "42"}).SignedString([]byte("k"))
	require.NoError(t, err)

	id, err := UserIDFromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestUserIDFromToken_NoClaim(t *testing.T) {
	t.Parallel()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = UserIDFromToken(tok)
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestUserIDFromToken_Malformed(t *testing.T) {
	t.Parallel()

	_, err := UserIDFromToken("not.a.jwt")
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestSession(t *testing.T) {
	t.Parallel()

	s := NewSession()
	assert.Empty(t, s.Token())
	assert.False(t, s.Expired(time.Now()))

	tok, err := GenerateToken("u1", []byte("k"), time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.SetToken(tok))
	assert.Equal(t, tok, s.Token())
	assert.Equal(t, "u1", s.UserID())
	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.Expired(time.Now().Add(2*time.Hour)))

	require.Error(t, s.SetToken("garbage"))
	assert.Equal(t, tok, s.Token(), "bad token keeps the previous session")

	s.Clear()
	assert.Empty(t, s.Token())
	assert.Empty(t, s.UserID())
}
