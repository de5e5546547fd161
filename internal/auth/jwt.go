// Package auth holds the operator session token the remote issued and reads
// the user id out of it for audit entries. The client never holds the
// signing key, so claims are read without verifying the signature; the
// remote verifies every request.
package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/ordersync/internal/common"
)

// Claims are the registered claims plus the user id the remote puts in its
// tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id,omitempty"`
}

// GenerateToken signs a token for userID. The client uses it only in tests
// and for local development against a stub remote.
func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseClaims decodes the claims of tokenString without checking its
// signature or expiry.
func ParseClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	return claims, nil
}

// UserIDFromToken returns the user_id claim, falling back to sub.
func UserIDFromToken(tokenString string) (string, error) {
	claims, err := ParseClaims(tokenString)
	if err != nil {
		return "", err
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", fmt.Errorf("%w: no user id claim", common.ErrInvalidToken)
}

// Session is the current token, safe for concurrent use.
type Session struct {
	mu     sync.RWMutex
	token  string
	userID string
	expiry *time.Time
}

func NewSession() *Session {
	return &Session{}
}

// SetToken replaces the token. An unreadable token is rejected and the
// previous one is kept.
func (s *Session) SetToken(token string) error {
	claims, err := ParseClaims(token)
	if err != nil {
		return err
	}
	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.userID = userID
	s.expiry = nil
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		s.expiry = &exp
	}
	return nil
}

// Clear forgets the token.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.userID, s.expiry = "", "", nil
}

// Token returns the bearer token, or "" without a session.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// UserID returns the user the token was issued to.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Expired reports whether the token carries an expiry that has passed.
func (s *Session) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiry != nil && !now.Before(*s.expiry)
}
