package services

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/irgordon/threadvault/api/internal/core/domain"
)

const (
	sessionIssuer  = "threadvault"
	sessionSubject = "viewer"
)

// SessionClaims marks a viewer that has proven the dataset password.
type SessionClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type SessionService struct {
	secret []byte
	ttl    time.Duration
}

var _ domain.SessionManager = (*SessionService)(nil)

// NewSessionService signs sessions with secret. An empty secret is replaced by 32 random
// bytes, so sessions end with the process, as the unlocked state does.
func NewSessionService(secret string, ttl time.Duration) (*SessionService, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
	}
	return &SessionService{secret: key, ttl: ttl}, nil
}

// Issue mints a session token for a viewer that just proved the password.
func (s *SessionService) Issue() (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(s.ttl)

	claims := SessionClaims{
		TokenType: "session",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionSubject,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expires, nil
}

// Validate checks signature, expiry, issuer and token type.
func (s *SessionService) Validate(tokenString string) error {
	if tokenString == "" {
		return domain.ErrSessionRequired
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(sessionIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSessionRequired, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.TokenType != "session" {
		return fmt.Errorf("%w: invalid token claims", domain.ErrSessionRequired)
	}
	return nil
}
