// Package jwt выпускает и проверяет workspace access tokens: токен
// привязывает участника (actor) к конкретному workspace.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken токен не прошел проверку подписи или срока действия
var ErrInvalidToken = errors.New("invalid workspace token")

// Claims claims workspace access token
type Claims struct {
	WorkspaceID string `json:"workspace_id"`
	ActorID     string `json:"actor_id"`
	jwt.RegisteredClaims
}

// Service provides workspace token generation and validation
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService creates a new token service
// secret should be a cryptographically secure random string
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// GenerateToken creates a signed access token for an actor in a workspace
func (s *Service) GenerateToken(workspaceID, actorID string) (string, error) {
	now := time.Now()

	claims := Claims{
		WorkspaceID: workspaceID,
		ActorID:     actorID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign workspace token: %w", err)
	}

	return signed, nil
}

// ValidateToken validates and parses a workspace access token
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.WorkspaceID == "" {
		return nil, fmt.Errorf("%w: missing workspace_id claim", ErrInvalidToken)
	}

	return claims, nil
}
