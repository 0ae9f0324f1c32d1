package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_GenerateValidateToken(t *testing.T) {
	svc := NewService("test-secret", 15*time.Minute)

	token, err := svc.GenerateToken("board-42", "actor-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "board-42", claims.WorkspaceID)
	assert.Equal(t, "actor-1", claims.ActorID)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestService_ValidateToken_Expired(t *testing.T) {
	svc := NewService("test-secret", -time.Minute)

	token, err := svc.GenerateToken("board-42", "actor-1")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_ValidateToken_WrongSecret(t *testing.T) {
	token, err := NewService("secret-one", 15*time.Minute).GenerateToken("board-42", "actor-1")
	require.NoError(t, err)

	_, err = NewService("secret-two", 15*time.Minute).ValidateToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_ValidateToken_Malformed(t *testing.T) {
	svc := NewService("test-secret", 15*time.Minute)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-token"},
		{name: "truncated", token: "aaa.bbb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestService_ValidateToken_MissingWorkspaceID(t *testing.T) {
	svc := NewService("test-secret", 15*time.Minute)

	token, err := svc.GenerateToken("", "actor-1")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}
