package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

func newTestService(t *testing.T, now func() time.Time) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testSecret)
	require.NoError(t, err)
	svc.timeFunc = now
	return svc
}

func TestGenerateAndValidateToken(t *testing.T) {
	t.Parallel()
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, func() time.Time { return fixed })

	token, err := svc.GenerateToken(context.Background(), "newsroom-bot", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "newsroom-bot", claims.Subject)
	assert.Equal(t, fixed.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixed.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestValidateToken(t *testing.T) {
	t.Parallel()
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestService(t, func() time.Time { return fixed })
	token, err := issuer.GenerateToken(context.Background(), "client", time.Hour)
	require.NoError(t, err)

	other, err := NewTokenService("wrong-secret-that-is-long-enough-for-testing")
	require.NoError(t, err)
	other.timeFunc = func() time.Time { return fixed }

	wrongType := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtCustomClaims{
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "client",
			ExpiresAt: jwt.NewNumericDate(fixed.Add(time.Hour)),
		},
	})
	wrongTypeToken, err := wrongType.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name    string
		svc     *TokenService
		token   string
		wantErr error
	}{
		{"expired", newTestService(t, func() time.Time { return fixed.Add(3 * time.Hour) }), token, ErrExpiredToken},
		{"not yet issued window is fine within skew", newTestService(t, func() time.Time { return fixed.Add(-time.Minute) }), token, nil},
		{"wrong secret", other, token, ErrInvalidToken},
		{"malformed", issuer, "not-a-token", ErrInvalidToken},
		{"empty", issuer, "", ErrMissingToken},
		{"wrong type", issuer, wrongTypeToken, ErrInvalidToken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := tc.svc.ValidateToken(context.Background(), tc.token)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestNewTokenServiceRejectsShortSecret(t *testing.T) {
	t.Parallel()
	_, err := NewTokenService("short")
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestGenerateTokenValidation(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, time.Now)
	_, err := svc.GenerateToken(context.Background(), "", time.Hour)
	assert.Error(t, err)
	_, err = svc.GenerateToken(context.Background(), "client", 0)
	assert.Error(t, err)
}
