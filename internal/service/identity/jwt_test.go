package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTProvider_VerifyCredential(t *testing.T) {
	t.Parallel()

	provider := NewJWTProvider(testSecret, nil, nil)
	ctx := context.Background()

	now := time.Now()
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":   "client-1",
		"email": "client@example.com",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})

	principal, err := provider.VerifyCredential(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "client-1", principal.SubjectID)
	require.Equal(t, "client@example.com", principal.Email)
}

func TestJWTProvider_VerifyCredentialRejects(t *testing.T) {
	t.Parallel()

	provider := NewJWTProvider(testSecret, nil, nil)
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage token", token: "not-a-jwt"},
		{
			name: "wrong secret",
			token: signToken(t, "other-secret", jwt.MapClaims{
				"sub": "client-1",
				"exp": now.Add(time.Hour).Unix(),
			}),
		},
		{
			name: "expired token",
			token: signToken(t, testSecret, jwt.MapClaims{
				"sub": "client-1",
				"exp": now.Add(-time.Hour).Unix(),
			}),
		},
		{
			name: "missing subject",
			token: signToken(t, testSecret, jwt.MapClaims{
				"email": "client@example.com",
				"exp":   now.Add(time.Hour).Unix(),
			}),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := provider.VerifyCredential(ctx, tc.token)
			require.ErrorIs(t, err, domain.ErrUnauthenticated)
		})
	}
}

func TestJWTProvider_Role(t *testing.T) {
	t.Parallel()

	provider := NewJWTProvider(testSecret, map[string]string{
		"operator-1": domain.RoleCashier,
		"operator-2": domain.RoleAdmin,
	}, nil)
	ctx := context.Background()

	role, err := provider.Role(ctx, "operator-1")
	require.NoError(t, err)
	require.Equal(t, domain.RoleCashier, role)

	role, err = provider.Role(ctx, "operator-2")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, role)

	// Неизвестный субъект по умолчанию — клиент.
	role, err = provider.Role(ctx, "somebody-else")
	require.NoError(t, err)
	require.Equal(t, domain.RoleClient, role)
}

func TestMockProvider(t *testing.T) {
	t.Parallel()

	mock := NewMockProvider().Allow("token-1", "cashier-1", domain.RoleCashier)
	ctx := context.Background()

	principal, err := mock.VerifyCredential(ctx, "token-1")
	require.NoError(t, err)
	require.Equal(t, "cashier-1", principal.SubjectID)

	_, err = mock.VerifyCredential(ctx, "unknown")
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	role, err := mock.Role(ctx, "cashier-1")
	require.NoError(t, err)
	require.Equal(t, domain.RoleCashier, role)

	require.Equal(t, 2, mock.VerifyCalls)
	require.Equal(t, 1, mock.RoleCalls)
}
