package auth

import (
	"context"
	"testing"
	"time"

	"chatgo/internal/config"

	"github.com/stretchr/testify/require"
)

type fakeBlacklist struct {
	revoked map[string]bool
}

func (f *fakeBlacklist) Add(ctx context.Context, jti string, expiry time.Time) error {
	if f.revoked == nil {
		f.revoked = make(map[string]bool)
	}
	f.revoked[jti] = true
	return nil
}

func (f *fakeBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	return f.revoked[jti], nil
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecretKey: "test-secret",
		JWTExpiry:    time.Minute,
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	cfg := testAuthConfig()

	token, err := GenerateToken(42, "alice", cfg)
	require.NoError(t, err)

	claims, err := ValidateToken(context.Background(), token, cfg.JWTSecretKey, nil)
	require.NoError(t, err)
	require.Equal(t, uint(42), claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.NotEmpty(t, claims.ID)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	cfg := testAuthConfig()

	token, err := GenerateToken(42, "alice", cfg)
	require.NoError(t, err)

	_, err = ValidateToken(context.Background(), token, "another-secret", nil)
	require.Error(t, err)
}

func TestValidateTokenRejectsRevoked(t *testing.T) {
	cfg := testAuthConfig()
	blacklist := &fakeBlacklist{}

	token, err := GenerateToken(42, "alice", cfg)
	require.NoError(t, err)

	claims, err := ValidateToken(context.Background(), token, cfg.JWTSecretKey, blacklist)
	require.NoError(t, err)

	require.NoError(t, blacklist.Add(context.Background(), claims.ID, claims.ExpiresAt.Time))

	_, err = ValidateToken(context.Background(), token, cfg.JWTSecretKey, blacklist)
	require.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", hash)

	require.True(t, CheckPasswordHash("hunter2", hash))
	require.False(t, CheckPasswordHash("hunter3", hash))
}
