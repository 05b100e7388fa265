package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksy/booksy-server/internal/domain"
)

var fastParams = Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPasswordWith("correct horse battery", fastParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"))

	assert.True(t, VerifyPassword(hash, "correct horse battery"))
	assert.False(t, VerifyPassword(hash, "wrong horse battery"))
}

func TestHashPassword_Rejects(t *testing.T) {
	_, err := HashPasswordWith("", fastParams)
	assert.Error(t, err)

	_, err = HashPasswordWith(strings.Repeat("x", maxPasswordLength+1), fastParams)
	assert.Error(t, err)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	for _, h := range []string{"", "plain", "$argon2i$v=19$m=1,t=1,p=1$AA$AA", "$argon2id$v=1$m=1,t=1,p=1$AA$AA"} {
		assert.False(t, VerifyPassword(h, "pw"), h)
	}
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "meta")

	key, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, key, keyBytesSize)

	info, err := os.Stat(filepath.Join(dir, KeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestLoadOrGenerateKey_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, KeyFile), []byte("zz"), 0o600))

	_, err := LoadOrGenerateKey(dir)
	assert.Error(t, err)
}

func newTokenService(t *testing.T, access time.Duration) *TokenService {
	t.Helper()
	key, err := LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	svc, err := NewTokenService(key, access, time.Hour)
	require.NoError(t, err)
	return svc
}

func TestAccessToken_RoundTrip(t *testing.T) {
	svc := newTokenService(t, time.Minute)
	user := &domain.User{Email: "reader@example.com", Role: domain.RoleMember}
	user.ID = "user-1"

	token, err := svc.GenerateAccessToken(user, "session-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	claims, err := svc.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "reader@example.com", claims.Email)
	assert.Equal(t, "member", claims.Role)
	assert.Equal(t, "session-1", claims.SessionID)
}

func TestAccessToken_Expired(t *testing.T) {
	svc := newTokenService(t, -time.Minute)
	user := &domain.User{}
	user.ID = "user-1"

	token, err := svc.GenerateAccessToken(user, "s")
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(token)
	assert.Error(t, err)
}

func TestAccessToken_WrongKey(t *testing.T) {
	a := newTokenService(t, time.Minute)
	b := newTokenService(t, time.Minute)
	user := &domain.User{}
	user.ID = "user-1"

	token, err := a.GenerateAccessToken(user, "s")
	require.NoError(t, err)

	_, err = b.VerifyAccessToken(token)
	assert.Error(t, err)
}

func TestNewTokenService_KeyLength(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Minute, time.Hour)
	assert.Error(t, err)
}

func TestRefreshToken(t *testing.T) {
	svc := newTokenService(t, time.Minute)

	a, err := svc.GenerateRefreshToken()
	require.NoError(t, err)
	b, err := svc.GenerateRefreshToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, HashRefreshToken(a), 64)
	assert.Equal(t, HashRefreshToken(a), HashRefreshToken(a))
	assert.NotEqual(t, HashRefreshToken(a), HashRefreshToken(b))
}
