package auth

import (
	"regexp"
	"testing"
	"time"

	"github.com/sahilchouksey/coursemart-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestDefaultPasswordPolicy(t *testing.T) {
	assert.Empty(t, DefaultPasswordPolicy("Secret1"))

	cases := map[string]string{
		"Se1":     "at least 6 characters",
		"secret1": "uppercase",
		"SECRET1": "lowercase",
		"Secrets": "number",
	}
	for pw, want := range cases {
		problems := DefaultPasswordPolicy(pw)
		require.NotEmpty(t, problems, pw)
		assert.Contains(t, problems[0], want, pw)
	}
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("123456")
	require.NoError(t, err)
	assert.NotEqual(t, "123456", hash)

	assert.NoError(t, h.Compare(hash, "123456"))
	assert.ErrorIs(t, h.Compare(hash, "654321"), ErrPasswordMismatch)

	other, err := h.Hash("123456")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "hashes must be salted")
}

func TestGenerateOTP(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 150)
}

func TestJWTManager_IssueAndValidate(t *testing.T) {
	m := NewJWTManager(JWTConfig{
		Secret:        "test-secret",
		Expiry:        time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "coursemart-test",
	})
	user := &model.User{ID: 7, Email: "ann@x.com", Role: model.RoleInstructor, TokenVersion: 2}

	pair, err := m.IssueTokenPair(user)
	require.NoError(t, err)
	assert.Equal(t, 3600, pair.ExpiresIn)

	claims, err := m.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, model.RoleInstructor, claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.Equal(t, 2, claims.TokenVersion)

	refresh, err := m.ValidateToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, refresh.TokenType)
	assert.NotEqual(t, claims.ID, refresh.ID)
}

func TestJWTManager_RejectsForeignTokens(t *testing.T) {
	issuer := NewJWTManager(JWTConfig{Secret: "a", Expiry: time.Hour, RefreshExpiry: time.Hour, Issuer: "x"})
	verifier := NewJWTManager(JWTConfig{Secret: "b", Expiry: time.Hour, RefreshExpiry: time.Hour, Issuer: "x"})

	pair, err := issuer.IssueTokenPair(&model.User{ID: 1, Role: model.RoleStudent})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager(JWTConfig{Secret: "a", Expiry: -time.Minute, RefreshExpiry: time.Hour, Issuer: "x"})

	pair, err := m.IssueTokenPair(&model.User{ID: 1, Role: model.RoleStudent})
	require.NoError(t, err)

	_, err = m.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
