package auth_test

import (
	"testing"
	"time"

	"github.com/campusportal/go-auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClockedTokenService(clock *fakeClock) auth.TokenService {
	return auth.NewTokenService([]byte(testSigningKey), "campusportal",
		auth.WithClock(clock.Now),
		auth.WithTokenLogger(testLogger{}),
	)
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	clock := newFakeClock()
	service := newClockedTokenService(clock)

	token, err := service.Issue("user-123", auth.DefaultSessionTTL, auth.PurposeSession)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.Verify(token)
	require.NoError(t, err)

	assert.Equal(t, "user-123", claims.UserID())
	assert.Equal(t, auth.PurposeSession, claims.Purpose)
	assert.Equal(t, "campusportal", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, clock.Now().Equal(claims.Issued()), "issued at %s", claims.Issued())
	assert.True(t, clock.Now().Add(24*time.Hour).Equal(claims.Expires()), "expires at %s", claims.Expires())
}

func TestTokenService_IssueIsUnique(t *testing.T) {
	service := newClockedTokenService(newFakeClock())

	first, err := service.Issue("user-123", time.Minute, auth.PurposeSession)
	require.NoError(t, err)
	second, err := service.Issue("user-123", time.Minute, auth.PurposeSession)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenService_IssueRejectsBadInput(t *testing.T) {
	service := newClockedTokenService(newFakeClock())

	tests := []struct {
		name    string
		subject string
		ttl     time.Duration
	}{
		{name: "empty subject", subject: "", ttl: time.Minute},
		{name: "zero ttl", subject: "user-123", ttl: 0},
		{name: "negative ttl", subject: "user-123", ttl: -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := service.Issue(tt.subject, tt.ttl, auth.PurposeSession)
			assert.Empty(t, token)
			assert.True(t, auth.IsCode(err, auth.CodeInternal), "got %v", err)
		})
	}

	t.Run("missing signing key", func(t *testing.T) {
		keyless := auth.NewTokenService(nil, "campusportal")
		_, err := keyless.Issue("user-123", time.Minute, auth.PurposeSession)
		assert.True(t, auth.IsCode(err, auth.CodeInternal), "got %v", err)
	})
}

func TestTokenService_VerifyExpiry(t *testing.T) {
	clock := newFakeClock()
	service := newClockedTokenService(clock)

	token, err := service.Issue("user-123", auth.DefaultResetTTL, auth.PurposeReset)
	require.NoError(t, err)

	clock.Advance(119 * time.Second)
	_, err = service.Verify(token)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = service.Verify(token)
	require.Error(t, err)
	assert.True(t, auth.IsTokenExpiredError(err), "got %v", err)
	assert.Equal(t, auth.CodeTokenExpired, auth.ErrorCode(err))
}

func TestTokenService_VerifyFailures(t *testing.T) {
	clock := newFakeClock()
	service := newClockedTokenService(clock)

	valid, err := service.Issue("user-123", time.Hour, auth.PurposeSession)
	require.NoError(t, err)

	otherKey, err := auth.NewTokenService([]byte("another-key"), "campusportal", auth.WithClock(clock.Now)).
		Issue("user-123", time.Hour, auth.PurposeSession)
	require.NoError(t, err)

	otherIssuer, err := auth.NewTokenService([]byte(testSigningKey), "elsewhere", auth.WithClock(clock.Now)).
		Issue("user-123", time.Hour, auth.PurposeSession)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    "campusportal",
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    "campusportal",
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}).SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "user-123",
		Issuer:  "campusportal",
	}).SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		code  string
	}{
		{name: "empty", token: "", code: auth.CodeTokenMalformed},
		{name: "garbage", token: "not-a-token", code: auth.CodeTokenMalformed},
		{name: "tampered payload", token: valid[:len(valid)-4] + "abcd", code: auth.CodeTokenBadSignature},
		{name: "other signing key", token: otherKey, code: auth.CodeTokenBadSignature},
		{name: "none algorithm", token: unsigned, code: auth.CodeTokenBadSignature},
		{name: "unexpected hmac size", token: hs512, code: auth.CodeTokenBadSignature},
		{name: "other issuer", token: otherIssuer, code: auth.CodeTokenMalformed},
		{name: "no expiry", token: noExpiry, code: auth.CodeTokenMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.Verify(tt.token)
			assert.Nil(t, claims)
			require.Error(t, err)
			assert.Equal(t, tt.code, auth.ErrorCode(err), "got %v", err)
		})
	}
}
