package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodedErrorKeepsOuterCode(t *testing.T) {
	inner := codedError(CodeTokenExpired, nil, "token is expired")
	outer := unauthorizedError(inner, "reason", "invalid_token")

	assert.Equal(t, CodeUnauthorized, ErrorCode(outer))
	assert.Equal(t, CodeTokenExpired, ErrorCode(inner))
}

func TestCodedErrorWrapsPlainCause(t *testing.T) {
	cause := errors.New("disk full")
	err := internalError(cause, "write failed", "path", "/tmp/x")

	assert.Equal(t, CodeInternal, ErrorCode(err))
	assert.ErrorIs(t, err, cause)
}

func TestMissingOf(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, missingOf(map[string]string{"c": "", "b": "x", "a": ""}))
	assert.Empty(t, missingOf(map[string]string{"a": "x"}))
}

func TestDescribeTTL(t *testing.T) {
	assert.Equal(t, "2 MINUTES", describeTTL(DefaultResetTTL))
	assert.Equal(t, "90 SECONDS", describeTTL(90_000_000_000))
}
