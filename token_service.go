package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// TokenService signs and verifies the compact tokens used for
// sessions and password resets.
type TokenService interface {
	Issue(subject string, ttl time.Duration, purpose TokenPurpose) (string, error)
	Verify(token string) (*JWTClaims, error)
}

// TokenServiceImpl implements TokenService with HS256 JWTs
type TokenServiceImpl struct {
	signingKey []byte
	issuer     string
	logger     Logger
	now        func() time.Time
}

// TokenServiceOption configures a TokenServiceImpl
type TokenServiceOption func(*TokenServiceImpl)

// WithClock replaces time.Now for issuing and validating tokens
func WithClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.logger = normalizeLogger(logger)
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, issuer string, opts ...TokenServiceOption) TokenService {
	ts := &TokenServiceImpl{
		signingKey: signingKey,
		issuer:     issuer,
		logger:     defLogger{},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

// Issue creates a token for subject that expires after ttl. Every token
// carries a fresh ULID so two tokens for the same subject never collide.
func (ts *TokenServiceImpl) Issue(subject string, ttl time.Duration, purpose TokenPurpose) (string, error) {
	if subject == "" {
		return "", codedError(CodeInternal, nil, "token subject must not be empty")
	}
	if ttl <= 0 {
		return "", codedError(CodeInternal, nil, "token ttl must be positive", "ttl", ttl.String())
	}
	if len(ts.signingKey) == 0 {
		return "", codedError(CodeInternal, nil, "token signing key is not configured")
	}

	now := ts.now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Issuer:    ts.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose: purpose,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.signingKey)
	if err != nil {
		return "", internalError(err, "failed to sign token", "subject", subject)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the decoded claims.
// Failures carry CodeTokenExpired, CodeTokenBadSignature or CodeTokenMalformed.
func (ts *TokenServiceImpl) Verify(token string) (*JWTClaims, error) {
	if token == "" {
		return nil, codedError(CodeTokenMalformed, nil, "token is empty")
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	claims := &JWTClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return ts.signingKey, nil
	}, parserOptions...)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, codedError(CodeTokenExpired, err, "token is expired")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		ts.logger.Debug("token verify rejected signature: %v", err)
		return nil, codedError(CodeTokenBadSignature, err, "token signature is invalid")
	default:
		return nil, codedError(CodeTokenMalformed, err, "token is malformed")
	}

	if !parsed.Valid || claims.Subject == "" {
		ts.logger.Error("token verify could not decode claims")
		return nil, codedError(CodeTokenMalformed, nil, "token has no subject")
	}

	return claims, nil
}
