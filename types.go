package auth

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetSessionTTL() time.Duration
	GetResetTTL() time.Duration
	GetCookieName() string
	GetCookieMaxAge() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetContextKey() string
	GetBaseURL() string
}

// Users is the credential store the session registry and the
// reset flow are built on. Email lookups are case insensitive.
type Users interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	// SetResetToken overwrites the pending reset token, an empty
	// token clears it.
	SetResetToken(ctx context.Context, id uuid.UUID, token string) error
	// ResetPassword stores the new hash and clears the reset token only
	// if the stored token still equals expectedToken.
	ResetPassword(ctx context.Context, id uuid.UUID, expectedToken, passwordHash string) error

	AddSessionToken(ctx context.Context, id uuid.UUID, token string) error
	RemoveSessionToken(ctx context.Context, id uuid.UUID, token string) error
	ClearSessionTokens(ctx context.Context, id uuid.UUID) error
}

// PasswordResetEmail is the payload handed to a Mailer
type PasswordResetEmail struct {
	UserID    uuid.UUID
	To        string
	Subject   string
	Body      string
	Link      string
	ExpiresIn time.Duration
}

// Mailer delivers password reset links
type Mailer interface {
	SendPasswordReset(ctx context.Context, email PasswordResetEmail) error
}

// FileStore persists uploaded files and returns the URL they can
// be fetched from.
type FileStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// PasswordHasher hashes and compares user passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
