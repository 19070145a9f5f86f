package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MinPasswordLength is enforced on registration and on reset
	MinPasswordLength = 6
	// MaxPasswordLength is the bcrypt input limit in bytes
	MaxPasswordLength = 72
)

// checkPasswordLength rejects passwords bcrypt cannot hash in full
func checkPasswordLength(password string) error {
	if len(password) < MinPasswordLength {
		return codedError(CodeWeakPassword, nil, "password too short", "min", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return codedError(CodeWeakPassword, nil, "password too long", "max", MaxPasswordLength)
	}
	return nil
}

// PasswordResetFlow issues single use reset tokens and consumes them.
// A user has at most one pending token, stored verbatim on the user
// record. A token is accepted only while it is both unexpired and equal
// to the stored one, so requesting a new link supersedes the old one.
type PasswordResetFlow struct {
	users    Users
	tokens   TokenService
	mailer   Mailer
	sessions *SessionRegistry
	hasher   PasswordHasher
	ttl      time.Duration
	baseURL  string
	logger   Logger
	activity ActivitySink
}

// NewPasswordResetFlow returns a flow issuing DefaultResetTTL tokens.
// A nil mailer logs the reset link instead of sending it.
func NewPasswordResetFlow(users Users, tokens TokenService, mailer Mailer) *PasswordResetFlow {
	f := &PasswordResetFlow{
		users:    users,
		tokens:   tokens,
		mailer:   mailer,
		hasher:   BcryptHasher{},
		ttl:      DefaultResetTTL,
		baseURL:  DefaultOptions().BaseURL,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
	if f.mailer == nil {
		f.mailer = logMailer{logger: f.logger}
	}
	return f
}

func (f *PasswordResetFlow) WithTTL(ttl time.Duration) *PasswordResetFlow {
	if ttl > 0 {
		f.ttl = ttl
	}
	return f
}

func (f *PasswordResetFlow) WithBaseURL(baseURL string) *PasswordResetFlow {
	if baseURL != "" {
		f.baseURL = baseURL
	}
	return f
}

func (f *PasswordResetFlow) WithHasher(hasher PasswordHasher) *PasswordResetFlow {
	f.hasher = normalizeHasher(hasher)
	return f
}

// WithSessionRegistry makes CompleteReset revoke every session of the user
func (f *PasswordResetFlow) WithSessionRegistry(sessions *SessionRegistry) *PasswordResetFlow {
	f.sessions = sessions
	return f
}

func (f *PasswordResetFlow) WithLogger(logger Logger) *PasswordResetFlow {
	f.logger = normalizeLogger(logger)
	if lm, ok := f.mailer.(logMailer); ok {
		lm.logger = f.logger
		f.mailer = lm
	}
	return f
}

func (f *PasswordResetFlow) WithActivitySink(sink ActivitySink) *PasswordResetFlow {
	f.activity = normalizeActivitySink(sink)
	return f
}

// RequestReset stores a fresh reset token on the user and mails the
// link. Unknown emails fail with CodeNotFound. If the mail can not be
// sent the stored token stays valid until it expires or is replaced.
func (f *PasswordResetFlow) RequestReset(ctx context.Context, email string) error {
	select {
	case <-ctx.Done():
		return internalError(ctx.Err(), "context cancelled during password reset request")
	default:
		return f.requestReset(ctx, email)
	}
}

func (f *PasswordResetFlow) requestReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return missingFieldsError("email")
	}

	user, err := f.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			LogError(f.logger, "password reset lookup failed", err)
		}
		return notFoundError(err, "email", email)
	}

	token, err := f.tokens.Issue(user.ID.String(), f.ttl, PurposeReset)
	if err != nil {
		return internalError(err, "failed to issue reset token", "user_id", user.ID.String())
	}

	if err := f.users.SetResetToken(ctx, user.ID, token); err != nil {
		return internalError(err, "failed to store reset token", "user_id", user.ID.String())
	}
	user.ResetToken = token

	link := ResetLink(f.baseURL, user.ID, token)
	msg := PasswordResetEmail{
		UserID:    user.ID,
		To:        user.Email,
		Subject:   "Sending Email For password Reset",
		Body:      fmt.Sprintf("This Link is Valid For %s %s", describeTTL(f.ttl), link),
		Link:      link,
		ExpiresIn: f.ttl,
	}

	if err := f.mailer.SendPasswordReset(ctx, msg); err != nil {
		return internalError(err, "failed to send reset email", "user_id", user.ID.String())
	}

	recordActivity(ctx, f.activity, f.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		UserID:    user.ID.String(),
		Email:     user.Email,
		Metadata:  map[string]any{"ttl": f.ttl.String()},
	})
	return nil
}

// VerifyReset reports whether the link {id}/{token} is still usable.
// It does not consume the token.
func (f *PasswordResetFlow) VerifyReset(ctx context.Context, id, token string) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, internalError(ctx.Err(), "context cancelled during password reset verification")
	default:
		return f.checkReset(ctx, id, token)
	}
}

// CompleteReset replaces the password of the user owning a valid reset
// token. The token is cleared and, with a session registry attached,
// every live session is revoked.
func (f *PasswordResetFlow) CompleteReset(ctx context.Context, id, token, newPassword string) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, internalError(ctx.Err(), "context cancelled during password reset")
	default:
		return f.completeReset(ctx, id, token, newPassword)
	}
}

func (f *PasswordResetFlow) completeReset(ctx context.Context, id, token, newPassword string) (*User, error) {
	user, err := f.checkReset(ctx, id, token)
	if err != nil {
		return nil, err
	}

	if newPassword == "" {
		return nil, missingFieldsError("password")
	}
	if err := checkPasswordLength(newPassword); err != nil {
		return nil, err
	}

	hash, err := f.hasher.HashPassword(newPassword)
	if err != nil {
		return nil, internalError(err, "failed to hash password", "user_id", user.ID.String())
	}

	if err := f.users.ResetPassword(ctx, user.ID, token, hash); err != nil {
		if errors.Is(err, ErrResetTokenMismatch) {
			f.rejected(ctx, user.ID.String(), "superseded")
			return nil, unauthorizedError(err, "reason", "superseded", "user_id", user.ID.String())
		}
		return nil, internalError(err, "failed to store new password", "user_id", user.ID.String())
	}
	user.PasswordHash = hash
	user.ResetToken = ""

	if f.sessions != nil {
		if err := f.sessions.RevokeAll(ctx, user); err != nil {
			LogError(f.logger, "password reset could not revoke sessions", err)
		}
	}

	recordActivity(ctx, f.activity, f.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		UserID:    user.ID.String(),
		Email:     user.Email,
	})
	return user, nil
}

// checkReset requires the stored token and the codec to agree
func (f *PasswordResetFlow) checkReset(ctx context.Context, id, token string) (*User, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, notFoundError(err, "user_id", id)
	}

	user, err := f.users.GetByID(ctx, uid)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			LogError(f.logger, "password reset lookup failed", err)
		}
		return nil, notFoundError(err, "user_id", id)
	}

	if token == "" || !user.HasPendingReset() ||
		subtle.ConstantTimeCompare([]byte(user.ResetToken), []byte(token)) != 1 {
		f.rejected(ctx, uid.String(), "not_current")
		return nil, unauthorizedError(nil, "reason", "not_current", "user_id", uid.String())
	}

	claims, err := f.tokens.Verify(token)
	if err != nil {
		f.rejected(ctx, uid.String(), ErrorCode(err))
		return nil, unauthorizedError(err, "reason", "invalid_token", "user_id", uid.String())
	}

	if claims.Purpose != PurposeReset || claims.UserID() != uid.String() {
		f.rejected(ctx, uid.String(), "wrong_subject")
		return nil, unauthorizedError(nil, "reason", "wrong_subject", "user_id", uid.String())
	}

	return user, nil
}

func (f *PasswordResetFlow) rejected(ctx context.Context, userID, reason string) {
	recordActivity(ctx, f.activity, f.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetRejected,
		UserID:    userID,
		Metadata:  map[string]any{"reason": reason},
	})
}

// ResetLink builds the link mailed to the user
func ResetLink(baseURL string, id uuid.UUID, token string) string {
	return fmt.Sprintf("%s/forgotpassword/%s/%s", strings.TrimRight(baseURL, "/"), id, token)
}

func describeTTL(ttl time.Duration) string {
	if ttl >= time.Minute && ttl%time.Minute == 0 {
		return fmt.Sprintf("%d MINUTES", int(ttl/time.Minute))
	}
	return fmt.Sprintf("%d SECONDS", int(ttl/time.Second))
}

type logMailer struct {
	logger Logger
}

func (m logMailer) SendPasswordReset(_ context.Context, email PasswordResetEmail) error {
	normalizeLogger(m.logger).Info("password reset link for %s: %s", email.To, email.Link)
	return nil
}
