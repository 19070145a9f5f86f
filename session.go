package auth

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// SessionRegistry tracks the live session tokens of each user. A token
// authenticates only while it is signed, unexpired and still listed on
// its owner.
type SessionRegistry struct {
	users    Users
	tokens   TokenService
	hasher   PasswordHasher
	ttl      time.Duration
	logger   Logger
	activity ActivitySink
}

// NewSessionRegistry returns a registry issuing DefaultSessionTTL tokens
func NewSessionRegistry(users Users, tokens TokenService) *SessionRegistry {
	return &SessionRegistry{
		users:    users,
		tokens:   tokens,
		hasher:   BcryptHasher{},
		ttl:      DefaultSessionTTL,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (s *SessionRegistry) WithTTL(ttl time.Duration) *SessionRegistry {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

func (s *SessionRegistry) WithHasher(hasher PasswordHasher) *SessionRegistry {
	s.hasher = normalizeHasher(hasher)
	return s
}

func (s *SessionRegistry) WithLogger(logger Logger) *SessionRegistry {
	s.logger = normalizeLogger(logger)
	return s
}

func (s *SessionRegistry) WithActivitySink(sink ActivitySink) *SessionRegistry {
	s.activity = normalizeActivitySink(sink)
	return s
}

// Login checks the credentials and opens a new session. Unknown emails
// and wrong passwords both fail with CodeInvalidCredentials.
func (s *SessionRegistry) Login(ctx context.Context, email, password string) (*User, string, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", missingFieldsError(missingOf(map[string]string{"email": email, "password": password})...)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.loginFailed(ctx, "", email, "unknown_email")
			return nil, "", codedError(CodeInvalidCredentials, nil, "invalid credentials", "email", email)
		}
		return nil, "", internalError(err, "failed to load user for login", "email", email)
	}

	// bcrypt ignores bytes past the limit, longer inputs would match on a prefix
	if len(password) > MaxPasswordLength {
		s.loginFailed(ctx, user.ID.String(), email, "password_too_long")
		return nil, "", codedError(CodeInvalidCredentials, nil, "invalid credentials", "email", email)
	}

	if err := s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.loginFailed(ctx, user.ID.String(), email, "password_mismatch")
		return nil, "", codedError(CodeInvalidCredentials, nil, "invalid credentials", "email", email)
	}

	token, err := s.tokens.Issue(user.ID.String(), s.ttl, PurposeSession)
	if err != nil {
		return nil, "", internalError(err, "failed to issue session token", "user_id", user.ID.String())
	}

	if err := s.users.AddSessionToken(ctx, user.ID, token); err != nil {
		return nil, "", internalError(err, "failed to store session token", "user_id", user.ID.String())
	}
	user.SessionTokens = append(user.SessionTokens, token)

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID.String(),
		Email:     email,
		Metadata:  map[string]any{"sessions": len(user.SessionTokens)},
	})

	return user, token, nil
}

// Logout removes token from the user's live sessions. Unknown tokens
// are ignored.
func (s *SessionRegistry) Logout(ctx context.Context, user *User, token string) error {
	if user == nil {
		return unauthorizedError(nil, "reason", "no_user")
	}

	if err := s.users.RemoveSessionToken(ctx, user.ID, token); err != nil {
		return internalError(err, "failed to remove session token", "user_id", user.ID.String())
	}

	remaining := user.SessionTokens[:0]
	for _, t := range user.SessionTokens {
		if t != token {
			remaining = append(remaining, t)
		}
	}
	user.SessionTokens = remaining

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventLogout,
		UserID:    user.ID.String(),
		Email:     user.Email,
	})
	return nil
}

// RevokeAll drops every live session of user
func (s *SessionRegistry) RevokeAll(ctx context.Context, user *User) error {
	if user == nil {
		return unauthorizedError(nil, "reason", "no_user")
	}
	if err := s.users.ClearSessionTokens(ctx, user.ID); err != nil {
		return internalError(err, "failed to clear session tokens", "user_id", user.ID.String())
	}
	user.SessionTokens = []string{}
	return nil
}

// Resolve returns the owner of a live session token. Any failure,
// including store errors, is reported as CodeUnauthorized.
func (s *SessionRegistry) Resolve(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, unauthorizedError(nil, "reason", "missing_token")
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, unauthorizedError(err, "reason", "invalid_token")
	}

	if claims.Purpose != PurposeSession {
		return nil, unauthorizedError(nil, "reason", "wrong_purpose", "purpose", string(claims.Purpose))
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, unauthorizedError(err, "reason", "invalid_subject")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			s.logger.Error("session resolve failed to load user %s: %v", id, err)
		}
		return nil, unauthorizedError(err, "reason", "unknown_user", "user_id", id.String())
	}

	if !user.HasSessionToken(token) {
		return nil, unauthorizedError(nil, "reason", "revoked", "user_id", id.String())
	}

	return user, nil
}

// Issue mints a session token for user without registering it as a
// live session. Registration hands this token back to the client and
// Resolve rejects it since it is never listed on the user.
func (s *SessionRegistry) Issue(ctx context.Context, user *User) (string, error) {
	if user == nil {
		return "", internalError(nil, "can not issue token without user")
	}
	token, err := s.tokens.Issue(user.ID.String(), s.ttl, PurposeSession)
	if err != nil {
		return "", internalError(err, "failed to issue session token", "user_id", user.ID.String())
	}
	return token, nil
}

func (s *SessionRegistry) loginFailed(ctx context.Context, userID, email, reason string) {
	s.logger.Debug("login failed for %s: %s", email, reason)
	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		UserID:    userID,
		Email:     email,
		Metadata:  map[string]any{"reason": reason},
	})
}

// missingOf returns the sorted names of empty values
func missingOf(fields map[string]string) []string {
	missing := make([]string, 0, len(fields))
	for name, value := range fields {
		if value == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
