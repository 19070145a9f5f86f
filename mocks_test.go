package auth_test

import (
	"context"
	"database/sql"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/campusportal/go-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

const testSigningKey = "test-signing-key"

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// MockUsers implements auth.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	created, _ := args.Get(0).(*auth.User)
	return created, args.Error(1)
}

func (m *MockUsers) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *MockUsers) SetResetToken(ctx context.Context, id uuid.UUID, token string) error {
	return m.Called(ctx, id, token).Error(0)
}

func (m *MockUsers) ResetPassword(ctx context.Context, id uuid.UUID, expectedToken, passwordHash string) error {
	return m.Called(ctx, id, expectedToken, passwordHash).Error(0)
}

func (m *MockUsers) AddSessionToken(ctx context.Context, id uuid.UUID, token string) error {
	return m.Called(ctx, id, token).Error(0)
}

func (m *MockUsers) RemoveSessionToken(ctx context.Context, id uuid.UUID, token string) error {
	return m.Called(ctx, id, token).Error(0)
}

func (m *MockUsers) ClearSessionTokens(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// MockActivitySink implements auth.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	return m.Called(ctx, event).Error(0)
}

// MockFileStore implements auth.FileStore
type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	args := m.Called(ctx, key, contentType, body, size)
	return args.String(0), args.Error(1)
}

// captureMailer records reset emails
type captureMailer struct {
	mu   sync.Mutex
	sent []auth.PasswordResetEmail
	err  error
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email auth.PasswordResetEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *captureMailer) last(t *testing.T) auth.PasswordResetEmail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no reset email sent")
	return m.sent[len(m.sent)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	require.NoError(t, auth.Migrate(context.Background(), sqldb, "sqlite", auth.WithMigrationLogger(testLogger{})))
	return db
}

type testEnv struct {
	db       *bun.DB
	repo     auth.RepositoryManager
	clock    *fakeClock
	tokens   auth.TokenService
	sessions *auth.SessionRegistry
	resets   *auth.PasswordResetFlow
	register *auth.RegisterUserHandler
	mailer   *captureMailer
	hasher   auth.PasswordHasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	repo := auth.NewRepositoryManager(db)
	clock := newFakeClock()
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	mailer := &captureMailer{}

	tokens := auth.NewTokenService([]byte(testSigningKey), "campusportal",
		auth.WithClock(clock.Now),
		auth.WithTokenLogger(testLogger{}),
	)

	sessions := auth.NewSessionRegistry(repo.Users(), tokens).
		WithHasher(hasher).
		WithLogger(testLogger{})

	resets := auth.NewPasswordResetFlow(repo.Users(), tokens, mailer).
		WithHasher(hasher).
		WithBaseURL("http://portal.test").
		WithSessionRegistry(sessions).
		WithLogger(testLogger{})

	register := auth.NewRegisterUserHandler(repo, sessions).
		WithHasher(hasher).
		WithLogger(testLogger{})

	return &testEnv{
		db:       db,
		repo:     repo,
		clock:    clock,
		tokens:   tokens,
		sessions: sessions,
		resets:   resets,
		register: register,
		mailer:   mailer,
		hasher:   hasher,
	}
}

func registrationFor(email string) auth.RegisterUserMessage {
	return auth.RegisterUserMessage{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           email,
		Phone:           "+16502530000",
		DOB:             "2001-12-10",
		Course:          "Computer Science",
		Batch:           "2024",
		Gender:          "female",
		Nationality:     "British",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	}
}

// registerUser registers email and returns the created user and token
func (e *testEnv) registerUser(t *testing.T, email string) (*auth.User, string) {
	t.Helper()

	var resp *auth.RegisterUserResponse
	msg := registrationFor(email)
	msg.OnResponse = func(r *auth.RegisterUserResponse) {
		resp = r
	}

	require.NoError(t, e.register.Execute(context.Background(), msg))
	require.NotNil(t, resp)
	return resp.User, resp.Token
}

func (e *testEnv) reload(t *testing.T, id uuid.UUID) *auth.User {
	t.Helper()
	user, err := e.repo.Users().GetByID(context.Background(), id)
	require.NoError(t, err)
	return user
}
