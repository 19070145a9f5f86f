package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/campusportal/go-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoredUser(t *testing.T, users auth.Users, email string) *auth.User {
	t.Helper()
	user, err := users.Create(context.Background(), &auth.User{
		FirstName:    "Grace",
		LastName:     "Hopper",
		Email:        email,
		Phone:        "+16502530000",
		DOB:          "1990-01-01",
		Course:       "Mathematics",
		Batch:        "2023",
		Gender:       "female",
		Nationality:  "American",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return user
}

func TestUsersRepository_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	users := auth.NewUsersRepository(newTestDB(t))

	created := newStoredUser(t, users, "Grace@Navy.mil")
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "grace@navy.mil", created.Email)
	assert.False(t, created.CreatedAt.IsZero())

	byEmail, err := users.GetByEmail(ctx, " GRACE@navy.mil")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, []string{}, byEmail.SessionTokens)

	byID, err := users.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace", byID.FirstName)
	assert.Equal(t, "", byID.PhotoURL)

	_, err = users.GetByEmail(ctx, "nobody@navy.mil")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	_, err = users.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUsersRepository_DuplicateEmail(t *testing.T) {
	users := auth.NewUsersRepository(newTestDB(t))

	newStoredUser(t, users, "grace@navy.mil")

	_, err := users.Create(context.Background(), &auth.User{
		Email:        "GRACE@navy.mil",
		PasswordHash: "hash",
	})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestUsersRepository_SessionTokens(t *testing.T) {
	ctx := context.Background()
	users := auth.NewUsersRepository(newTestDB(t))
	user := newStoredUser(t, users, "grace@navy.mil")
	other := newStoredUser(t, users, "ada@navy.mil")

	for _, token := range []string{"t1", "t2", "t3"} {
		require.NoError(t, users.AddSessionToken(ctx, user.ID, token))
	}
	require.NoError(t, users.AddSessionToken(ctx, other.ID, "o1"))

	loaded, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2", "t3"}, loaded.SessionTokens)

	require.NoError(t, users.RemoveSessionToken(ctx, user.ID, "t2"))
	require.NoError(t, users.RemoveSessionToken(ctx, user.ID, "missing"))
	// tokens of other users are left alone
	require.NoError(t, users.RemoveSessionToken(ctx, user.ID, "o1"))

	loaded, err = users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t3"}, loaded.SessionTokens)

	require.NoError(t, users.ClearSessionTokens(ctx, user.ID))
	loaded, err = users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.SessionTokens)

	loaded, err = users.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, loaded.SessionTokens)
}

func TestUsersRepository_ResetToken(t *testing.T) {
	ctx := context.Background()
	users := auth.NewUsersRepository(newTestDB(t))
	user := newStoredUser(t, users, "grace@navy.mil")

	require.NoError(t, users.SetResetToken(ctx, user.ID, "first"))
	require.NoError(t, users.SetResetToken(ctx, user.ID, "second"))

	loaded, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", loaded.ResetToken)

	err = users.ResetPassword(ctx, user.ID, "first", "new-hash")
	assert.ErrorIs(t, err, auth.ErrResetTokenMismatch)

	require.NoError(t, users.ResetPassword(ctx, user.ID, "second", "new-hash"))
	loaded, err = users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", loaded.PasswordHash)
	assert.False(t, loaded.HasPendingReset())

	err = users.ResetPassword(ctx, user.ID, "second", "other-hash")
	assert.ErrorIs(t, err, auth.ErrResetTokenMismatch)

	err = users.ResetPassword(ctx, user.ID, "", "other-hash")
	assert.ErrorIs(t, err, auth.ErrResetTokenMismatch)

	require.NoError(t, users.SetResetToken(ctx, user.ID, "third"))
	require.NoError(t, users.SetResetToken(ctx, user.ID, ""))
	loaded, err = users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, loaded.HasPendingReset())
}

func TestUsersRepository_UnknownUserUpdates(t *testing.T) {
	ctx := context.Background()
	users := auth.NewUsersRepository(newTestDB(t))

	assert.ErrorIs(t, users.UpdatePassword(ctx, uuid.New(), "hash"), auth.ErrUserNotFound)
	assert.ErrorIs(t, users.SetResetToken(ctx, uuid.New(), "token"), auth.ErrUserNotFound)
}

func TestRepositoryManager_RunInTx(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewRepositoryManager(newTestDB(t))
	require.NoError(t, repo.Validate())

	rollback := errors.New("rollback")
	err := repo.RunInTx(ctx, func(ctx context.Context, users auth.Users) error {
		newStoredUser(t, users, "grace@navy.mil")
		return rollback
	})
	assert.ErrorIs(t, err, rollback)

	_, err = repo.Users().GetByEmail(ctx, "grace@navy.mil")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	err = repo.RunInTx(ctx, func(ctx context.Context, users auth.Users) error {
		newStoredUser(t, users, "grace@navy.mil")
		return nil
	})
	require.NoError(t, err)

	_, err = repo.Users().GetByEmail(ctx, "grace@navy.mil")
	assert.NoError(t, err)
}
