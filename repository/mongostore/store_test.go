package mongostore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campusportal/go-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type updateCall struct {
	filter bson.D
	update bson.D
}

type fakeCollection struct {
	found     any
	findErr   error
	filters   []any
	inserted  []any
	insertErr error
	updates   []updateCall
	matched   int64
}

func (f *fakeCollection) FindOne(_ context.Context, filter any, _ ...options.Lister[options.FindOneOptions]) *mongo.SingleResult {
	f.filters = append(f.filters, filter)
	if f.findErr != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, f.findErr, nil)
	}
	return mongo.NewSingleResultFromDocument(f.found, nil, nil)
}

func (f *fakeCollection) InsertOne(_ context.Context, document any, _ ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserted = append(f.inserted, document)
	return &mongo.InsertOneResult{}, nil
}

func (f *fakeCollection) UpdateOne(_ context.Context, filter any, update any, _ ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error) {
	f.updates = append(f.updates, updateCall{filter: filter.(bson.D), update: update.(bson.D)})
	return &mongo.UpdateResult{MatchedCount: f.matched}, nil
}

func sampleUser() *auth.User {
	return &auth.User{
		ID:            uuid.MustParse("6f1c2a1e-8d4b-4c2e-9a51-3b1f0e2d4c5a"),
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Email:         "a@x.com",
		Phone:         "+16502530000",
		DOB:           "2001-12-10",
		Course:        "Computer Science",
		Batch:         "2024",
		Gender:        "female",
		Nationality:   "British",
		PasswordHash:  "hash",
		SessionTokens: []string{"t1", "t2"},
		CreatedAt:     time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC),
	}
}

func TestDocumentFieldNames(t *testing.T) {
	raw, err := bson.Marshal(toDocument(sampleUser()))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))

	assert.Equal(t, "6f1c2a1e-8d4b-4c2e-9a51-3b1f0e2d4c5a", m["_id"])
	assert.Equal(t, "Ada", m["fname"])
	assert.Equal(t, "hash", m["password_hash"])
	assert.Contains(t, m, "session_tokens")
	assert.NotContains(t, m, "reset_token")
	assert.NotContains(t, m, "photo")
}

func TestUsers_GetByEmail(t *testing.T) {
	coll := &fakeCollection{found: toDocument(sampleUser())}
	users := newUsers(coll)

	user, err := users.GetByEmail(context.Background(), " A@X.com")
	require.NoError(t, err)
	assert.Equal(t, sampleUser().ID, user.ID)
	assert.Equal(t, []string{"t1", "t2"}, user.SessionTokens)
	assert.True(t, user.HasSessionToken("t2"))
	assert.Equal(t, bson.D{{Key: "email", Value: "a@x.com"}}, coll.filters[0])
}

func TestUsers_NotFound(t *testing.T) {
	users := newUsers(&fakeCollection{findErr: mongo.ErrNoDocuments})

	_, err := users.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	boom := errors.New("server selection timeout")
	users = newUsers(&fakeCollection{findErr: boom})
	_, err = users.GetByEmail(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, boom)
}

func TestUsers_BadStoredID(t *testing.T) {
	doc := toDocument(sampleUser())
	doc.ID = "legacy-object-id"

	_, err := newUsers(&fakeCollection{found: doc}).GetByEmail(context.Background(), "a@x.com")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUsers_Create(t *testing.T) {
	coll := &fakeCollection{}
	users := newUsers(coll)

	user, err := users.Create(context.Background(), &auth.User{Email: " New@X.com "})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "new@x.com", user.Email)
	assert.Equal(t, []string{}, user.SessionTokens)

	require.Len(t, coll.inserted, 1)
	doc := coll.inserted[0].(userDocument)
	assert.Equal(t, user.ID.String(), doc.ID)
	assert.Equal(t, []string{}, doc.SessionTokens)
}

func TestUsers_CreateDuplicate(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}}}
	users := newUsers(&fakeCollection{insertErr: dup})

	_, err := users.Create(context.Background(), &auth.User{Email: "a@x.com"})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestUsers_Updates(t *testing.T) {
	ctx := context.Background()
	id := sampleUser().ID
	idFilter := bson.D{{Key: "_id", Value: id.String()}}

	coll := &fakeCollection{matched: 1}
	users := newUsers(coll)

	require.NoError(t, users.AddSessionToken(ctx, id, "t3"))
	require.NoError(t, users.RemoveSessionToken(ctx, id, "t1"))
	require.NoError(t, users.ClearSessionTokens(ctx, id))
	require.NoError(t, users.SetResetToken(ctx, id, "reset"))
	require.NoError(t, users.SetResetToken(ctx, id, ""))
	require.NoError(t, users.ResetPassword(ctx, id, "reset", "new-hash"))

	require.Len(t, coll.updates, 6)
	for _, call := range coll.updates[:5] {
		assert.Equal(t, idFilter, call.filter)
	}

	assert.Equal(t, bson.D{{Key: "$push", Value: bson.D{{Key: "session_tokens", Value: "t3"}}}}, coll.updates[0].update)
	assert.Equal(t, bson.D{{Key: "$pull", Value: bson.D{{Key: "session_tokens", Value: "t1"}}}}, coll.updates[1].update)
	assert.Equal(t, bson.D{{Key: "$set", Value: bson.D{{Key: "session_tokens", Value: bson.A{}}}}}, coll.updates[2].update)
	assert.Equal(t, "$unset", coll.updates[4].update[0].Key)

	assert.Equal(t, bson.D{
		{Key: "_id", Value: id.String()},
		{Key: "reset_token", Value: "reset"},
	}, coll.updates[5].filter)
}

func TestUsers_UnmatchedUpdates(t *testing.T) {
	ctx := context.Background()
	users := newUsers(&fakeCollection{matched: 0})

	assert.ErrorIs(t, users.AddSessionToken(ctx, uuid.New(), "t"), auth.ErrUserNotFound)
	assert.ErrorIs(t, users.UpdatePassword(ctx, uuid.New(), "h"), auth.ErrUserNotFound)
	assert.ErrorIs(t, users.ResetPassword(ctx, uuid.New(), "stale", "h"), auth.ErrResetTokenMismatch)
	assert.ErrorIs(t, users.ResetPassword(ctx, uuid.New(), "", "h"), auth.ErrResetTokenMismatch)
}

func TestStoreManager(t *testing.T) {
	repo := auth.NewStoreManager(newUsers(&fakeCollection{}))
	require.NoError(t, repo.Validate())

	var got auth.Users
	require.NoError(t, repo.RunInTx(context.Background(), func(_ context.Context, users auth.Users) error {
		got = users
		return nil
	}))
	assert.Same(t, repo.Users(), got)
}
