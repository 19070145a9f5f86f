// Package mongostore is a MongoDB backed auth.Users. Session tokens
// live in an array on the user document.
package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/campusportal/go-auth"
	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultCollection holds the user documents
const DefaultCollection = "users"

type collection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error)
}

// Users implements auth.Users
type Users struct {
	coll collection
	now  func() time.Time
}

var _ auth.Users = (*Users)(nil)

// Connect opens a client for uri. Callers own the returned client and
// must Disconnect it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, oops.In("mongostore").Wrapf(err, "failed to connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, oops.In("mongostore").Wrapf(err, "failed to ping")
	}
	return client, nil
}

// New returns a store over db.DefaultCollection and makes sure the
// unique email index exists.
func New(ctx context.Context, db *mongo.Database) (*Users, error) {
	coll := db.Collection(DefaultCollection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_unique"),
	})
	if err != nil {
		return nil, oops.In("mongostore").Wrapf(err, "failed to create email index")
	}

	return newUsers(coll), nil
}

func newUsers(coll collection) *Users {
	return &Users{coll: coll, now: time.Now}
}

func (u *Users) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return u.findOne(ctx, bson.D{{Key: "email", Value: auth.NormalizeEmail(email)}})
}

func (u *Users) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return u.findOne(ctx, byID(id))
}

func (u *Users) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := u.now().UTC()
	user.Email = auth.NormalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now
	user.SessionTokens = []string{}

	if _, err := u.coll.InsertOne(ctx, toDocument(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, auth.ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (u *Users) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return u.updateOne(ctx, byID(id), bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "password_hash", Value: passwordHash},
			{Key: "updated_at", Value: u.now().UTC()},
		}},
	}, auth.ErrUserNotFound)
}

func (u *Users) SetResetToken(ctx context.Context, id uuid.UUID, token string) error {
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "reset_token", Value: token},
			{Key: "updated_at", Value: u.now().UTC()},
		}},
	}
	if token == "" {
		update = bson.D{
			{Key: "$unset", Value: bson.D{{Key: "reset_token", Value: ""}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: u.now().UTC()}}},
		}
	}
	return u.updateOne(ctx, byID(id), update, auth.ErrUserNotFound)
}

func (u *Users) ResetPassword(ctx context.Context, id uuid.UUID, expectedToken, passwordHash string) error {
	if expectedToken == "" {
		return auth.ErrResetTokenMismatch
	}
	filter := bson.D{
		{Key: "_id", Value: id.String()},
		{Key: "reset_token", Value: expectedToken},
	}
	return u.updateOne(ctx, filter, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "password_hash", Value: passwordHash},
			{Key: "updated_at", Value: u.now().UTC()},
		}},
		{Key: "$unset", Value: bson.D{{Key: "reset_token", Value: ""}}},
	}, auth.ErrResetTokenMismatch)
}

func (u *Users) AddSessionToken(ctx context.Context, id uuid.UUID, token string) error {
	return u.updateOne(ctx, byID(id), bson.D{
		{Key: "$push", Value: bson.D{{Key: "session_tokens", Value: token}}},
	}, auth.ErrUserNotFound)
}

func (u *Users) RemoveSessionToken(ctx context.Context, id uuid.UUID, token string) error {
	return u.updateOne(ctx, byID(id), bson.D{
		{Key: "$pull", Value: bson.D{{Key: "session_tokens", Value: token}}},
	}, auth.ErrUserNotFound)
}

func (u *Users) ClearSessionTokens(ctx context.Context, id uuid.UUID) error {
	return u.updateOne(ctx, byID(id), bson.D{
		{Key: "$set", Value: bson.D{{Key: "session_tokens", Value: bson.A{}}}},
	}, auth.ErrUserNotFound)
}

func (u *Users) findOne(ctx context.Context, filter bson.D) (*auth.User, error) {
	doc := userDocument{}
	if err := u.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return fromDocument(doc)
}

func (u *Users) updateOne(ctx context.Context, filter, update bson.D, notMatched error) error {
	res, err := u.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return notMatched
	}
	return nil
}

func byID(id uuid.UUID) bson.D {
	return bson.D{{Key: "_id", Value: id.String()}}
}
