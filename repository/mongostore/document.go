package mongostore

import (
	"time"

	"github.com/campusportal/go-auth"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// userDocument is the stored shape of auth.User
type userDocument struct {
	ID            string    `bson:"_id"`
	FirstName     string    `bson:"fname"`
	LastName      string    `bson:"lname"`
	Email         string    `bson:"email"`
	Phone         string    `bson:"phone"`
	DOB           string    `bson:"dob"`
	Course        string    `bson:"course"`
	Batch         string    `bson:"batch"`
	Gender        string    `bson:"gender"`
	Nationality   string    `bson:"nationality"`
	Photo         string    `bson:"photo,omitempty"`
	Sign          string    `bson:"sign,omitempty"`
	Score         int       `bson:"score"`
	PasswordHash  string    `bson:"password_hash"`
	ResetToken    string    `bson:"reset_token,omitempty"`
	SessionTokens []string  `bson:"session_tokens"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func toDocument(u *auth.User) userDocument {
	tokens := u.SessionTokens
	if tokens == nil {
		tokens = []string{}
	}
	return userDocument{
		ID:            u.ID.String(),
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Email:         u.Email,
		Phone:         u.Phone,
		DOB:           u.DOB,
		Course:        u.Course,
		Batch:         u.Batch,
		Gender:        u.Gender,
		Nationality:   u.Nationality,
		Photo:         u.PhotoURL,
		Sign:          u.SignURL,
		Score:         u.Score,
		PasswordHash:  u.PasswordHash,
		ResetToken:    u.ResetToken,
		SessionTokens: tokens,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func fromDocument(d userDocument) (*auth.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, oops.In("mongostore").With("id", d.ID).Wrapf(err, "stored user id is not a uuid")
	}
	tokens := d.SessionTokens
	if tokens == nil {
		tokens = []string{}
	}
	return &auth.User{
		ID:            id,
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		Email:         d.Email,
		Phone:         d.Phone,
		DOB:           d.DOB,
		Course:        d.Course,
		Batch:         d.Batch,
		Gender:        d.Gender,
		Nationality:   d.Nationality,
		PhotoURL:      d.Photo,
		SignURL:       d.Sign,
		Score:         d.Score,
		PasswordHash:  d.PasswordHash,
		ResetToken:    d.ResetToken,
		SessionTokens: tokens,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}
