package auth

import (
	"strings"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model. JSON names follow the portal's form fields.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"_id"`
	FirstName     string    `bun:"first_name,notnull" json:"fname"`
	LastName      string    `bun:"last_name,notnull" json:"lname"`
	Email         string    `bun:"email,notnull,unique" json:"email"`
	Phone         string    `bun:"phone,notnull" json:"phone"`
	DOB           string    `bun:"dob,notnull" json:"dob"`
	Course        string    `bun:"course,notnull" json:"course"`
	Batch         string    `bun:"batch,notnull" json:"batch"`
	Gender        string    `bun:"gender,notnull" json:"gender"`
	Nationality   string    `bun:"nationality,notnull" json:"nationality"`
	PhotoURL      string    `bun:"photo" json:"photo,omitempty"`
	SignURL       string    `bun:"sign" json:"sign,omitempty"`
	Score         int       `bun:"score,notnull,default:0" json:"score"`
	PasswordHash  string    `bun:"password_hash,notnull" json:"-"`
	ResetToken    string    `bun:"reset_token,nullzero" json:"-"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	// SessionTokens lists live session tokens in issuance order.
	SessionTokens []string `bun:"-" json:"-"`
}

// HasSessionToken reports whether token is one of the live sessions
func (u *User) HasSessionToken(token string) bool {
	if u == nil || token == "" {
		return false
	}
	for _, t := range u.SessionTokens {
		if t == token {
			return true
		}
	}
	return false
}

// HasPendingReset reports whether a reset token is outstanding
func (u *User) HasPendingReset() bool {
	return u != nil && u.ResetToken != ""
}

// SessionToken is a live session row owned by one user
type SessionToken struct {
	bun.BaseModel `bun:"table:user_session_tokens,alias:ust"`
	ID            int64     `bun:"id,pk,autoincrement"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid"`
	Token         string    `bun:"token,notnull,unique"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// NormalizeEmail trims and lower cases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewUserID returns a random id, or one derived from the email
// when deterministic is set.
func NewUserID(email string, deterministic bool) uuid.UUID {
	if deterministic {
		if id, err := hashid.NewUUID(NormalizeEmail(email)); err == nil {
			return id
		}
	}
	return uuid.New()
}
