package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

type users struct {
	db  bun.IDB
	now func() time.Time
}

var _ Users = (*users)(nil)

// NewUsersRepository returns a bun backed Users store. db may be a
// *bun.DB or a bun.Tx.
func NewUsersRepository(db bun.IDB) Users {
	return &users{db: db, now: time.Now}
}

func (r *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	record := &User{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return record, r.loadSessionTokens(ctx, record)
}

func (r *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	record := &User{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return record, r.loadSessionTokens(ctx, record)
}

func (r *users) Create(ctx context.Context, user *User) (*User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := r.now()
	user.Email = NormalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.db.NewInsert().Model(user).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	user.SessionTokens = []string{}
	return user, nil
}

func (r *users) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res, err := r.db.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", r.now()).
		Where("id = ?", id).
		Exec(ctx)
	return affectedOrNotFound(res, err, ErrUserNotFound)
}

func (r *users) SetResetToken(ctx context.Context, id uuid.UUID, token string) error {
	q := r.db.NewUpdate().
		Model((*User)(nil)).
		Set("updated_at = ?", r.now()).
		Where("id = ?", id)
	if token == "" {
		q = q.Set("reset_token = NULL")
	} else {
		q = q.Set("reset_token = ?", token)
	}
	res, err := q.Exec(ctx)
	return affectedOrNotFound(res, err, ErrUserNotFound)
}

func (r *users) ResetPassword(ctx context.Context, id uuid.UUID, expectedToken, passwordHash string) error {
	if expectedToken == "" {
		return ErrResetTokenMismatch
	}
	res, err := r.db.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("reset_token = NULL").
		Set("updated_at = ?", r.now()).
		Where("id = ?", id).
		Where("reset_token = ?", expectedToken).
		Exec(ctx)
	return affectedOrNotFound(res, err, ErrResetTokenMismatch)
}

func (r *users) AddSessionToken(ctx context.Context, id uuid.UUID, token string) error {
	row := &SessionToken{
		UserID:    id,
		Token:     token,
		CreatedAt: r.now(),
	}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	return err
}

func (r *users) RemoveSessionToken(ctx context.Context, id uuid.UUID, token string) error {
	_, err := r.db.NewDelete().
		Model((*SessionToken)(nil)).
		Where("user_id = ?", id).
		Where("token = ?", token).
		Exec(ctx)
	return err
}

func (r *users) ClearSessionTokens(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*SessionToken)(nil)).
		Where("user_id = ?", id).
		Exec(ctx)
	return err
}

func (r *users) loadSessionTokens(ctx context.Context, user *User) error {
	var rows []SessionToken
	err := r.db.NewSelect().
		Model(&rows).
		Column("token").
		Where("user_id = ?", user.ID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	user.SessionTokens = make([]string, 0, len(rows))
	for _, row := range rows {
		user.SessionTokens = append(user.SessionTokens, row.Token)
	}
	return nil
}

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}

func affectedOrNotFound(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
