package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes the credential store and a way to run a
// unit of work against it.
type RepositoryManager interface {
	Validate() error
	MustValidate()
	Users() Users
	// RunInTx runs f with a Users store bound to a single transaction
	// when the backend supports it.
	RunInTx(ctx context.Context, f func(ctx context.Context, users Users) error) error
}

type mngr struct {
	db    *bun.DB
	users Users
}

// NewRepositoryManager returns a bun backed RepositoryManager
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:    db,
		users: NewUsersRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized")
	}
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}
	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, f func(ctx context.Context, users Users) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			return f(ctx, NewUsersRepository(tx))
		})
	}
}

func (m mngr) Users() Users {
	return m.users
}

type storeManager struct {
	users Users
}

// NewStoreManager wraps a Users store that has no transaction support,
// RunInTx calls f directly.
func NewStoreManager(users Users) RepositoryManager {
	return &storeManager{users: users}
}

func (m storeManager) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}
	return nil
}

func (m storeManager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m storeManager) RunInTx(ctx context.Context, f func(ctx context.Context, users Users) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return f(ctx, m.users)
	}
}

func (m storeManager) Users() Users {
	return m.users
}
