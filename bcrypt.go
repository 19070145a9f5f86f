package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	return BcryptHasher{}.HashPassword(password)
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	return BcryptHasher{}.ComparePasswordAndHash(password, hash)
}

// BcryptHasher is the default PasswordHasher. A zero Cost uses the
// build dependent package default.
type BcryptHasher struct {
	Cost int
}

var _ PasswordHasher = BcryptHasher{}

// NewBcryptHasher returns a hasher using cost
func NewBcryptHasher(cost int) BcryptHasher {
	return BcryptHasher{Cost: cost}
}

func (b BcryptHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	cost := b.Cost
	if cost == 0 {
		cost = passwordHashCost()
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}

func (b BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

func normalizeHasher(h PasswordHasher) PasswordHasher {
	if h == nil {
		return BcryptHasher{}
	}
	return h
}
