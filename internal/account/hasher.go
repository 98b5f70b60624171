package account

import (
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher is the one-way credential hasher.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(pw, digest string) bool
}

// BcryptHasher salts every digest, so hashing the same password twice
// yields different digests that both verify.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(pw, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(pw)) == nil
}
