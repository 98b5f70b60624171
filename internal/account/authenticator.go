package account

import (
	"context"
	"errors"
	"fmt"
)

// Authenticator checks a username/password pair exactly as the caller
// supplied them and returns an error wrapping ErrInvalidCredentials when
// they do not match.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) error
}

// HasherAuthenticator looks the account up itself and verifies the password
// against the stored digest. Unknown usernames are reported the same way as
// wrong passwords.
type HasherAuthenticator struct {
	Repo   Repository
	Hasher PasswordHasher
}

func (a HasherAuthenticator) Authenticate(ctx context.Context, username, password string) error {
	const op = "account.Authenticate"
	name := normalize(username)
	if name == "" {
		return &Error{Op: op, Kind: ErrInvalidCredentials}
	}
	acc, err := a.Repo.FindByUsername(ctx, name)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return &Error{Op: op, Kind: ErrInvalidCredentials}
		}
		return fmt.Errorf("find account: %w", err)
	}
	if !a.Hasher.Verify(password, acc.PasswordHash) {
		return &Error{Op: op, Kind: ErrInvalidCredentials}
	}
	return nil
}
