package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/account"
	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/account/entity"
)

const (
	usernameConstraint = "accounts_username_key"
	emailConstraint    = "accounts_email_address_key"
	uniqueViolation    = "23505"
)

// AccountRepo stores accounts and their profiles in PostgreSQL using sqlx.
type AccountRepo struct {
	db *sqlx.DB
}

func NewAccountRepo(db *sqlx.DB) *AccountRepo { return &AccountRepo{db: db} }

// EnsureTable creates the accounts and profiles tables if not exists (idempotent).
// Uniqueness of username and email is enforced here; the service-level check
// only gives earlier, clearer errors.
func (r *AccountRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS accounts (
  id TEXT PRIMARY KEY,
  username CITEXT NOT NULL,
  email_address CITEXT NOT NULL,
  password_hash TEXT NOT NULL CHECK (password_hash <> ''),
  email_verified BOOLEAN NOT NULL DEFAULT false,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT accounts_username_key UNIQUE (username),
  CONSTRAINT accounts_email_address_key UNIQUE (email_address)
);
CREATE TABLE IF NOT EXISTS profiles (
  account_id TEXT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
  headline TEXT NOT NULL DEFAULT '',
  bio TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  country TEXT NOT NULL DEFAULT '',
  picture_url TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_accounts_created_at ON accounts(created_at);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const selectAccount = `SELECT a.id, a.username, a.email_address, a.password_hash, a.email_verified,
		a.first_name, a.last_name, a.phone, a.created_at,
		p.account_id AS profile_account_id, p.headline, p.bio, p.city, p.country, p.picture_url
	FROM accounts a LEFT JOIN profiles p ON p.account_id = a.id`

// accountRow is one row of the accounts/profiles left join; the profile
// columns are NULL when the account has no profile.
type accountRow struct {
	entity.Account
	ProfileAccountID sql.NullString `db:"profile_account_id"`
	Headline         sql.NullString `db:"headline"`
	Bio              sql.NullString `db:"bio"`
	City             sql.NullString `db:"city"`
	Country          sql.NullString `db:"country"`
	PictureURL       sql.NullString `db:"picture_url"`
}

func (row *accountRow) toEntity() *entity.Account {
	a := row.Account
	if row.ProfileAccountID.Valid {
		a.AttachProfile(&entity.Profile{
			Headline:   row.Headline.String,
			Bio:        row.Bio.String,
			City:       row.City.String,
			Country:    row.Country.String,
			PictureURL: row.PictureURL.String,
		})
	}
	return &a
}

// FindByUsername returns the account with the given username or account.ErrAccountNotFound.
func (r *AccountRepo) FindByUsername(ctx context.Context, username string) (*entity.Account, error) {
	return r.getOne(ctx, selectAccount+` WHERE a.username = $1`, username)
}

// FindByEmail returns the account with the given email address or account.ErrAccountNotFound.
func (r *AccountRepo) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return r.getOne(ctx, selectAccount+` WHERE a.email_address = $1`, email)
}

func (r *AccountRepo) getOne(ctx context.Context, q string, arg string) (*entity.Account, error) {
	var row accountRow
	if err := r.db.GetContext(ctx, &row, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrAccountNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return row.toEntity(), nil
}

// FindAll returns every account, oldest first.
func (r *AccountRepo) FindAll(ctx context.Context) ([]*entity.Account, error) {
	var rows []accountRow
	if err := r.db.SelectContext(ctx, &rows, selectAccount+` ORDER BY a.created_at, a.id`); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	out := make([]*entity.Account, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, nil
}

// Save upserts the account and, when present, its profile in one transaction.
// Username and created_at are never rewritten by an update.
func (r *AccountRepo) Save(ctx context.Context, a *entity.Account) (*entity.Account, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const upsertAccount = `INSERT INTO accounts
		(id, username, email_address, password_hash, email_verified, first_name, last_name, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
		  email_address = EXCLUDED.email_address,
		  password_hash = EXCLUDED.password_hash,
		  email_verified = EXCLUDED.email_verified,
		  first_name = EXCLUDED.first_name,
		  last_name = EXCLUDED.last_name,
		  phone = EXCLUDED.phone`
	if _, err := tx.ExecContext(ctx, upsertAccount,
		a.ID, a.Username, a.EmailAddress, a.PasswordHash, a.EmailVerified,
		a.FirstName, a.LastName, a.Phone, a.CreatedAt,
	); err != nil {
		return nil, mapWriteError(a, err)
	}

	if p := a.Profile; p != nil {
		p.AccountID = a.ID
		const upsertProfile = `INSERT INTO profiles
			(account_id, headline, bio, city, country, picture_url)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (account_id) DO UPDATE SET
			  headline = EXCLUDED.headline,
			  bio = EXCLUDED.bio,
			  city = EXCLUDED.city,
			  country = EXCLUDED.country,
			  picture_url = EXCLUDED.picture_url`
		if _, err := tx.ExecContext(ctx, upsertProfile,
			p.AccountID, p.Headline, p.Bio, p.City, p.Country, p.PictureURL,
		); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, mapWriteError(a, err)
	}
	return a, nil
}

// mapWriteError turns unique violations into the account error kinds.
func mapWriteError(a *entity.Account, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case usernameConstraint:
			return &account.Error{Op: "repo.Save", Kind: account.ErrUsernameExists, Detail: "username already exists, " + a.Username}
		case emailConstraint:
			return &account.Error{Op: "repo.Save", Kind: account.ErrEmailExists, Detail: "email already exists, " + a.EmailAddress}
		}
	}
	return fmt.Errorf("db error: %w", err)
}
