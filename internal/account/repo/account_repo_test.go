package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/account"
	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/account/entity"
)

var rowColumns = []string{
	"id", "username", "email_address", "password_hash", "email_verified",
	"first_name", "last_name", "phone", "created_at",
	"profile_account_id", "headline", "bio", "city", "country", "picture_url",
}

func newRepoWithMock(t *testing.T) (*AccountRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAccountRepo(sqlx.NewDb(db, "postgres")), mock
}

func TestFindByUsername_WithProfile(t *testing.T) {
	r, mock := newRepoWithMock(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(rowColumns).
		AddRow("100", "alice", "a@x.com", "$2a$hash", true, "Alice", "", "555", created,
			"100", "hello", "bio", "Riga", "LV", "http://pic")
	mock.ExpectQuery(`(?s)^SELECT .*FROM accounts a LEFT JOIN profiles p ON p\.account_id = a\.id WHERE a\.username = \$1$`).
		WithArgs("alice").
		WillReturnRows(rows)

	got, err := r.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "100", got.ID)
	assert.Equal(t, "a@x.com", got.EmailAddress)
	assert.True(t, got.EmailVerified)
	assert.Equal(t, created, got.CreatedAt)
	require.NotNil(t, got.Profile)
	assert.Equal(t, "Riga", got.Profile.City)
	assert.Equal(t, "100", got.Profile.AccountID)
	assert.Same(t, got, got.Profile.Account)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByEmail_WithoutProfile(t *testing.T) {
	r, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows(rowColumns).
		AddRow("7", "bob", "b@x.com", "h", false, "", "", "", time.Now(),
			nil, nil, nil, nil, nil, nil)
	mock.ExpectQuery(`WHERE a\.email_address = \$1$`).WithArgs("b@x.com").WillReturnRows(rows)

	got, err := r.FindByEmail(context.Background(), "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Username)
	assert.Nil(t, got.Profile)
}

func TestFindByUsername_NotFound(t *testing.T) {
	r, mock := newRepoWithMock(t)
	mock.ExpectQuery(`WHERE a\.username = \$1$`).WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(rowColumns))

	_, err := r.FindByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
}

func TestFindByEmail_DBError(t *testing.T) {
	r, mock := newRepoWithMock(t)
	mock.ExpectQuery(`WHERE a\.email_address = \$1$`).WillReturnError(errors.New("db down"))

	_, err := r.FindByEmail(context.Background(), "a@x.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, account.ErrAccountNotFound)
	assert.Contains(t, err.Error(), "db down")
}

func TestFindAll(t *testing.T) {
	r, mock := newRepoWithMock(t)
	now := time.Now()
	rows := sqlmock.NewRows(rowColumns).
		AddRow("1", "alice", "a@x.com", "h", true, "", "", "", now, nil, nil, nil, nil, nil, nil).
		AddRow("2", "bob", "b@x.com", "h", false, "", "", "", now, "2", "hi", "", "", "", "")
	mock.ExpectQuery(`ORDER BY a\.created_at, a\.id$`).WillReturnRows(rows)

	got, err := r.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].Profile)
	require.NotNil(t, got[1].Profile)
	assert.Equal(t, "hi", got[1].Profile.Headline)
}

func TestSave_AccountAndProfile(t *testing.T) {
	r, mock := newRepoWithMock(t)
	created := time.Now().UTC()
	a := &entity.Account{ID: "9", Username: "carol", EmailAddress: "c@x.com", PasswordHash: "h", CreatedAt: created}
	a.AttachProfile(&entity.Profile{Bio: "hey"})

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)INSERT INTO accounts.*ON CONFLICT \(id\) DO UPDATE SET`).
		WithArgs("9", "carol", "c@x.com", "h", false, "", "", "", created).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)INSERT INTO profiles.*ON CONFLICT \(account_id\) DO UPDATE SET`).
		WithArgs("9", "", "hey", "", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := r.Save(context.Background(), a)
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_WithoutProfileSkipsProfileUpsert(t *testing.T) {
	r, mock := newRepoWithMock(t)
	a := &entity.Account{ID: "9", Username: "carol", EmailAddress: "c@x.com", PasswordHash: "h"}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO accounts`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := r.Save(context.Background(), a)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_UniqueViolations(t *testing.T) {
	cases := []struct {
		constraint string
		kind       error
	}{
		{constraint: usernameConstraint, kind: account.ErrUsernameExists},
		{constraint: emailConstraint, kind: account.ErrEmailExists},
	}
	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			r, mock := newRepoWithMock(t)
			mock.ExpectBegin()
			mock.ExpectExec(`INSERT INTO accounts`).
				WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: tc.constraint})
			mock.ExpectRollback()

			_, err := r.Save(context.Background(), &entity.Account{ID: "1", Username: "alice", EmailAddress: "a@x.com"})
			assert.ErrorIs(t, err, tc.kind)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSave_OtherErrorIsWrapped(t *testing.T) {
	r, mock := newRepoWithMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO accounts`).WillReturnError(errors.New("conn reset"))
	mock.ExpectRollback()

	_, err := r.Save(context.Background(), &entity.Account{ID: "1"})
	require.Error(t, err)
	assert.Equal(t, "internal", account.Code(err))
	assert.Contains(t, err.Error(), "conn reset")
}

func TestEnsureTable(t *testing.T) {
	r, mock := newRepoWithMock(t)
	mock.ExpectExec(`(?s)CREATE TABLE IF NOT EXISTS accounts.*CONSTRAINT accounts_username_key UNIQUE.*CREATE TABLE IF NOT EXISTS profiles`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, r.EnsureTable(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
