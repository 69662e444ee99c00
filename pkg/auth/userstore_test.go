package auth

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockUserStore(t *testing.T) (*SQLUserStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLUserStore(sqlx.NewDb(db, "postgres")), mock
}

func TestSQLUserStore_FindUser(t *testing.T) {
	store, mock := newMockUserStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "password_hash"}).
			AddRow("u-1", "ayse@example.org", "gorevli", ""))

	u, err := store.FindUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, &UserRecord{ID: "u-1", Email: "ayse@example.org", Role: "gorevli"}, u)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLUserStore_FindUser_NotFound(t *testing.T) {
	store, mock := newMockUserStore(t)

	mock.ExpectQuery(`FROM users WHERE id`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.FindUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSQLUserStore_FindUser_DatabaseError(t *testing.T) {
	store, mock := newMockUserStore(t)

	mock.ExpectQuery(`FROM users WHERE id`).
		WithArgs("u-1").
		WillReturnError(errors.New("connection reset"))

	_, err := store.FindUser(context.Background(), "u-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestSQLUserStore_ListUsers(t *testing.T) {
	store, mock := newMockUserStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY email LIMIT $1 OFFSET $2`)).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "password_hash"}).
			AddRow("u-1", "a@example.org", "admin", "").
			AddRow("u-2", "b@example.org", "", ""))

	users, total, err := store.ListUsers(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, users, 2)
	assert.Equal(t, "admin", users[0].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func newSQLiteUserStore(t *testing.T) *SQLUserStore {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	db.MustExec(`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		role TEXT,
		password_hash TEXT
	)`)
	return NewSQLUserStore(db)
}

func TestSQLUserStore_SQLite(t *testing.T) {
	store := newSQLiteUserStore(t)
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)

	store.db.MustExec(`INSERT INTO users (id, email, role, password_hash) VALUES (?, ?, ?, ?)`, "u-1", "Ayse@Example.org", "muhasebe", hash)
	store.db.MustExec(`INSERT INTO users (id, email) VALUES (?, ?)`, "u-2", "mehmet@example.org")

	u, err := store.FindUser(context.Background(), "u-2")
	require.NoError(t, err)
	assert.Equal(t, "", u.Role)

	byEmail, err := store.FindUserByEmail(context.Background(), " ayse@example.org ")
	require.NoError(t, err)
	assert.Equal(t, "u-1", byEmail.ID)
	assert.Equal(t, hash, byEmail.PasswordHash)

	_, err = store.FindUserByEmail(context.Background(), "nobody@example.org")
	assert.ErrorIs(t, err, ErrUserNotFound)

	users, total, err := store.ListUsers(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, users, 1)
	assert.Equal(t, "mehmet@example.org", users[0].Email)
	assert.Empty(t, users[0].PasswordHash)
}

type countingStore struct {
	calls int
	err   error
}

func (s *countingStore) FindUser(_ context.Context, id string) (*UserRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &UserRecord{ID: id, Role: "uye"}, nil
}

func TestCachedUserStore(t *testing.T) {
	next := &countingStore{}
	cache := NewCachedUserStore(next, 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		u, err := cache.FindUser(ctx, "u-1")
		require.NoError(t, err)
		assert.Equal(t, "u-1", u.ID)
	}
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, 1, cache.Len())

	cache.Invalidate("u-1")
	_, err := cache.FindUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedUserStore_DoesNotCacheErrors(t *testing.T) {
	next := &countingStore{err: errors.New("db down")}
	cache := NewCachedUserStore(next, 10, time.Minute)

	_, err := cache.FindUser(context.Background(), "u-1")
	assert.Error(t, err)
	_, err = cache.FindUser(context.Background(), "u-1")
	assert.Error(t, err)
	assert.Equal(t, 2, next.calls)
	assert.Equal(t, 0, cache.Len())
}

func TestCachedUserStore_ReturnsCopies(t *testing.T) {
	cache := NewCachedUserStore(&countingStore{}, 10, time.Minute)

	u, err := cache.FindUser(context.Background(), "u-1")
	require.NoError(t, err)
	u.Role = "admin"

	again, err := cache.FindUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "uye", again.Role)
}
