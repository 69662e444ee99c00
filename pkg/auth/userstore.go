package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// SQLUserStore reads users from the "users" table.
// Queries are written with '?' placeholders and rebound for the driver in use.
type SQLUserStore struct {
	db *sqlx.DB
}

// NewSQLUserStore wraps an open database handle
func NewSQLUserStore(db *sqlx.DB) *SQLUserStore {
	return &SQLUserStore{db: db}
}

// FindUser implements UserStore
func (s *SQLUserStore) FindUser(ctx context.Context, id string) (*UserRecord, error) {
	var u UserRecord
	query := s.db.Rebind(`SELECT id, email, COALESCE(role, '') AS role, COALESCE(password_hash, '') AS password_hash FROM users WHERE id = ?`)
	if err := s.db.GetContext(ctx, &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return &u, nil
}

// FindUserByEmail looks a user up by login email, case-insensitively
func (s *SQLUserStore) FindUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	var u UserRecord
	query := s.db.Rebind(`SELECT id, email, COALESCE(role, '') AS role, COALESCE(password_hash, '') AS password_hash FROM users WHERE LOWER(email) = ?`)
	if err := s.db.GetContext(ctx, &u, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

// ListUsers returns a page of users ordered by email together with the total count
func (s *SQLUserStore) ListUsers(ctx context.Context, limit, offset int) ([]UserRecord, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	users := []UserRecord{}
	query := s.db.Rebind(`SELECT id, email, COALESCE(role, '') AS role, '' AS password_hash FROM users ORDER BY email LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &users, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}
