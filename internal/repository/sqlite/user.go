package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/climate-crew/internal/apperror"
	"github.com/sakif/climate-crew/internal/model"
	"github.com/sakif/climate-crew/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userCols = `id, username, email, password_hash, created_at`

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user. The ID is generated here with xid:
// 20 URL-safe chars, sortable by creation time.
//
// Returns apperror.ErrConflict when the username (or a non-empty email) is
// already taken.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	user.ID = xid.New().String()
	user.CreatedAt = time.Now()
	user.Email = strings.TrimSpace(user.Email)

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, email, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.Email,
		user.CreatedAt,
	)
	if err != nil {
		return storeErr("creating user", "user", user.Username, err)
	}

	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, storeErr("getting user", "user", id, err)
	}
	return u, nil
}

// GetUserByUsername is the login lookup.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE username = ?`, username,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, storeErr("getting user by username", "user", username, err)
	}
	return u, nil
}
