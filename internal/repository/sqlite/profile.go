package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sakif/climate-crew/internal/apperror"
	"github.com/sakif/climate-crew/internal/model"
	"github.com/sakif/climate-crew/internal/repository"
)

var _ repository.ProfileRepository = (*DB)(nil)

const profileCols = `user_id, full_name, username, email, contact, city, country, occupation, image`

func scanProfile(s scanner) (*model.Profile, error) {
	var p model.Profile
	err := s.Scan(
		&p.UserID, &p.FullName, &p.Username, &p.Email,
		&p.Contact, &p.City, &p.Country, &p.Occupation, &p.Image,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOrCreateProfile returns the user's profile. When none exists yet, an
// empty one seeded with the username and email from the users table is
// inserted in the same transaction.
//
// Returns apperror.ErrNotFound when the user itself does not exist.
func (db *DB) GetOrCreateProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var profile *model.Profile

	err := db.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		p, err := scanProfile(tx.QueryRowContext(ctx,
			`SELECT `+profileCols+` FROM profiles WHERE user_id = ?`, userID,
		))
		if err == nil {
			profile = p
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		var username, email string
		err = tx.QueryRowContext(ctx,
			`SELECT username, email FROM users WHERE id = ?`, userID,
		).Scan(&username, &email)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("user", userID)
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (user_id, username, email) VALUES (?, ?, ?)`,
			userID, username, email,
		); err != nil {
			return err
		}

		profile = &model.Profile{UserID: userID, Username: username, Email: email}
		return nil
	})
	if err != nil {
		return nil, storeErr("getting profile", "profile", userID, err)
	}

	return profile, nil
}

// UpdateProfile applies a partial update. Every column is listed once in a
// fixed statement; COALESCE keeps the stored value for each nil field.
func (db *DB) UpdateProfile(ctx context.Context, userID string, patch model.ProfilePatch) (bool, error) {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE profiles SET
			contact    = COALESCE(?, contact),
			city       = COALESCE(?, city),
			country    = COALESCE(?, country),
			occupation = COALESCE(?, occupation),
			image      = COALESCE(?, image)
		 WHERE user_id = ?`,
		nullString(patch.Contact),
		nullString(patch.City),
		nullString(patch.Country),
		nullString(patch.Occupation),
		patch.Image,
		userID,
	)
	if err != nil {
		return false, storeErr("updating profile", "profile", userID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, storeErr("updating profile", "profile", userID, err)
	}
	return n > 0, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
