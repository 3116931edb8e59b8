package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/sakif/climate-crew/internal/apperror"
	"github.com/sakif/climate-crew/internal/model"
	"github.com/sakif/climate-crew/internal/repository"
)

var _ repository.SubmissionRepository = (*DB)(nil)

const submissionCols = `id, user_id, task_text, image, latitude, longitude,
	location_text, description, submission_date, upvotes, created_at`

// submissionListCols leaves the image blob out of listings. Pages only need
// to know whether an image exists; the bytes are fetched one at a time.
const submissionListCols = `id, user_id, task_text, image IS NOT NULL AND length(image) > 0, latitude, longitude,
	location_text, description, submission_date, upvotes, created_at`

func scanSubmission(s scanner) (*model.Submission, error) {
	var (
		sub      model.Submission
		lat, lon sql.NullFloat64
	)
	err := s.Scan(
		&sub.ID, &sub.UserID, &sub.TaskText, &sub.Image, &lat, &lon,
		&sub.LocationText, &sub.Description, &sub.SubmissionDate,
		&sub.Upvotes, &sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Latitude = floatPtr(lat)
	sub.Longitude = floatPtr(lon)
	sub.HasImage = len(sub.Image) > 0
	return &sub, nil
}

func scanSubmissionSummary(s scanner) (*model.Submission, error) {
	var (
		sub      model.Submission
		lat, lon sql.NullFloat64
	)
	err := s.Scan(
		&sub.ID, &sub.UserID, &sub.TaskText, &sub.HasImage, &lat, &lon,
		&sub.LocationText, &sub.Description, &sub.SubmissionDate,
		&sub.Upvotes, &sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Latitude = floatPtr(lat)
	sub.Longitude = floatPtr(lon)
	return &sub, nil
}

// CreateSubmission appends a submission with zero upvotes and fills in the
// generated ID. Image bytes are stored as-is in a BLOB column.
//
// Returns apperror.ErrNotFound when the owning user does not exist.
func (db *DB) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	if err := insertSubmission(ctx, db.conn, sub); err != nil {
		return storeErr("creating submission", "submission", sub.UserID, err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSubmission(ctx context.Context, ex execer, sub *model.Submission) error {
	sub.Upvotes = 0
	sub.CreatedAt = time.Now().UTC()

	result, err := ex.ExecContext(ctx,
		`INSERT INTO submissions
			(user_id, task_text, image, latitude, longitude,
			 location_text, description, submission_date, upvotes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		sub.UserID,
		sub.TaskText,
		sub.Image,
		nullFloat(sub.Latitude),
		nullFloat(sub.Longitude),
		sub.LocationText,
		sub.Description,
		sub.SubmissionDate,
		sub.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	sub.ID = id
	sub.HasImage = len(sub.Image) > 0
	return nil
}

// CreateSubmissionForTask stores sub and completes its owner's task in one
// transaction, so a submission never exists without the points it earned.
//
// The completion only applies while current_task still equals sub.TaskText.
// When the task changed in the meantime nothing is written and the call
// returns apperror.ErrConflict; a missing task row is apperror.ErrNotFound.
func (db *DB) CreateSubmissionForTask(ctx context.Context, sub *model.Submission, reward int, nextText string) (*model.TaskState, error) {
	var state *model.TaskState

	err := db.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertSubmission(ctx, tx, sub); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE task_state
			 SET points          = points + ?,
			     completed_count = completed_count + 1,
			     current_task    = ?,
			     updated_at      = ?
			 WHERE user_id = ? AND current_task = ?`,
			reward, nextText, time.Now().UTC(), sub.UserID, sub.TaskText,
		)
		if err != nil {
			return err
		}

		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var current string
			err := tx.QueryRowContext(ctx,
				`SELECT current_task FROM task_state WHERE user_id = ?`, sub.UserID,
			).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("task state", sub.UserID)
			}
			if err != nil {
				return err
			}
			return apperror.Conflict("task state", sub.UserID)
		}

		state, err = scanTask(tx.QueryRowContext(ctx,
			`SELECT `+taskCols+` FROM task_state WHERE user_id = ?`, sub.UserID,
		))
		return err
	})
	if err != nil {
		sub.ID = 0
		return nil, storeErr("submitting for task", "submission", sub.UserID, err)
	}

	return state, nil
}

func (db *DB) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	key := strconv.FormatInt(id, 10)

	sub, err := scanSubmission(db.conn.QueryRowContext(ctx,
		`SELECT `+submissionCols+` FROM submissions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("submission", key)
		}
		return nil, storeErr("getting submission", "submission", key, err)
	}
	return sub, nil
}

// ListSubmissions returns the newest submissions first. Rows carry HasImage
// but not the image bytes. A Limit of zero or less returns every match;
// callers clamp page sizes.
//
// ORDERING:
// submission_date only has day granularity, so rows from the same day are
// ordered by id ascending (insertion order). Without the second key the
// order of same-day rows would be whatever the query plan produces, and two
// identical calls could disagree.
func (db *DB) ListSubmissions(ctx context.Context, filter repository.SubmissionFilter) ([]model.Submission, error) {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	// SQLite treats a negative LIMIT as no limit.
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	// One fixed statement for both cases: an empty user filter matches all rows.
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+submissionListCols+`
		 FROM submissions
		 WHERE (? = '' OR user_id = ?)
		 ORDER BY submission_date DESC, id ASC
		 LIMIT ?`,
		filter.UserID, filter.UserID, limit,
	)
	if err != nil {
		return nil, storeErr("listing submissions", "submission", filter.UserID, err)
	}
	defer rows.Close()

	subs := make([]model.Submission, 0, max(limit, 0))
	for rows.Next() {
		sub, err := scanSubmissionSummary(rows)
		if err != nil {
			return nil, storeErr("scanning submission row", "submission", filter.UserID, err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating submissions", "submission", filter.UserID, err)
	}

	return subs, nil
}

// IncrementUpvotes adds one upvote inside a transaction and returns the count
// the increment produced.
func (db *DB) IncrementUpvotes(ctx context.Context, id int64) (int, error) {
	key := strconv.FormatInt(id, 10)
	var upvotes int

	err := db.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE submissions SET upvotes = upvotes + 1 WHERE id = ?`, id,
		)
		if err != nil {
			return err
		}

		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.NotFound("submission", key)
		}

		return tx.QueryRowContext(ctx,
			`SELECT upvotes FROM submissions WHERE id = ?`, id,
		).Scan(&upvotes)
	})
	if err != nil {
		return 0, storeErr("upvoting submission", "submission", key, err)
	}

	return upvotes, nil
}
