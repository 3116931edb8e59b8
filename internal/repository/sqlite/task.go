package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sakif/climate-crew/internal/apperror"
	"github.com/sakif/climate-crew/internal/model"
	"github.com/sakif/climate-crew/internal/repository"
)

var _ repository.TaskRepository = (*DB)(nil)

const taskCols = `user_id, current_task, points, completed_count, updated_at`

func scanTask(s scanner) (*model.TaskState, error) {
	var ts model.TaskState
	if err := s.Scan(&ts.UserID, &ts.CurrentTask, &ts.Points, &ts.CompletedCount, &ts.UpdatedAt); err != nil {
		return nil, err
	}
	return &ts, nil
}

// InitTask inserts a zeroed task row. An existing row is left untouched, so
// calling it twice (registration followed by a first read) is harmless.
func (db *DB) InitTask(ctx context.Context, userID, taskText string) error {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO task_state (user_id, current_task, points, completed_count, updated_at)
		 VALUES (?, ?, 0, 0, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, taskText, time.Now().UTC(),
	)
	if err != nil {
		return storeErr("initializing task", "task state", userID, err)
	}
	return nil
}

func (db *DB) GetTask(ctx context.Context, userID string) (*model.TaskState, error) {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	ts, err := scanTask(db.conn.QueryRowContext(ctx,
		`SELECT `+taskCols+` FROM task_state WHERE user_id = ?`, userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("task state", userID)
		}
		return nil, storeErr("getting task", "task state", userID, err)
	}
	return ts, nil
}

// SetTaskText replaces the current task text. Points and the completed count
// are never part of the SET list; a missing row is created zeroed.
//
// UPSERT:
// ON CONFLICT ... DO UPDATE turns "insert or overwrite" into one statement,
// so there is no window between a SELECT and the write.
func (db *DB) SetTaskText(ctx context.Context, userID, taskText string) error {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO task_state (user_id, current_task, points, completed_count, updated_at)
		 VALUES (?, ?, 0, 0, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
			current_task = excluded.current_task,
			updated_at   = excluded.updated_at`,
		userID, taskText, time.Now().UTC(),
	)
	if err != nil {
		return storeErr("assigning task", "task state", userID, err)
	}
	return nil
}

// CompleteTask awards reward points for the current task.
//
// ATOMIC INCREMENT:
// The arithmetic happens inside the UPDATE (points = points + ?), never as
// read-in-Go-then-write, so two concurrent completions cannot lose an update.
// The follow-up SELECT runs in the same transaction and sees exactly the
// values this call produced.
func (db *DB) CompleteTask(ctx context.Context, userID string, reward int, nextText string) (*model.TaskState, error) {
	var state *model.TaskState

	err := db.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE task_state
			 SET points          = points + ?,
			     completed_count = completed_count + 1,
			     current_task    = ?,
			     updated_at      = ?
			 WHERE user_id = ?`,
			reward, nextText, time.Now().UTC(), userID,
		)
		if err != nil {
			return err
		}

		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.NotFound("task state", userID)
		}

		state, err = scanTask(tx.QueryRowContext(ctx,
			`SELECT `+taskCols+` FROM task_state WHERE user_id = ?`, userID,
		))
		return err
	})
	if err != nil {
		return nil, storeErr("completing task", "task state", userID, err)
	}

	return state, nil
}
