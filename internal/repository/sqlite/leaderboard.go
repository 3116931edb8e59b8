package sqlite

import (
	"context"

	"github.com/sakif/climate-crew/internal/model"
	"github.com/sakif/climate-crew/internal/repository"
)

var _ repository.LeaderboardRepository = (*DB)(nil)

// Standings joins users with their task rows. The INNER JOIN drops users that
// never got a task row; they are absent from the ranking rather than shown
// with zero points.
//
// Equal points fall back to users.rowid, the order users were registered in.
func (db *DB) Standings(ctx context.Context) ([]model.LeaderboardEntry, error) {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.id, u.username, t.points, t.completed_count
		 FROM users u
		 JOIN task_state t ON t.user_id = u.id
		 ORDER BY t.points DESC, u.rowid ASC`,
	)
	if err != nil {
		return nil, storeErr("ranking users", "leaderboard", "", err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Points, &e.CompletedCount); err != nil {
			return nil, storeErr("scanning leaderboard row", "leaderboard", "", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating leaderboard", "leaderboard", "", err)
	}

	return entries, nil
}
