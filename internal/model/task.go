package model

import "time"

// TaskState is the per-user gamification record: the task currently
// assigned, the points accumulated so far and how many tasks were completed.
//
// Points and CompletedCount never decrease. The only way to raise them is
// completing the current task.
type TaskState struct {
	UserID         string    `json:"userId"`
	CurrentTask    string    `json:"currentTask"`
	Points         int       `json:"points"`
	CompletedCount int       `json:"completedCount"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// LeaderboardEntry is a derived, never-persisted row of the leaderboard.
type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	Points         int    `json:"points"`
	CompletedCount int    `json:"completedCount"`
}
