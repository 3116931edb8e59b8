// Package repository declares the storage contracts the service layer
// depends on. The sqlite subpackage implements all of them on a single *DB;
// tests substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/climate-crew/internal/model"
)

// SubmissionFilter narrows a submission listing. An empty UserID lists
// submissions from every user. Limit <= 0 means no limit; page sizes are
// the service's business.
type SubmissionFilter struct {
	UserID string
	Limit  int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

type ProfileRepository interface {
	// GetOrCreateProfile returns the profile, inserting one seeded from the
	// user row when none exists yet.
	GetOrCreateProfile(ctx context.Context, userID string) (*model.Profile, error)
	// UpdateProfile applies the non-nil fields of patch. It reports false
	// when no profile row matched.
	UpdateProfile(ctx context.Context, userID string, patch model.ProfilePatch) (bool, error)
}

type TaskRepository interface {
	// InitTask inserts a zeroed task row with the given text unless one exists.
	InitTask(ctx context.Context, userID, taskText string) error
	GetTask(ctx context.Context, userID string) (*model.TaskState, error)
	// SetTaskText overwrites current_task only, creating a zeroed row if needed.
	SetTaskText(ctx context.Context, userID, taskText string) error
	// CompleteTask atomically adds reward to points, increments the completed
	// count and replaces the task text. NotFound when no row exists.
	CompleteTask(ctx context.Context, userID string, reward int, nextText string) (*model.TaskState, error)
}

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, sub *model.Submission) error
	// CreateSubmissionForTask stores sub and completes the owner's task in
	// one transaction. The task must still read sub.TaskText, otherwise
	// nothing is written and Conflict is returned.
	CreateSubmissionForTask(ctx context.Context, sub *model.Submission, reward int, nextText string) (*model.TaskState, error)
	GetSubmission(ctx context.Context, id int64) (*model.Submission, error)
	// ListSubmissions leaves Image nil and sets HasImage.
	ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]model.Submission, error)
	// IncrementUpvotes adds exactly one upvote and returns the new count.
	IncrementUpvotes(ctx context.Context, id int64) (int, error)
}

type LeaderboardRepository interface {
	// Standings returns every user that has a task row, ordered by points
	// descending then by user insertion order. Rank is left zero.
	Standings(ctx context.Context) ([]model.LeaderboardEntry, error)
}
