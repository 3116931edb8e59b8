package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/climate-crew/internal/apperror"
	"github.com/sakif/climate-crew/internal/model"
	"github.com/sakif/climate-crew/internal/repository"
)

const (
	// DefaultReward is the points awarded per completion unless configured.
	DefaultReward = 20

	// DefaultTaskText seeds a task row created on first read or registration.
	DefaultTaskText = "Take a reusable bag or bottle with you today instead of buying single-use plastic."

	// CompletedTaskText replaces the task text once it has been completed.
	CompletedTaskText = "Task completed! Generate a new one."
)

// ErrNoGenerator is returned by RefreshTask when no task generator is wired.
var ErrNoGenerator = errors.New("task generator not configured")

// TaskGenerator produces a task tailored to a profile. taskgen.Client
// satisfies it.
type TaskGenerator interface {
	GenerateTask(ctx context.Context, profile model.Profile) (text string, points int, err error)
}

// TaskService is the task lifecycle: assign, read, complete.
//
// STATE MACHINE (per user):
//
//	Uninitialized ──(register | first GetTask)──► Active
//	Active ──CompleteTask──► Active with CompletedTaskText
//	Active ──AssignTask/RefreshTask──► Active with new text
//
// Points only ever move in CompleteTask.
type TaskService struct {
	tasks     repository.TaskRepository
	profiles  repository.ProfileRepository
	generator TaskGenerator
	reward    int
	metrics   Recorder
	logger    *slog.Logger
}

type TaskOption func(*TaskService)

// WithReward overrides DefaultReward for SubmitForTask and the HTTP default.
func WithReward(points int) TaskOption {
	return func(s *TaskService) {
		if points > 0 {
			s.reward = points
		}
	}
}

// WithGenerator enables RefreshTask. profiles supplies the personalisation
// input for the generator.
func WithGenerator(profiles repository.ProfileRepository, gen TaskGenerator) TaskOption {
	return func(s *TaskService) {
		s.profiles = profiles
		s.generator = gen
	}
}

func WithTaskMetrics(r Recorder) TaskOption {
	return func(s *TaskService) { s.metrics = recorderOrNop(r) }
}

func NewTaskService(tasks repository.TaskRepository, logger *slog.Logger, opts ...TaskOption) *TaskService {
	s := &TaskService{
		tasks:   tasks,
		reward:  DefaultReward,
		metrics: nopRecorder{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reward is the configured points per completion.
func (s *TaskService) Reward() int { return s.reward }

// AssignTask overwrites the current task text and nothing else. reward is
// part of the generator contract (it travels with the generated text) but
// points are only credited by CompleteTask.
//
// It reports false instead of failing: an unknown user or a storage fault
// both leave the caller with "not assigned, try again".
func (s *TaskService) AssignTask(ctx context.Context, userID, taskText string, reward int) bool {
	if strings.TrimSpace(userID) == "" {
		return false
	}

	if err := s.tasks.SetTaskText(ctx, userID, taskText); err != nil {
		s.logger.Error("failed to assign task",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return false
	}

	s.metrics.TaskAssigned()
	s.logger.Info("task assigned",
		slog.String("userID", userID),
		slog.Int("offeredPoints", reward),
	)
	return true
}

// GetTask returns the user's task state.
//
// SIDE EFFECT ON READ:
// When the user has no task row yet, one is created with DefaultTaskText
// and zero points before returning. A first visit to the home screen must
// always show a task, so this is part of the contract rather than a lazy
// shortcut.
//
// Storage faults come back as apperror.ErrUnavailable; retrying is safe
// because initialization is insert-if-absent.
func (s *TaskService) GetTask(ctx context.Context, userID string) (model.TaskState, error) {
	if strings.TrimSpace(userID) == "" {
		return model.TaskState{}, apperror.ValidationFailed("userId", "user ID is required")
	}

	state, err := s.tasks.GetTask(ctx, userID)
	if err == nil {
		return *state, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return model.TaskState{}, fmt.Errorf("service/task: getting task: %w", err)
	}

	if err := s.tasks.InitTask(ctx, userID, DefaultTaskText); err != nil {
		return model.TaskState{}, fmt.Errorf("service/task: initializing task: %w", err)
	}
	s.logger.Info("task initialized on first read", slog.String("userID", userID))

	state, err = s.tasks.GetTask(ctx, userID)
	if err != nil {
		return model.TaskState{}, fmt.Errorf("service/task: getting task: %w", err)
	}
	return *state, nil
}

// CompleteTask credits reward points, bumps the completed count and replaces
// the task with CompletedTaskText in one atomic store operation.
//
// A user without a task row gets apperror.ErrNotFound and no row is created.
func (s *TaskService) CompleteTask(ctx context.Context, userID string, reward int) (model.TaskState, error) {
	if strings.TrimSpace(userID) == "" {
		return model.TaskState{}, apperror.ValidationFailed("userId", "user ID is required")
	}
	if reward <= 0 {
		return model.TaskState{}, apperror.ValidationFailed("points", "reward must be a positive number of points")
	}

	state, err := s.tasks.CompleteTask(ctx, userID, reward, CompletedTaskText)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to complete task",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
		}
		return model.TaskState{}, fmt.Errorf("service/task: completing task: %w", err)
	}

	s.metrics.TaskCompleted(reward)
	s.logger.Info("task completed",
		slog.String("userID", userID),
		slog.Int("reward", reward),
		slog.Int("points", state.Points),
		slog.Int("completed", state.CompletedCount),
	)
	return *state, nil
}

// GetStats is read-only telemetry: (points, completed) or (0, 0) when the
// user has no row or the store is unreachable. It never creates a row.
func (s *TaskService) GetStats(ctx context.Context, userID string) (points, completed int) {
	state, err := s.tasks.GetTask(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("stats unavailable",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
		}
		return 0, 0
	}
	return state.Points, state.CompletedCount
}

// RefreshTask asks the generator for a new task based on the user's profile
// and stores it through AssignTask. The generated text is stored verbatim.
func (s *TaskService) RefreshTask(ctx context.Context, userID string) (model.TaskState, error) {
	if s.generator == nil || s.profiles == nil {
		return model.TaskState{}, ErrNoGenerator
	}

	profile, err := s.profiles.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return model.TaskState{}, fmt.Errorf("service/task: loading profile: %w", err)
	}

	text, points, err := s.generator.GenerateTask(ctx, *profile)
	if err != nil {
		s.logger.Warn("task generation failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return model.TaskState{}, fmt.Errorf("service/task: generating task: %w", err)
	}
	if points <= 0 {
		points = s.reward
	}

	if !s.AssignTask(ctx, userID, text, points) {
		return model.TaskState{}, apperror.Unavailable("assigning generated task", nil)
	}

	return s.GetTask(ctx, userID)
}
