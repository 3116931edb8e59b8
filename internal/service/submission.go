package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/climate-crew/internal/apperror"
	"github.com/sakif/climate-crew/internal/model"
	"github.com/sakif/climate-crew/internal/repository"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100

	MaxImageBytes        = 5 << 20
	MaxDescriptionLength = 2000
	MaxLocationLength    = 200
)

// SubmissionService stores and serves task evidence.
type SubmissionService struct {
	subs    repository.SubmissionRepository
	tasks   *TaskService
	metrics Recorder
	logger  *slog.Logger
}

// NewSubmissionService wires the service. tasks is only needed by
// SubmitForTask and may be nil for read-only callers.
func NewSubmissionService(subs repository.SubmissionRepository, tasks *TaskService, metrics Recorder, logger *slog.Logger) *SubmissionService {
	return &SubmissionService{
		subs:    subs,
		tasks:   tasks,
		metrics: recorderOrNop(metrics),
		logger:  logger,
	}
}

// validateSubmission enforces the insert rules. A lone latitude or
// longitude is rejected rather than silently dropped.
func validateSubmission(in model.NewSubmission) error {
	if strings.TrimSpace(in.UserID) == "" {
		return apperror.ValidationFailed("userId", "user ID is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return apperror.ValidationFailed("description", "description is required")
	}
	if len(in.Description) > MaxDescriptionLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	if len(in.LocationText) > MaxLocationLength {
		return apperror.ValidationFailed("locationText",
			fmt.Sprintf("location must be %d characters or less", MaxLocationLength))
	}

	if strings.TrimSpace(in.SubmissionDate) == "" {
		return apperror.ValidationFailed("submissionDate", "submission date is required")
	}
	if _, err := time.Parse(model.DateLayout, in.SubmissionDate); err != nil {
		return apperror.ValidationFailed("submissionDate", "submission date must be YYYY-MM-DD")
	}

	switch {
	case in.Latitude != nil && in.Longitude == nil:
		return apperror.ValidationFailed("longitude", "longitude is required when latitude is set")
	case in.Latitude == nil && in.Longitude != nil:
		return apperror.ValidationFailed("latitude", "latitude is required when longitude is set")
	case in.Latitude != nil:
		if *in.Latitude < -90 || *in.Latitude > 90 {
			return apperror.ValidationFailed("latitude", "latitude must be between -90 and 90")
		}
		if *in.Longitude < -180 || *in.Longitude > 180 {
			return apperror.ValidationFailed("longitude", "longitude must be between -180 and 180")
		}
	}

	if len(in.Image) > MaxImageBytes {
		return apperror.ValidationFailed("image",
			fmt.Sprintf("image must be %d bytes or less", MaxImageBytes))
	}
	return nil
}

func newRecord(in model.NewSubmission) *model.Submission {
	return &model.Submission{
		UserID:         in.UserID,
		TaskText:       in.TaskText,
		Image:          in.Image,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		LocationText:   strings.TrimSpace(in.LocationText),
		Description:    strings.TrimSpace(in.Description),
		SubmissionDate: in.SubmissionDate,
	}
}

// AddSubmission validates and stores a submission with zero upvotes.
func (s *SubmissionService) AddSubmission(ctx context.Context, in model.NewSubmission) (*model.Submission, error) {
	if err := validateSubmission(in); err != nil {
		return nil, err
	}

	sub := newRecord(in)
	if err := s.subs.CreateSubmission(ctx, sub); err != nil {
		s.logger.Error("failed to create submission",
			slog.String("userID", in.UserID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/submission: creating submission: %w", err)
	}

	s.metrics.SubmissionCreated()
	s.logger.Info("submission created",
		slog.Int64("id", sub.ID),
		slog.String("userID", sub.UserID),
		slog.Bool("located", sub.HasLocation()),
	)
	return sub, nil
}

// ListSubmissions returns up to limit submissions, newest date first and
// same-day rows in insertion order. An empty userID lists everyone's.
func (s *SubmissionService) ListSubmissions(ctx context.Context, userID string, limit int) ([]model.Submission, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	subs, err := s.subs.ListSubmissions(ctx, repository.SubmissionFilter{
		UserID: strings.TrimSpace(userID),
		Limit:  limit,
	})
	if err != nil {
		s.logger.Error("failed to list submissions", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/submission: listing submissions: %w", err)
	}
	return subs, nil
}

func (s *SubmissionService) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	if id <= 0 {
		return nil, apperror.NotFound("submission", strconv.FormatInt(id, 10))
	}
	return s.subs.GetSubmission(ctx, id)
}

// Upvote adds exactly one upvote and returns the new count.
func (s *SubmissionService) Upvote(ctx context.Context, id int64) (int, error) {
	if id <= 0 {
		return 0, apperror.NotFound("submission", strconv.FormatInt(id, 10))
	}

	n, err := s.subs.IncrementUpvotes(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("service/submission: upvoting: %w", err)
	}

	s.metrics.SubmissionUpvoted()
	s.logger.Info("submission upvoted", slog.Int64("id", id), slog.Int("upvotes", n))
	return n, nil
}

// SubmitResult is what the submit screen shows after sending evidence.
type SubmitResult struct {
	Submission   *model.Submission `json:"submission"`
	Task         model.TaskState   `json:"task"`
	PointsEarned int               `json:"pointsEarned"`
}

// SubmitForTask is the full "I did it" flow: snapshot the current task text
// into the submission, then store it and complete the task with the
// configured reward in one store transaction. Either both happen or
// neither does, so a failed call can be retried safely.
//
// A user whose task was already completed (text is CompletedTaskText) has
// nothing to submit for and gets a validation error. A task replaced between
// the snapshot and the write yields apperror.ErrConflict.
func (s *SubmissionService) SubmitForTask(ctx context.Context, in model.NewSubmission) (*SubmitResult, error) {
	if s.tasks == nil {
		return nil, fmt.Errorf("service/submission: task service not configured")
	}
	if err := validateSubmission(in); err != nil {
		return nil, err
	}

	state, err := s.tasks.GetTask(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(state.CurrentTask) == "" || state.CurrentTask == CompletedTaskText {
		return nil, apperror.ValidationFailed("task", "no task assigned, generate a new one first")
	}

	in.TaskText = state.CurrentTask
	sub := newRecord(in)
	reward := s.tasks.Reward()

	completed, err := s.subs.CreateSubmissionForTask(ctx, sub, reward, CompletedTaskText)
	if err != nil {
		if !errors.Is(err, apperror.ErrConflict) && !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to submit for task",
				slog.String("userID", in.UserID),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("service/submission: submitting for task: %w", err)
	}

	s.metrics.SubmissionCreated()
	s.metrics.TaskCompleted(reward)
	s.logger.Info("task completed with submission",
		slog.Int64("id", sub.ID),
		slog.String("userID", sub.UserID),
		slog.Int("reward", reward),
		slog.Int("points", completed.Points),
		slog.Int("completed", completed.CompletedCount),
	)

	return &SubmitResult{
		Submission:   sub,
		Task:         *completed,
		PointsEarned: reward,
	}, nil
}
