package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sakif/climate-crew/internal/apperror"
	"github.com/sakif/climate-crew/internal/auth"
	"github.com/sakif/climate-crew/internal/model"
	"github.com/sakif/climate-crew/internal/repository"
)

const (
	MinPasswordLength = 8
	MinUsernameLength = 3
	MaxUsernameLength = 32
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// UserService handles registration and login.
//
//	UserHandler → UserService → UserRepository
//	                          ↘ TaskRepository (zero-init on register)
//	                          ↘ PasswordService / TokenService
type UserService struct {
	users     repository.UserRepository
	tasks     repository.TaskRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	metrics   Recorder
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	tasks repository.TaskRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	metrics Recorder,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		tasks:     tasks,
		tokens:    tokens,
		passwords: passwords,
		metrics:   recorderOrNop(metrics),
		logger:    logger,
	}
}

// AuthResult bundles the user with a freshly issued token.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Register creates the account and its zeroed task row holding
// DefaultTaskText. A taken username or email is apperror.ErrConflict.
func (s *UserService) Register(ctx context.Context, username, password, email string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	switch {
	case len(username) < MinUsernameLength || len(username) > MaxUsernameLength:
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d to %d characters", MinUsernameLength, MaxUsernameLength))
	case !usernamePattern.MatchString(username):
		return nil, apperror.ValidationFailed("username",
			"username may only contain letters, digits, '.', '_' and '-'")
	case len(password) < MinPasswordLength:
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	case email != "" && !strings.Contains(email, "@"):
		return nil, apperror.ValidationFailed("email", "email address is invalid")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: creating user %s: %w", username, err)
	}

	// A failure here is recoverable: GetTask initializes the row on first read.
	if err := s.tasks.InitTask(ctx, user.ID, DefaultTaskText); err != nil {
		s.logger.Warn("task row not initialized at registration",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.metrics.UserRegistered()
	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Authenticate checks the credentials and issues a token. Unknown username
// and wrong password produce the same error so the response does not reveal
// which accounts exist.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*AuthResult, error) {
	invalid := apperror.Unauthorized("invalid username or password")

	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/user: looking up %s: %w", username, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Error("password verification failed",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, invalid
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/user: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user: fetching user %s: %w", id, err)
	}
	return user, nil
}
