package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/climate-crew/internal/apperror"
	"github.com/sakif/climate-crew/internal/model"
	"github.com/sakif/climate-crew/internal/repository"
)

const MaxProfileFieldLength = 100

type ProfileService struct {
	repo   repository.ProfileRepository
	logger *slog.Logger
}

func NewProfileService(repo repository.ProfileRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{repo: repo, logger: logger}
}

// Get returns the profile, creating an empty one on first access.
func (s *ProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.repo.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	return p, nil
}

// Update applies the set fields of patch. An empty patch changes nothing and
// reports false.
func (s *ProfileService) Update(ctx context.Context, userID string, patch model.ProfilePatch) (bool, error) {
	if patch.Empty() {
		return false, nil
	}

	fields := []struct {
		name  string
		value *string
	}{
		{"contact", patch.Contact},
		{"city", patch.City},
		{"country", patch.Country},
		{"occupation", patch.Occupation},
	}
	for _, f := range fields {
		if f.value != nil && len(*f.value) > MaxProfileFieldLength {
			return false, apperror.ValidationFailed(f.name,
				fmt.Sprintf("%s must be %d characters or less", f.name, MaxProfileFieldLength))
		}
	}
	if len(patch.Image) > MaxImageBytes {
		return false, apperror.ValidationFailed("image",
			fmt.Sprintf("image must be %d bytes or less", MaxImageBytes))
	}

	// The row may not exist yet; updates always apply to a created profile.
	if _, err := s.repo.GetOrCreateProfile(ctx, userID); err != nil {
		return false, fmt.Errorf("service/profile: %w", err)
	}

	ok, err := s.repo.UpdateProfile(ctx, userID, patch)
	if err != nil {
		return false, fmt.Errorf("service/profile: updating: %w", err)
	}
	if ok {
		s.logger.Info("profile updated", slog.String("userID", userID))
	}
	return ok, nil
}
