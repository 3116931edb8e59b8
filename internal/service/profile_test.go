package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/climate-crew/internal/apperror"
	"github.com/sakif/climate-crew/internal/model"
)

func str(s string) *string { return &s }

func TestProfileUpdate(t *testing.T) {
	store := newFakeStore()
	svc := NewProfileService(store, testLogger())
	uid := store.addUser(t, "greta")
	ctx := context.Background()

	// Update before the first Get still lands: the profile is created first.
	ok, err := svc.Update(ctx, uid, model.ProfilePatch{City: str("Stockholm")})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Update(ctx, uid, model.ProfilePatch{Occupation: str("student")})
	require.NoError(t, err)
	assert.True(t, ok)

	p, err := svc.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "Stockholm", p.City)
	assert.Equal(t, "student", p.Occupation)
	assert.Equal(t, "greta", p.Username)
}

func TestProfileUpdate_EmptyPatchIsNoop(t *testing.T) {
	store := newFakeStore()
	svc := NewProfileService(store, testLogger())

	ok, err := svc.Update(context.Background(), "anyone", model.ProfilePatch{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, store.calls["UpdateProfile"])
}

func TestProfileUpdate_Validation(t *testing.T) {
	store := newFakeStore()
	svc := NewProfileService(store, testLogger())
	uid := store.addUser(t, "greta")

	_, err := svc.Update(context.Background(), uid, model.ProfilePatch{
		Contact: str(strings.Repeat("9", MaxProfileFieldLength+1)),
	})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestProfileGet_UnknownUser(t *testing.T) {
	svc := NewProfileService(newFakeStore(), testLogger())

	_, err := svc.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
