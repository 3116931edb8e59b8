package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/climate-crew/internal/model"
	"github.com/sakif/climate-crew/internal/service"
)

type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// HandleGet returns the caller's profile, creating it on first access.
//
// HTTP: GET /api/me/profile
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type updatedResponse struct {
	Updated bool `json:"updated"`
}

// HandlePatch applies only the fields present in the body.
//
// HTTP: PATCH /api/me/profile  {"city": "Nairobi"}
func (h *ProfileHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var patch model.ProfilePatch
	if err := decodeJSON(w, r, &patch, true); err != nil {
		writeError(w, err)
		return
	}

	ok, err := h.profiles.Update(r.Context(), userID, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updatedResponse{Updated: ok})
}
