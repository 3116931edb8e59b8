package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/climate-crew/internal/apperror"
	"github.com/sakif/climate-crew/internal/service"
)

// TaskHandler exposes the caller's own task lifecycle. Every route sits
// behind auth.RequireAuth; a user can only touch their own task.
type TaskHandler struct {
	tasks  *service.TaskService
	logger *slog.Logger
}

func NewTaskHandler(tasks *service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

// HandleGet returns the task state, provisioning it on first read.
//
// HTTP: GET /api/me/task
func (h *TaskHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	state, err := h.tasks.GetTask(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type assignRequest struct {
	Task   string `json:"task"`
	Points int    `json:"points"`
}

// HandleAssign stores caller-supplied task text, typically what the client
// got back from the task generator.
//
// HTTP: PUT /api/me/task  {"task": "...", "points": 20}
func (h *TaskHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req assignRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Task) == "" {
		writeError(w, apperror.ValidationFailed("task", "task text is required"))
		return
	}

	if !h.tasks.AssignTask(r.Context(), userID, req.Task, req.Points) {
		writeError(w, apperror.Unavailable("assigning task", nil))
		return
	}

	state, err := h.tasks.GetTask(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type completeRequest struct {
	Points *int `json:"points,omitempty"`
}

// HandleComplete credits points and marks the task done. Without a body the
// configured reward is used.
//
// HTTP: POST /api/me/task/complete  {"points": 20}?
func (h *TaskHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req completeRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, err)
		return
	}
	reward := h.tasks.Reward()
	if req.Points != nil {
		reward = *req.Points
	}

	state, err := h.tasks.CompleteTask(r.Context(), userID, reward)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleRefresh asks the task generator for a new personalised task.
//
// HTTP: POST /api/me/task/refresh
func (h *TaskHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	state, err := h.tasks.RefreshTask(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type statsResponse struct {
	Points         int `json:"points"`
	CompletedCount int `json:"completedCount"`
}

// HandleStats never fails: an unknown user or a store fault reads as zeros.
//
// HTTP: GET /api/me/stats
func (h *TaskHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	points, completed := h.tasks.GetStats(r.Context(), userID)
	writeJSON(w, http.StatusOK, statsResponse{Points: points, CompletedCount: completed})
}
