package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sakif/climate-crew/internal/apperror"
	"github.com/sakif/climate-crew/internal/auth"
	"github.com/sakif/climate-crew/internal/model"
	"github.com/sakif/climate-crew/internal/service"
)

// SubmissionHandler serves the evidence feed.
//
//	POST /api/submissions              → store a submission (auth)
//	POST /api/submissions/complete     → store and complete the current task (auth)
//	GET  /api/submissions              → list, ?user=<id|me>&limit=
//	GET  /api/submissions/{id}         → one submission
//	GET  /api/submissions/{id}/image   → the raw image bytes
//	POST /api/submissions/{id}/upvote  → +1 (auth, rate limited)
type SubmissionHandler struct {
	subs   *service.SubmissionService
	logger *slog.Logger
}

func NewSubmissionHandler(subs *service.SubmissionService, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{subs: subs, logger: logger}
}

// submissionResponse is a submission as listed: the image is replaced by a
// URL so a page of twenty posts does not carry twenty photos.
type submissionResponse struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"userId"`
	TaskText       string    `json:"taskText"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	LocationText   string    `json:"locationText"`
	Description    string    `json:"description"`
	SubmissionDate string    `json:"submissionDate"`
	Upvotes        int       `json:"upvotes"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toResponse(s model.Submission) submissionResponse {
	resp := submissionResponse{
		ID:             s.ID,
		UserID:         s.UserID,
		TaskText:       s.TaskText,
		Latitude:       s.Latitude,
		Longitude:      s.Longitude,
		LocationText:   s.LocationText,
		Description:    s.Description,
		SubmissionDate: s.SubmissionDate,
		Upvotes:        s.Upvotes,
		CreatedAt:      s.CreatedAt,
	}
	if s.HasImage || len(s.Image) > 0 {
		resp.ImageURL = "/api/submissions/" + strconv.FormatInt(s.ID, 10) + "/image"
	}
	return resp
}

func toResponses(subs []model.Submission) []submissionResponse {
	out := make([]submissionResponse, len(subs))
	for i, s := range subs {
		out[i] = toResponse(s)
	}
	return out
}

// decodeSubmission reads the body and stamps the caller as the owner. A
// missing date defaults to today (UTC).
func decodeSubmission(w http.ResponseWriter, r *http.Request) (model.NewSubmission, error) {
	userID, err := currentUser(r)
	if err != nil {
		return model.NewSubmission{}, err
	}

	var in model.NewSubmission
	if err := decodeJSON(w, r, &in, false); err != nil {
		return model.NewSubmission{}, err
	}
	in.UserID = userID
	if in.SubmissionDate == "" {
		in.SubmissionDate = time.Now().UTC().Format(model.DateLayout)
	}
	return in, nil
}

// HandleCreate stores a submission without touching the task. The task text
// is whatever the client sends.
func (h *SubmissionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	in, err := decodeSubmission(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	sub, err := h.subs.AddSubmission(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(*sub))
}

type submitResponse struct {
	Submission   submissionResponse `json:"submission"`
	Task         model.TaskState    `json:"task"`
	PointsEarned int                `json:"pointsEarned"`
}

// HandleSubmitForTask is the "I did it" button: the current task text is
// snapshotted into the submission and the task is completed.
func (h *SubmissionHandler) HandleSubmitForTask(w http.ResponseWriter, r *http.Request) {
	in, err := decodeSubmission(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.subs.SubmitForTask(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{
		Submission:   toResponse(*res.Submission),
		Task:         res.Task,
		PointsEarned: res.PointsEarned,
	})
}

// HandleList lists submissions newest first. "?user=me" resolves to the
// caller and needs a token; any other value is taken as a user ID.
func (h *SubmissionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", service.DefaultListLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	userID := r.URL.Query().Get("user")
	if userID == "me" {
		id, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, apperror.Unauthorized("user=me requires authentication"))
			return
		}
		userID = id
	}

	subs, err := h.subs.ListSubmissions(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponses(subs))
}

func (h *SubmissionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	sub, err := h.subs.GetSubmission(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(*sub))
}

// HandleImage writes the stored bytes unchanged. The content type is
// sniffed because the store keeps no MIME type.
func (h *SubmissionHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	sub, err := h.subs.GetSubmission(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(sub.Image) == 0 {
		writeError(w, apperror.NotFound("image for submission", strconv.FormatInt(id, 10)))
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(sub.Image))
	w.Header().Set("Content-Length", strconv.Itoa(len(sub.Image)))
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(sub.Image); err != nil {
		h.logger.Warn("failed to write image", slog.Int64("id", id), slog.String("error", err.Error()))
	}
}

type upvoteResponse struct {
	ID      int64 `json:"id"`
	Upvotes int   `json:"upvotes"`
}

func (h *SubmissionHandler) HandleUpvote(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	n, err := h.subs.Upvote(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, upvoteResponse{ID: id, Upvotes: n})
}
