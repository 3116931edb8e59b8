package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/climate-crew/internal/geo"
	"github.com/sakif/climate-crew/internal/service"
)

// mapLimit is how many submissions the map screen loads.
const mapLimit = service.MaxListLimit

type LeaderboardHandler struct {
	board  *service.LeaderboardService
	subs   *service.SubmissionService
	logger *slog.Logger
}

func NewLeaderboardHandler(board *service.LeaderboardService, subs *service.SubmissionService, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, subs: subs, logger: logger}
}

// HandleLeaderboard returns the ranking. limit <= 0 or absent returns
// everyone.
//
// HTTP: GET /api/leaderboard?limit=10
func (h *LeaderboardHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.board.Top(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type mapResponse struct {
	Submissions []submissionResponse `json:"submissions"`
	Viewport    *geo.Viewport        `json:"viewport"`
}

// HandleMap returns the located submissions among the latest ones plus a
// viewport that frames them. viewport is null when none has coordinates.
//
// HTTP: GET /api/map
func (h *LeaderboardHandler) HandleMap(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subs.ListSubmissions(r.Context(), "", mapLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := mapResponse{Submissions: []submissionResponse{}}
	for _, s := range subs {
		if s.HasLocation() {
			resp.Submissions = append(resp.Submissions, toResponse(s))
		}
	}
	if vp, ok := geo.Fit(geo.FromSubmissions(subs)); ok {
		resp.Viewport = &vp
	}
	writeJSON(w, http.StatusOK, resp)
}
