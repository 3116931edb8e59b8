package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/climate-crew/internal/feed"
)

// FeedHandler drives one feed coordinator per caller. The coordinator keeps
// the cursor server-side so a thin client only renders State.
//
//	GET  /api/feed              → current state
//	POST /api/feed/next|prev    → move the cursor (no wrap)
//	POST /api/feed/toggle       → all posts / only mine
//	POST /api/feed/reload       → refetch the page
//	POST /api/feed/upvote/{id}  → upvote and patch the loaded copy
type FeedHandler struct {
	sessions *feed.Sessions
	logger   *slog.Logger
}

func NewFeedHandler(sessions *feed.Sessions, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{sessions: sessions, logger: logger}
}

// withCoordinator resolves the caller's coordinator, applies fn and answers
// with the resulting state.
func (h *FeedHandler) withCoordinator(w http.ResponseWriter, r *http.Request, fn func(context.Context, *feed.Coordinator) error) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	coord, err := h.sessions.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if fn != nil {
		if err := fn(r.Context(), coord); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, feedState(coord.Snapshot()))
}

func (h *FeedHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	h.withCoordinator(w, r, nil)
}

func (h *FeedHandler) HandleNext(w http.ResponseWriter, r *http.Request) {
	h.withCoordinator(w, r, func(_ context.Context, c *feed.Coordinator) error {
		c.Next()
		return nil
	})
}

func (h *FeedHandler) HandlePrev(w http.ResponseWriter, r *http.Request) {
	h.withCoordinator(w, r, func(_ context.Context, c *feed.Coordinator) error {
		c.Prev()
		return nil
	})
}

func (h *FeedHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	h.withCoordinator(w, r, func(ctx context.Context, c *feed.Coordinator) error {
		return c.ToggleMine(ctx)
	})
}

func (h *FeedHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	h.withCoordinator(w, r, func(ctx context.Context, c *feed.Coordinator) error {
		return c.Load(ctx)
	})
}

func (h *FeedHandler) HandleUpvote(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.withCoordinator(w, r, func(ctx context.Context, c *feed.Coordinator) error {
		_, err := c.Upvote(ctx, id)
		return err
	})
}

// feedStateResponse mirrors feed.State with the post's image swapped for a URL.
type feedStateResponse struct {
	Post    *submissionResponse `json:"post"`
	Index   int                 `json:"index"`
	Total   int                 `json:"total"`
	Mine    bool                `json:"mine"`
	HasNext bool                `json:"hasNext"`
	HasPrev bool                `json:"hasPrev"`
}

func feedState(st feed.State) feedStateResponse {
	resp := feedStateResponse{
		Index:   st.Index,
		Total:   st.Total,
		Mine:    st.Mine,
		HasNext: st.HasNext,
		HasPrev: st.HasPrev,
	}
	if st.Post != nil {
		post := toResponse(*st.Post)
		resp.Post = &post
	}
	return resp
}
