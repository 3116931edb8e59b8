package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/climate-crew/internal/service"
	"github.com/sakif/climate-crew/internal/taskgen"
)

// NewsSource is satisfied by *taskgen.Client.
type NewsSource interface {
	ClimateNews(ctx context.Context, count, days int) ([]taskgen.Article, error)
}

// NewsHandler proxies the climate news feed. A nil source answers 503.
type NewsHandler struct {
	news   NewsSource
	logger *slog.Logger
}

func NewNewsHandler(news NewsSource, logger *slog.Logger) *NewsHandler {
	return &NewsHandler{news: news, logger: logger}
}

type newsResponse struct {
	News []taskgen.Article `json:"news"`
}

// HTTP: GET /api/news?count=10&days=3
func (h *NewsHandler) HandleNews(w http.ResponseWriter, r *http.Request) {
	if h.news == nil {
		writeError(w, service.ErrNoGenerator)
		return
	}

	count, err := intQuery(r, "count", taskgen.DefaultNewsCount)
	if err != nil {
		writeError(w, err)
		return
	}
	days, err := intQuery(r, "days", taskgen.DefaultNewsDays)
	if err != nil {
		writeError(w, err)
		return
	}

	articles, err := h.news.ClimateNews(r.Context(), count, days)
	if err != nil {
		writeError(w, err)
		return
	}
	if articles == nil {
		articles = []taskgen.Article{}
	}
	writeJSON(w, http.StatusOK, newsResponse{News: articles})
}
