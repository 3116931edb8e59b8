package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/climate-crew/internal/model"
	"github.com/sakif/climate-crew/internal/taskgen"
)

func TestLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	low := env.register(t, "low")
	high := env.register(t, "high")
	tieFirst := env.register(t, "tie-first")
	tieSecond := env.register(t, "tie-second")

	for _, c := range []struct {
		user   string
		points int
	}{{low, 5}, {high, 50}, {tieFirst, 20}, {tieSecond, 20}} {
		_, err := env.tasks.CompleteTask(ctx, c.user, c.points)
		require.NoError(t, err)
	}

	rec := env.do(t, http.MethodGet, "/api/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]model.LeaderboardEntry](t, rec)

	var names []string
	for i, e := range entries {
		assert.Equal(t, i+1, e.Rank)
		names = append(names, e.Username)
	}
	assert.Equal(t, []string{"high", "tie-first", "tie-second", "low"}, names)

	rec = env.do(t, http.MethodGet, "/api/leaderboard?limit=2", "", nil)
	assert.Len(t, decode[[]model.LeaderboardEntry](t, rec), 2)
}

func TestMap(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/map", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"submissions":[],"viewport":null}`, rec.Body.String())

	uid := env.register(t, "greta")
	env.post(t, uid, "2024-04-22", "unlocated", nil)
	env.post(t, uid, "2024-04-22", "a", map[string]any{"latitude": 10.0, "longitude": 20.0})
	env.post(t, uid, "2024-04-22", "b", map[string]any{"latitude": 10.02, "longitude": 20.02})

	rec = env.do(t, http.MethodGet, "/api/map", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Submissions []listedSubmission `json:"submissions"`
		Viewport    *struct {
			Center struct{ Lat, Lng float64 } `json:"center"`
			Zoom   int                        `json:"zoom"`
		} `json:"viewport"`
	}](t, rec)

	assert.Len(t, body.Submissions, 2, "only located submissions are plotted")
	require.NotNil(t, body.Viewport)
	assert.InDelta(t, 10.01, body.Viewport.Center.Lat, 1e-9)
	assert.InDelta(t, 20.01, body.Viewport.Center.Lng, 1e-9)
	assert.Equal(t, 10, body.Viewport.Zoom)
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	uid := env.register(t, "greta")

	rec := env.do(t, http.MethodGet, "/api/me/profile", uid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "greta", decode[model.Profile](t, rec).Username)

	rec = env.do(t, http.MethodPatch, "/api/me/profile", uid, map[string]string{"city": "Stockholm"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":true}`, rec.Body.String())

	rec = env.do(t, http.MethodPatch, "/api/me/profile", uid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":false}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/me/profile", uid, nil)
	p := decode[model.Profile](t, rec)
	assert.Equal(t, "Stockholm", p.City)
	assert.Empty(t, p.Country)
}

type stubNews struct {
	articles []taskgen.Article
	err      error
	gotCount int
	gotDays  int
}

func (s *stubNews) ClimateNews(_ context.Context, count, days int) ([]taskgen.Article, error) {
	s.gotCount, s.gotDays = count, days
	return s.articles, s.err
}

func TestNews(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodGet, "/api/news", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("proxies articles", func(t *testing.T) {
		src := &stubNews{articles: []taskgen.Article{{Title: "Glacier retreat", SourceName: "Wire"}}}
		env := newTestEnv(t, func(o *envOptions) { o.news = src })

		rec := env.do(t, http.MethodGet, "/api/news?count=5&days=7", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[struct {
			News []taskgen.Article `json:"news"`
		}](t, rec)
		require.Len(t, body.News, 1)
		assert.Equal(t, "Glacier retreat", body.News[0].Title)
		assert.Equal(t, 5, src.gotCount)
		assert.Equal(t, 7, src.gotDays)
	})

	t.Run("upstream failure", func(t *testing.T) {
		src := &stubNews{err: fmt.Errorf("%w: status 500", taskgen.ErrUpstream)}
		env := newTestEnv(t, func(o *envOptions) { o.news = src })

		rec := env.do(t, http.MethodGet, "/api/news", "", nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, env.db.Close())
	rec = env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
