package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/climate-crew/internal/auth"
	"github.com/sakif/climate-crew/internal/feed"
	"github.com/sakif/climate-crew/internal/handler"
	"github.com/sakif/climate-crew/internal/model"
	"github.com/sakif/climate-crew/internal/repository/sqlite"
	"github.com/sakif/climate-crew/internal/service"
)

// testEnv is a router over real services backed by an in-memory store.
// Requests are authenticated by putting the user ID straight into the
// context, the same thing auth.RequireAuth does after validating a token.
type testEnv struct {
	db     *sqlite.DB
	tokens *auth.TokenService
	users  *service.UserService
	tasks  *service.TaskService
	subs   *service.SubmissionService
	router chi.Router
}

type stubGenerator struct {
	text   string
	points int
	err    error
}

func (g stubGenerator) GenerateTask(context.Context, model.Profile) (string, int, error) {
	return g.text, g.points, g.err
}

type envOptions struct {
	generator service.TaskGenerator
	news      handler.NewsSource
}

func newTestEnv(t *testing.T, opts ...func(*envOptions)) *testEnv {
	t.Helper()
	var o envOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := sqlite.New(":memory:", 0)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	taskOpts := []service.TaskOption{service.WithReward(20)}
	if o.generator != nil {
		taskOpts = append(taskOpts, service.WithGenerator(db, o.generator))
	}
	tasks := service.NewTaskService(db, logger, taskOpts...)
	subs := service.NewSubmissionService(db, tasks, nil, logger)
	users := service.NewUserService(db, db, tokens, auth.NewPasswordServiceWithCost(bcrypt.MinCost), nil, logger)
	board := service.NewLeaderboardService(db, logger)
	profiles := service.NewProfileService(db, logger)

	authH := handler.NewAuthHandler(users, time.Hour, false, logger)
	taskH := handler.NewTaskHandler(tasks, logger)
	subH := handler.NewSubmissionHandler(subs, logger)
	boardH := handler.NewLeaderboardHandler(board, subs, logger)
	feedH := handler.NewFeedHandler(feed.NewSessions(subs, time.Hour), logger)
	profileH := handler.NewProfileHandler(profiles, logger)
	newsH := handler.NewNewsHandler(o.news, logger)

	r := chi.NewRouter()
	r.Get("/healthz", handler.Health(db, logger))
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authH.HandleRegister)
		r.Post("/auth/login", authH.HandleLogin)
		r.Post("/auth/logout", authH.HandleLogout)
		r.Get("/auth/me", authH.HandleMe)

		r.Get("/me/task", taskH.HandleGet)
		r.Put("/me/task", taskH.HandleAssign)
		r.Post("/me/task/complete", taskH.HandleComplete)
		r.Post("/me/task/refresh", taskH.HandleRefresh)
		r.Get("/me/stats", taskH.HandleStats)
		r.Get("/me/profile", profileH.HandleGet)
		r.Patch("/me/profile", profileH.HandlePatch)

		r.Post("/submissions", subH.HandleCreate)
		r.Post("/submissions/complete", subH.HandleSubmitForTask)
		r.Get("/submissions", subH.HandleList)
		r.Get("/submissions/{id}", subH.HandleGet)
		r.Get("/submissions/{id}/image", subH.HandleImage)
		r.Post("/submissions/{id}/upvote", subH.HandleUpvote)

		r.Get("/leaderboard", boardH.HandleLeaderboard)
		r.Get("/map", boardH.HandleMap)

		r.Get("/feed", feedH.HandleState)
		r.Post("/feed/next", feedH.HandleNext)
		r.Post("/feed/prev", feedH.HandlePrev)
		r.Post("/feed/toggle", feedH.HandleToggle)
		r.Post("/feed/reload", feedH.HandleReload)
		r.Post("/feed/upvote/{id}", feedH.HandleUpvote)

		r.Get("/news", newsH.HandleNews)
	})

	return &testEnv{db: db, tokens: tokens, users: users, tasks: tasks, subs: subs, router: r}
}

// do sends a request as userID ("" for anonymous).
func (e *testEnv) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()
	u, err := e.users.Register(context.Background(), username, "correct-horse-battery", "")
	require.NoError(t, err)
	return u.ID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body: %s", rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	return decode[handler.ErrorResponse](t, rec)
}

func ptr[T any](v T) *T { return &v }
