package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/climate-crew/internal/auth"
	"github.com/sakif/climate-crew/internal/model"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "wangari", "password": "greenbelt1977", "email": "w@example.org",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode[model.User](t, rec)
	assert.Equal(t, "wangari", user.Username)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "wangari", "password": "greenbelt1977",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	body := decode[struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}](t, rec)
	assert.Equal(t, cookie.Value, body.Token)

	subject, err := env.tokens.Validate(body.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, subject)
}

func TestRegister_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "taken")

	tests := []struct {
		name   string
		body   any
		status int
		kind   string
	}{
		{"duplicate", map[string]string{"username": "taken", "password": "longenough"}, http.StatusConflict, "conflict"},
		{"short password", map[string]string{"username": "fresh", "password": "short"}, http.StatusBadRequest, "validation_error"},
		{"unknown field", `{"username":"fresh","password":"longenough","admin":true}`, http.StatusBadRequest, "validation_error"},
		{"not json", `username=fresh`, http.StatusBadRequest, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, errorOf(t, rec).Error)
		})
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "greta")

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "greta", "password": "not-the-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Negative(t, rec.Result().Cookies()[0].MaxAge)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	uid := env.register(t, "greta")

	rec := env.do(t, http.MethodGet, "/api/auth/me", uid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "greta", decode[model.User](t, rec).Username)

	rec = env.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
