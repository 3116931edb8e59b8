package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/climate-crew/internal/auth"
	"github.com/sakif/climate-crew/internal/service"
)

// AuthHandler manages registration, login and the session cookie.
//
//	POST /api/auth/register → create account (201)
//	POST /api/auth/login    → issue token (JSON body and HttpOnly cookie)
//	POST /api/auth/logout   → clear cookie
//	GET  /api/auth/me       → the calling user
type AuthHandler struct {
	users         *service.UserService
	tokenTTL      time.Duration
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler builds the handler. secureCookies should be true whenever
// the server sits behind TLS.
func NewAuthHandler(users *service.UserService, tokenTTL time.Duration, secureCookies bool, logger *slog.Logger) *AuthHandler {
	if tokenTTL <= 0 {
		tokenTTL = auth.DefaultTokenTTL
	}
	return &AuthHandler{
		users:         users,
		tokenTTL:      tokenTTL,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// HandleRegister creates an account. It does not log the user in; the client
// follows up with /login.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleLogin verifies credentials and returns the token in the body for
// mobile clients and as an HttpOnly cookie for browsers.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, res)
}

// HandleLogout clears the cookie. Tokens are stateless, so a bearer token
// stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
