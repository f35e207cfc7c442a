package handler

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/callerid-relay/internal/devauth"
	"github.com/capitalize-ai/callerid-relay/internal/model"
	"github.com/capitalize-ai/callerid-relay/pkg/logger"
)

// DevCookieName is the cookie carrying the developer token.
const DevCookieName = "dev_token"

const noPasswordConfigured = "DEV_PASSWORD is not configured on the server"

// DevAuthHandler handles the developer mode endpoints.
type DevAuthHandler struct {
	password     string
	tokens       *devauth.Service
	secureCookie bool
	logger       *logger.Logger
}

// NewDevAuthHandler creates a new developer mode handler.
func NewDevAuthHandler(password string, tokens *devauth.Service, secureCookie bool, log *logger.Logger) *DevAuthHandler {
	return &DevAuthHandler{
		password:     password,
		tokens:       tokens,
		secureCookie: secureCookie,
		logger:       log,
	}
}

func (h *DevAuthHandler) passwordMatches(w http.ResponseWriter, r *http.Request) (matched, handled bool) {
	if h.password == "" {
		writeJSON(w, http.StatusOK, model.OKResponse{OK: false, Error: noPasswordConfigured})
		return false, true
	}

	var req model.DevAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false, true
	}

	return subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.password)) == 1, false
}

// Check handles POST /dev-auth
func (h *DevAuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ok, handled := h.passwordMatches(w, r)
	if handled {
		return
	}
	writeJSON(w, http.StatusOK, model.OKResponse{OK: ok})
}

// Login handles POST /dev-auth/login
func (h *DevAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ok, handled := h.passwordMatches(w, r)
	if handled {
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, model.OKResponse{OK: false})
		return
	}

	token, err := h.tokens.Issue(r.UserAgent())
	if err != nil {
		h.logger.Error("failed to issue dev token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, internalError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     DevCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, model.OKResponse{OK: true})
}

// Status handles GET /dev-auth/status
func (h *DevAuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.OKResponse{OK: h.Authorized(r)})
}

// Logout handles POST /dev-auth/logout
func (h *DevAuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     DevCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, model.OKResponse{OK: true})
}

// Authorized reports whether r carries a valid developer token bound to
// its user agent.
func (h *DevAuthHandler) Authorized(r *http.Request) bool {
	c, err := r.Cookie(DevCookieName)
	if err != nil || c.Value == "" {
		return false
	}
	return h.tokens.Verify(c.Value, r.UserAgent())
}
