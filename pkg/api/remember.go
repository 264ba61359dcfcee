package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/gorilla/securecookie"
)

const (
	RememberCookieName = "blihweb_login"
	SavedLoginField    = "saved_login"

	rememberMaxAge      = 365 * 24 * time.Hour
	cookieHashKeyLength = 64
)

var ErrInvalidCookieKeys = errors.New("invalid cookie keys")

// RememberResponse is the body of GET /remember.
type RememberResponse struct {
	SavedLogin string `json:"saved_login"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewCookieCodec returns the codec of the remembered login cookie.  An empty hash key is
// replaced by a random one, so cookies do not survive a restart.  An empty block key leaves
// the cookie signed but not encrypted.
func NewCookieCodec(hashKey, blockKey []byte) (*securecookie.SecureCookie, error) {
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(cookieHashKeyLength)
		if hashKey == nil {
			return nil, ErrInvalidCookieKeys
		}
		logging.ContextUnavailable().Warn("No cookie hash key configured, remembered logins will not survive a restart")
	}
	if len(blockKey) == 0 {
		blockKey = nil
	}
	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(int(rememberMaxAge.Seconds()))
	return codec, nil
}

// RememberHandler reads, sets and clears the single remembered login.
type RememberHandler struct {
	codec *securecookie.SecureCookie
}

func NewRememberHandler(codec *securecookie.SecureCookie) *RememberHandler {
	return &RememberHandler{codec: codec}
}

func (h *RememberHandler) Get(w http.ResponseWriter, r *http.Request) {
	var login string
	if cookie, err := r.Cookie(RememberCookieName); err == nil {
		if err := h.codec.Decode(RememberCookieName, cookie.Value, &login); err != nil {
			logging.FromContext(r.Context()).WithError(err).Debug("Dropping unreadable remember cookie")
			h.clear(w)
			login = ""
		}
	}
	writeJSON(w, http.StatusOK, RememberResponse{SavedLogin: login})
}

func (h *RememberHandler) Set(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid parameters."})
		return
	}
	login := strings.TrimSpace(r.PostForm.Get(SavedLoginField))
	if login == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid parameters."})
		return
	}
	encoded, err := h.codec.Encode(RememberCookieName, login)
	if err != nil {
		logging.FromContext(r.Context()).WithError(err).Error("Failed to encode remember cookie")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Unable to remember login."})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     RememberCookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(rememberMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *RememberHandler) Delete(w http.ResponseWriter, _ *http.Request) {
	h.clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *RememberHandler) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RememberCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, code int, response interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.ContextUnavailable().WithError(err).WithField("code", code).Debug("Failed to write encoded json response")
	}
}
