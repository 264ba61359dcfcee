package api_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/blihweb/blihweb/pkg/api"
	"github.com/blihweb/blihweb/pkg/blih"
	"github.com/blihweb/blihweb/pkg/version"
	"github.com/stretchr/testify/require"
)

func setupHandler(t *testing.T, uiEnabled bool) http.Handler {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"repositories":{"b":{"uuid":"2"},"A":{"uuid":"1"}}}`)
	}))
	t.Cleanup(upstream.Close)
	client, err := blih.NewClient(blih.Params{Endpoint: upstream.URL})
	require.NoError(t, err)
	codec, err := api.NewCookieCodec([]byte("0123456789abcdef0123456789abcdef"), nil)
	require.NoError(t, err)
	handler, err := api.Serve(api.Params{
		Upstream:      client,
		Cookies:       codec,
		Origin:        "http://localhost:1337",
		UIEnabled:     uiEnabled,
		AuditLogLevel: "debug",
	})
	require.NoError(t, err)
	return handler
}

func do(t *testing.T, h http.Handler, method, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServe_Routes(t *testing.T) {
	h := setupHandler(t, true)

	t.Run("health", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/_health", nil)
		require.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("unknown path", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/no-place", nil)
		require.Equal(t, http.StatusNotFound, rr.Code)
		require.Equal(t, "Nothing here!", rr.Body.String())
	})

	t.Run("proxy needs post", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/api/repo/list", nil)
		require.Equal(t, http.StatusNotFound, rr.Code)
		require.Equal(t, "Nothing here!", rr.Body.String())
	})

	t.Run("unknown operation", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/api/repo/rename", url.Values{"signed_data": {`{"user":"x","signature":"y"}`}})
		require.Equal(t, http.StatusNotFound, rr.Code)
		require.Equal(t, "Nothing here!", rr.Body.String())
	})

	t.Run("unknown operation unsigned", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/api/repo/rename", url.Values{})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.JSONEq(t, `{"error":"Invalid parameters."}`, rr.Body.String())
	})

	t.Run("proxy", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/api/repo/list", url.Values{"signed_data": {`{"user":"x","signature":"y"}`}})
		require.Equal(t, http.StatusOK, rr.Code)
		require.JSONEq(t, `[{"name":"A","uuid":"1"},{"name":"b","uuid":"2"}]`, rr.Body.String())
		require.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	})

	t.Run("index", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		require.Contains(t, rr.Body.String(), "v"+version.Version)
		require.Contains(t, rr.Body.String(), "http://localhost:1337")
		require.Equal(t, "no-cache, private, max-age=0", rr.Header().Get("Cache-Control"))
	})

	t.Run("stylesheet", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/blihweb.css", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		require.Contains(t, rr.Header().Get("Content-Type"), "text/css")
	})

	for _, target := range []string{"/repositories", "/repositories/my-repo", "/sshkeys", "/repository-create", "/sshkey-upload"} {
		t.Run("redirect "+target, func(t *testing.T) {
			rr := do(t, h, http.MethodGet, target, nil)
			require.Equal(t, http.StatusFound, rr.Code)
			require.Equal(t, "/", rr.Header().Get("Location"))
		})
	}
}

func TestServe_UIDisabled(t *testing.T) {
	h := setupHandler(t, false)
	rr := do(t, h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(t, h, http.MethodGet, "/repositories", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
