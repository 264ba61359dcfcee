package api

import (
	"net/http"

	"github.com/blihweb/blihweb/pkg/httputil"
	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/blihweb/blihweb/pkg/proxy"
	"github.com/blihweb/blihweb/pkg/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const LoggerServiceName = "rest_api"

type Params struct {
	Upstream proxy.Forwarder
	Cookies  *securecookie.SecureCookie
	// Origin is the externally visible URL printed on the index page.
	Origin        string
	UIEnabled     bool
	AuditLogLevel string
	Logger        logging.Logger
}

func Serve(params Params) (http.Handler, error) {
	logger := params.Logger
	if logger == nil {
		logger = logging.ContextUnavailable()
	}
	logger.Info("initialize BLIH proxy server")

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httputil.LoggingMiddleware(
		httputil.RequestIDHeaderName,
		logging.Fields{logging.ServiceNameFieldKey: LoggerServiceName},
		params.AuditLogLevel,
	))
	r.Use(func(next http.Handler) http.Handler {
		return promhttp.InstrumentHandlerCounter(requestCounter, next)
	})
	r.NotFound(NotFound)
	r.MethodNotAllowed(NotFound)

	r.Get("/_health", HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/api", proxy.NewHandler(params.Upstream).Routes())

	remember := NewRememberHandler(params.Cookies)
	r.Get("/remember", remember.Get)
	r.Post("/remember", remember.Set)
	r.Delete("/remember", remember.Delete)

	if params.UIEnabled {
		ui, err := NewUIHandler(version.Version, params.Origin)
		if err != nil {
			return nil, err
		}
		r.Get("/", ui.ServeHTTP)
		r.Get("/blihweb.css", ui.ServeHTTP)
		r.Get("/repositories*", RedirectToIndex)
		r.Get("/sshkeys*", RedirectToIndex)
		r.Get("/repository-create", RedirectToIndex)
		r.Get("/sshkey-upload", RedirectToIndex)
	}
	return r, nil
}

func HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
