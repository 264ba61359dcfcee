package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/blihweb/blihweb/pkg/blih"
	"github.com/blihweb/blihweb/pkg/httputil"
	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/go-chi/chi/v5"
)

const (
	SignedDataField = "signed_data"
	ResourceField   = "resource"

	LoggerServiceName = "proxy"
)

// Forwarder sends a signed envelope upstream.  *blih.Client implements it.
type Forwarder interface {
	Do(ctx context.Context, op blih.Operation, resource string, signedData json.RawMessage) (*blih.Response, error)
}

// Handler serves POST /{operation} for every operation of the BLIH table.
type Handler struct {
	upstream Forwarder
	audit    func(ctx context.Context, user, method, path, status string)
}

func NewHandler(upstream Forwarder) *Handler {
	return &Handler{upstream: upstream, audit: audit}
}

// Routes returns a router with one POST route per operation, to be mounted under /api.
// Other POSTs without signed data are rejected as invalid; the rest fall to NotFound.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	for _, op := range blih.Operations() {
		r.Post("/"+op.Name, h.forward(op))
	}
	r.Post("/*", func(w http.ResponseWriter, req *http.Request) {
		if req.ParseForm() != nil || req.PostForm.Get(SignedDataField) == "" {
			logging.FromContext(req.Context()).WithField("path", req.URL.Path).Debug("Rejected proxy request")
			writeError(w, http.StatusBadRequest, MessageInvalidParameters)
			return
		}
		r.NotFoundHandler().ServeHTTP(w, req)
	})
	return r
}

func (h *Handler) forward(op blih.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		mrw := httputil.NewStatusRecorder(w)
		defer func() {
			requestHistograms.
				WithLabelValues(op.Name, strconv.Itoa(mrw.StatusCode)).
				Observe(time.Since(start).Seconds())
			responseSizes.WithLabelValues(op.Name).Observe(float64(mrw.Written))
		}()
		ctx := logging.AddFields(r.Context(), logging.Fields{logging.OperationFieldKey: op.Name})
		h.serve(ctx, mrw, r, op)
	}
}

func (h *Handler) serve(ctx context.Context, w *httputil.StatusRecorder, r *http.Request, op blih.Operation) {
	log := logging.FromContext(ctx)
	signedData, user, resource, err := parseRequest(r, op)
	if err != nil {
		log.WithError(err).Debug("Rejected proxy request")
		writeError(w, http.StatusBadRequest, parameterMessage(err))
		return
	}
	if resource != "" {
		ctx = logging.AddFields(ctx, logging.Fields{resourceFieldKey(op): resource})
	}
	upstreamPath, _, _ := op.Paths(resource)

	upstreamInFlight.WithLabelValues(op.Name).Inc()
	resp, err := h.upstream.Do(ctx, op, resource, signedData)
	upstreamInFlight.WithLabelValues(op.Name).Dec()
	if err != nil {
		h.audit(ctx, user, op.Method, upstreamPath, statusError)
		if httputil.ClientGone(r) {
			w.StatusCode = httputil.StatusClientClosedRequest
			logging.FromContext(ctx).WithError(err).Debug("Caller went away")
			return
		}
		apiErr := transportError(err)
		upstreamErrors.WithLabelValues(op.Name, apiErr.kind).Inc()
		logging.FromContext(ctx).WithError(err).Error("Upstream request failed")
		writeError(w, apiErr.status, apiErr.message)
		return
	}

	if resp.StatusCode != http.StatusOK {
		h.audit(ctx, user, op.Method, upstreamPath, strconv.Itoa(resp.StatusCode))
		writeRaw(w, resp.StatusCode, resp.Body)
		return
	}
	body, err := op.Shape(resp.Body)
	if err != nil {
		// the caller gets a gateway error, not the upstream 200
		h.audit(ctx, user, op.Method, upstreamPath, statusError)
		apiErr := transportError(err)
		upstreamErrors.WithLabelValues(op.Name, apiErr.kind).Inc()
		logging.FromContext(ctx).WithError(err).Error("Failed to shape upstream response")
		writeError(w, apiErr.status, apiErr.message)
		return
	}
	h.audit(ctx, user, op.Method, upstreamPath, strconv.Itoa(http.StatusOK))
	writeRaw(w, http.StatusOK, body)
}

// parseRequest extracts the envelope, the login it names and the resource.  The envelope is
// returned exactly as received.
func parseRequest(r *http.Request, op blih.Operation) (json.RawMessage, string, string, error) {
	if err := r.ParseForm(); err != nil {
		return nil, "", "", ErrInvalidParameters
	}
	signed := r.PostForm.Get(SignedDataField)
	if signed == "" {
		return nil, "", "", ErrInvalidParameters
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(signed), &envelope); err != nil || envelope == nil {
		return nil, "", "", ErrInvalidSignedData
	}
	var user string
	if raw, ok := envelope["user"]; ok {
		_ = json.Unmarshal(raw, &user)
	}
	resource := r.PostForm.Get(ResourceField)
	if op.NeedsResource() && resource == "" {
		return nil, user, "", ErrInvalidResource
	}
	return json.RawMessage(signed), user, resource, nil
}

func parameterMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSignedData):
		return MessageInvalidSignedData
	case errors.Is(err, ErrInvalidResource):
		return MessageInvalidResource
	default:
		return MessageInvalidParameters
	}
}

func resourceFieldKey(op blih.Operation) string {
	if op.Name == blih.OpSSHDelete {
		return logging.SSHKeyFieldKey
	}
	return logging.RepositoryFieldKey
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeResponse(w, code, ErrorResponse{Error: message})
}

func writeResponse(w http.ResponseWriter, code int, response interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		logging.ContextUnavailable().WithError(err).WithField("code", code).Debug("Failed to write encoded json response")
	}
}

func writeRaw(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		logging.ContextUnavailable().WithError(err).WithField("code", code).Debug("Failed to write response")
	}
}
