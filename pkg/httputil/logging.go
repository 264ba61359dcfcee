package httputil

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	RequestIDContextKey contextKey = "request_id"
	RequestIDHeaderName string     = "X-Request-ID"
	AuditLogEndMessage  string     = "HTTP call ended"
)

type ResponseRecordingWriter struct {
	StatusCode   int
	ResponseSize int64
	Writer       http.ResponseWriter
}

func (w *ResponseRecordingWriter) Header() http.Header {
	return w.Writer.Header()
}

func (w *ResponseRecordingWriter) Write(data []byte) (int, error) {
	written, err := w.Writer.Write(data)
	w.ResponseSize += int64(written)
	return written, err
}

func (w *ResponseRecordingWriter) WriteHeader(statusCode int) {
	w.StatusCode = statusCode
	w.Writer.WriteHeader(statusCode)
}

// RequestID returns the request id on r, assigning a new one to the returned request when
// missing.
func RequestID(r *http.Request) (*http.Request, string) {
	ctx := r.Context()
	resp := ctx.Value(RequestIDContextKey)
	var reqID string
	if resp == nil {
		// assign a request ID for this request
		reqID = uuid.New().String()
		r = r.WithContext(context.WithValue(ctx, RequestIDContextKey, reqID))
	} else {
		reqID = resp.(string)
	}
	return r, reqID
}

func SourceIP(r *http.Request) string {
	sourceIP, sourcePort, err := net.SplitHostPort(r.RemoteAddr)

	if err != nil {
		return err.Error()
	}
	return sourceIP + ":" + sourcePort
}

func DefaultLoggingMiddleware(requestIDHeaderName string, fields logging.Fields, middlewareLogLevel string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			writer := &ResponseRecordingWriter{Writer: w, StatusCode: http.StatusOK}
			r, reqID := RequestID(r)
			sourceIP := SourceIP(r)

			// add default fields to context
			requestFields := logging.Fields{
				logging.PathFieldKey:      r.RequestURI,
				logging.MethodFieldKey:    r.Method,
				logging.HostFieldKey:      r.Host,
				logging.RequestIDFieldKey: reqID,
			}
			for k, v := range fields {
				requestFields[k] = v
			}
			r = r.WithContext(logging.AddFields(r.Context(), requestFields))
			writer.Header().Set(requestIDHeaderName, reqID)
			next.ServeHTTP(writer, r) // handle the request

			loggingFields := logging.Fields{
				"took":           time.Since(startTime),
				"status_code":    writer.StatusCode,
				"sent_bytes":     writer.ResponseSize,
				logging.LogAudit: true,
				"source_ip":      sourceIP,
			}

			logLevel := strings.ToLower(middlewareLogLevel)
			if logLevel == "null" || logLevel == "none" {
				logging.FromContext(r.Context()).WithFields(loggingFields).Debug(AuditLogEndMessage)
			} else {
				level, err := logrus.ParseLevel(logLevel)
				if err != nil {
					level = logrus.InfoLevel
				}
				logging.FromContext(r.Context()).WithFields(loggingFields).Log(level, AuditLogEndMessage)
			}
		})
	}
}

// TracingMiddleware logs request headers before handing over, then behaves like the default
// middleware at trace level.  Form bodies are never logged: they carry signatures.
func TracingMiddleware(requestIDHeaderName string, fields logging.Fields) func(next http.Handler) http.Handler {
	logged := DefaultLoggingMiddleware(requestIDHeaderName, fields, "trace")
	return func(next http.Handler) http.Handler {
		return logged(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logging.FromContext(r.Context()).
				WithField("request_headers", r.Header.Clone()).
				Trace("HTTP call started")
			next.ServeHTTP(w, r)
		}))
	}
}

func LoggingMiddleware(requestIDHeaderName string, fields logging.Fields, loggingMiddlewareLevel string) func(next http.Handler) http.Handler {
	if strings.ToLower(loggingMiddlewareLevel) == "trace" {
		return TracingMiddleware(requestIDHeaderName, fields)
	}
	return DefaultLoggingMiddleware(requestIDHeaderName, fields, loggingMiddlewareLevel)
}
