package httputil

import (
	"context"
	"errors"
	"net/http"
)

// StatusClientClosedRequest is recorded when the caller went away before an answer was sent.
const StatusClientClosedRequest = 499

// StatusRecorder remembers the status and the body size written through it.  The status is
// 200 until the handler calls WriteHeader.
type StatusRecorder struct {
	http.ResponseWriter
	StatusCode int
	Written    int
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (s *StatusRecorder) WriteHeader(code int) {
	s.StatusCode = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *StatusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.Written += n
	return n, err
}

// ClientGone reports whether the caller of r canceled the request.
func ClientGone(r *http.Request) bool {
	return errors.Is(r.Context().Err(), context.Canceled)
}
