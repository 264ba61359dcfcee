package proxy

import (
	"errors"
	"net/http"

	"github.com/blihweb/blihweb/pkg/blih"
)

// Error bodies returned by the proxy itself, as opposed to upstream answers passed through.
const (
	MessageInvalidParameters = "Invalid parameters."
	MessageInvalidSignedData = "Invalid parameters (signed data)"
	MessageInvalidResource   = "Invalid parameters (resource)."
	MessageUnableToConnect   = "Unable to connect to BLIH server."
	MessageTimedOut          = "Request to BLIH server timed out."
	MessageRequestFailed     = "Request to BLIH Server failed."
)

var (
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrInvalidSignedData = errors.New("invalid signed data")
	ErrInvalidResource   = errors.New("invalid resource")
)

// ErrorResponse is the JSON body of every error produced by the proxy.
type ErrorResponse struct {
	Error string `json:"error"`
}

type apiError struct {
	status  int
	message string
	kind    string
}

// transportError maps an upstream failure to the status and message sent back.
func transportError(err error) apiError {
	switch {
	case errors.Is(err, blih.ErrConnectionRefused):
		return apiError{status: http.StatusBadGateway, message: MessageUnableToConnect, kind: "connection_refused"}
	case errors.Is(err, blih.ErrTimeout):
		return apiError{status: http.StatusGatewayTimeout, message: MessageTimedOut, kind: "timeout"}
	case errors.Is(err, blih.ErrUnexpectedBody):
		return apiError{status: http.StatusBadGateway, message: MessageRequestFailed, kind: "unexpected_body"}
	default:
		return apiError{status: http.StatusBadGateway, message: MessageRequestFailed, kind: "request_failed"}
	}
}
