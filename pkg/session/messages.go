package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/blihweb/blihweb/pkg/auth"
	"github.com/blihweb/blihweb/pkg/client"
)

// Texts shown to the user.
const (
	TextInvalidCredentials = "Invalid username/password"
	TextNetworkError       = "A network error occured"
	TextNetworkTimeout     = "A network timeout occured. Please check your connection and try again"
	TextAborted            = "The request was aborted."
	TextNotLoggedIn        = "You are not logged in."
	TextLoggedOut          = "You have been logged out."
	TextAutoLoggedOut      = "You have been automatically logged out."
	TextEmptyName          = "The name cannot be empty."
	TextNameTooLong        = "The name cannot exceed 84 characters."
	TextKeyEmpty           = "The SSH key is empty."
	TextACLApplied         = "The specified ACL have been applied."
	TextACLUnchanged       = "The ACL is already up to date."
	TextKeyUploaded        = "The SSH key was successfully uploaded."
	TextUnknownError       = "An error occured."
)

type MessageKind int

const (
	MessageNone MessageKind = iota
	MessageSuccess
	MessageError
)

func (k MessageKind) String() string {
	switch k {
	case MessageSuccess:
		return "success"
	case MessageError:
		return "error"
	default:
		return "none"
	}
}

// Message is the single message area of a session.
type Message struct {
	Kind MessageKind
	Text string
}

// Error is returned by session operations.  Text is what the message area shows.
type Error struct {
	Text string
	// Code is the HTTP status of the failed call, 0 when none.
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Text + ": " + e.Err.Error()
	}
	return e.Text
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FriendlyError turns a failure body of the BLIH API into the text shown to the user.
func FriendlyError(data json.RawMessage) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return TextUnknownError
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &body); err != nil {
		var s string
		if json.Unmarshal(trimmed, &s) == nil {
			return s
		}
		return string(trimmed)
	}
	if text := jsonText(body["error"]); text != "" {
		switch {
		case text == "sshkey already exists":
			return "An SSH key with this name already exists."
		case strings.HasSuffix(text, "doesn't exists"):
			return strings.TrimSuffix(text, "doesn't exists") + "does not exist."
		case text == "No spaces allowed":
			return "Spaces are not allowed."
		case text == "No slash allowed":
			return "Slashes are not allowed."
		default:
			return text
		}
	}
	if text := jsonText(body["message"]); text != "" {
		return text
	}
	return string(trimmed)
}

// jsonText returns a string value as is and any other non-empty value as JSON text.
func jsonText(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// resultError builds the error of a failed call.
func resultError(res client.Result) *Error {
	switch {
	case errors.Is(res.Err, client.ErrTimeout):
		return &Error{Text: TextNetworkTimeout, Err: res.Err}
	case errors.Is(res.Err, client.ErrNetwork):
		return &Error{Text: TextNetworkError, Err: res.Err}
	case errors.Is(res.Err, client.ErrAborted):
		return &Error{Text: TextAborted, Err: res.Err}
	case errors.Is(res.Err, auth.ErrMissingCredential):
		return &Error{Text: TextNotLoggedIn, Err: res.Err}
	case res.Code != 0:
		return &Error{Text: FriendlyError(res.Data), Code: res.Code, Err: res.Err}
	case res.Err != nil:
		return &Error{Text: TextUnknownError, Err: res.Err}
	default:
		return &Error{Text: TextUnknownError}
	}
}
