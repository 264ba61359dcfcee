package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid username/password")
	ErrMissingCredential  = errors.New("missing credential")
)
