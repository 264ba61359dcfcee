package sig

import "errors"

var (
	ErrMalformedEnvelope = errors.New("malformed signed data")
	ErrMalformedPayload  = errors.New("malformed payload")
	ErrBadSignature      = errors.New("bad signature")
)
