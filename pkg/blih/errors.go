package blih

import (
	"context"
	"errors"
	"net"
	"syscall"
)

var (
	ErrUnknownOperation  = errors.New("unknown operation")
	ErrMissingResource   = errors.New("missing resource")
	ErrUnexpectedBody    = errors.New("unexpected upstream body")
	ErrConnectionRefused = errors.New("unable to connect to BLIH server")
	ErrTimeout           = errors.New("request to BLIH server timed out")
	ErrRequestFailed     = errors.New("request to BLIH server failed")
)

// classifyTransportError maps an error of the HTTP client to one of the transport error
// kinds.  Timeouts win over connection errors: a dial that times out is a timeout.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrConnectionRefused
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ErrConnectionRefused
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrConnectionRefused
	}
	return ErrRequestFailed
}
