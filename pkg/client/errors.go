package client

import (
	"context"
	"errors"
	"net"
)

var (
	ErrNetwork          = errors.New("network error")
	ErrTimeout          = errors.New("network timeout")
	ErrAborted          = errors.New("request aborted")
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrBadServerURL     = errors.New("bad server url")
)

// classify maps a transport error of a call made with ctx.  Aborts win, since aborting
// cancels the context the timeout hangs on.
func classify(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), ErrAborted) {
		return ErrAborted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrAborted
	}
	return ErrNetwork
}
