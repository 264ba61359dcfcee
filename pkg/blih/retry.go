package blih

import (
	"context"
	"crypto/x509"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"slices"
)

var (
	// these errors aren't typed, so we match by regexp
	redirectsErrorRe  = regexp.MustCompile(`stopped after \d+ redirects\z`)
	schemeErrorRe     = regexp.MustCompile(`unsupported protocol scheme`)
	notTrustedErrorRe = regexp.MustCompile(`certificate is not trusted`)
)

type retryContextKey struct{}

// WithIdempotent marks ctx as carrying a request that may safely be sent again.
func WithIdempotent(ctx context.Context, idempotent bool) context.Context {
	return context.WithValue(ctx, retryContextKey{}, idempotent)
}

func isIdempotent(ctx context.Context) bool {
	v, _ := ctx.Value(retryContextKey{}).(bool)
	return v
}

// ShouldRetryer lists the statuses worth another attempt.
type ShouldRetryer []int

func (s ShouldRetryer) Retry(status int) bool {
	return slices.Contains(s, status)
}

var defaultRetryStatuses = ShouldRetryer{
	http.StatusTooManyRequests,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
}

// CheckRetry never retries requests that change upstream state, context errors, invalid
// schemes, redirect loops or TLS verification failures.  Other transport errors and the
// statuses listed by should are retried.
func CheckRetry(ctx context.Context, resp *http.Response, err error, should ShouldRetryer) (bool, error) {
	// do not retry on context.Canceled or context.DeadlineExceeded
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if !isIdempotent(ctx) {
		return false, nil
	}

	// handle client transport errors
	if err != nil {
		var v *url.Error
		if errors.As(err, &v) {
			if redirectsErrorRe.MatchString(v.Error()) || // too many redirects
				schemeErrorRe.MatchString(v.Error()) || // invalid http scheme/protocol
				notTrustedErrorRe.MatchString(v.Error()) { // TLS cert verification failure
				return false, errors.Unwrap(v)
			}

			var unknownAuthority x509.UnknownAuthorityError
			if errors.As(v.Err, &unknownAuthority) {
				return false, errors.Unwrap(v)
			}
		}
		return true, nil
	}

	// handle HTTP response status code
	return should.Retry(resp.StatusCode), nil
}

// RetryPolicy is CheckRetry over the default statuses, for retryablehttp.Client.CheckRetry.
func RetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	return CheckRetry(ctx, resp, err, defaultRetryStatuses)
}
