package blih

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blihweb/blihweb/pkg/httputil"
	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/blihweb/blihweb/pkg/version"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultEndpoint = "https://blih.epitech.eu"
	DefaultTimeout  = 5 * time.Second

	traceServiceName = "blih"
	maxBodySize      = 10 << 20
)

// Params configure the upstream client.
type Params struct {
	Endpoint     string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// Transport replaces the default transport, mostly for tests.
	Transport http.RoundTripper
}

// Response is an upstream answer, status and raw body.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client forwards signed envelopes to the BLIH API.
type Client struct {
	endpoint *url.URL
	timeout  time.Duration
	client   *retryablehttp.Client
}

// LoggerAdapter hands retryablehttp messages to our logger at debug level.
type LoggerAdapter struct {
	logging.Logger
}

func (l *LoggerAdapter) Printf(msg string, args ...interface{}) {
	l.Debugf(msg, args...)
}

func NewClient(params Params) (*Client, error) {
	endpoint := params.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("upstream endpoint %s: %w", endpoint, err)
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = &LoggerAdapter{Logger: logging.ContextUnavailable().WithField(logging.ServiceNameFieldKey, "blih_client")}
	retryClient.RetryMax = params.MaxRetries
	if params.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = params.RetryWaitMin
	}
	if params.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = params.RetryWaitMax
	}
	retryClient.CheckRetry = RetryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if params.Transport != nil {
		retryClient.HTTPClient.Transport = params.Transport
	}
	// redirects would re-send the signed body elsewhere
	retryClient.HTTPClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{
		endpoint: u,
		timeout:  timeout,
		client:   retryClient,
	}, nil
}

// URL returns the upstream URL of op for resource.
func (c *Client) URL(op Operation, resource string) (string, error) {
	decoded, escaped, err := op.Paths(resource)
	if err != nil {
		return "", err
	}
	u := *c.endpoint
	u.Path = c.endpoint.Path + decoded
	u.RawPath = c.endpoint.EscapedPath() + escaped
	return u.String(), nil
}

// Do sends signedData, the JSON envelope exactly as received, to the upstream route of op.
// Transport failures are returned as ErrConnectionRefused, ErrTimeout or ErrRequestFailed.
func (c *Client) Do(ctx context.Context, op Operation, resource string, signedData json.RawMessage) (*Response, error) {
	target, err := c.URL(op, resource)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx, release := httputil.SetClientTrace(ctx, traceServiceName)
	defer release()
	ctx = WithIdempotent(ctx, op.ReadOnly())

	req, err := retryablehttp.NewRequestWithContext(ctx, op.Method, target, []byte(signedData))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Close = true

	resp, err := c.client.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, fmt.Errorf("%s %s: %w (%s)", op.Method, target, classifyTransportError(err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w (%s)", op.Method, target, classifyTransportError(err), err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
