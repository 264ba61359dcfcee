package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/blihweb/blihweb/pkg/auth"
	"github.com/blihweb/blihweb/pkg/blih"
	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/blihweb/blihweb/pkg/sig"
	"github.com/blihweb/blihweb/pkg/version"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultTimeout = 30 * time.Second

	SignedDataField = "signed_data"
	ResourceField   = "resource"

	maxBodySize = 10 << 20
)

// Result is the settled outcome of one call.  Code is 0 when no answer arrived.
type Result struct {
	OK   bool
	Code int
	Data json.RawMessage
	Err  error
}

// Decode unmarshals the answer into v.
func (r Result) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("%w: empty body", ErrUnexpectedStatus)
	}
	return json.Unmarshal(r.Data, v)
}

// ErrorBody is what the proxy and the BLIH API answer on failure.  Message may be a string
// or an object.
type ErrorBody struct {
	Error   string          `json:"error"`
	Message json.RawMessage `json:"message"`
}

// ErrorBody returns the decoded failure answer, zero when the body is not one.
func (r Result) ErrorBody() ErrorBody {
	var body ErrorBody
	_ = json.Unmarshal(r.Data, &body)
	return body
}

type Params struct {
	// ServerURL is the blihweb proxy, e.g. http://localhost:1337
	ServerURL    string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Transport    http.RoundTripper
	Loader       *Loader
}

// Client signs requests and posts them to the blihweb proxy.  Every call is registered until
// it settles so AbortAll can cancel it.
type Client struct {
	server  *url.URL
	timeout time.Duration
	http    *http.Client
	loader  *Loader

	mu       sync.Mutex
	nextID   uint64
	inflight map[uint64]context.CancelCauseFunc
}

type LoggerAdapter struct {
	logging.Logger
}

func (l *LoggerAdapter) Printf(msg string, args ...interface{}) {
	l.Debugf(msg, args...)
}

func New(params Params) (*Client, error) {
	server, err := url.Parse(strings.TrimSuffix(params.ServerURL, "/"))
	if err != nil || server.Host == "" || (server.Scheme != "http" && server.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrBadServerURL, params.ServerURL)
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	loader := params.Loader
	if loader == nil {
		loader = NewLoader(nil)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = &LoggerAdapter{Logger: logging.ContextUnavailable().WithField(logging.ServiceNameFieldKey, "blih_proxy_client")}
	retryClient.RetryMax = params.MaxRetries
	if params.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = params.RetryWaitMin
	}
	if params.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = params.RetryWaitMax
	}
	retryClient.CheckRetry = blih.RetryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if params.Transport != nil {
		retryClient.HTTPClient.Transport = params.Transport
	}

	return &Client{
		server:   server,
		timeout:  timeout,
		http:     retryClient.StandardClient(),
		loader:   loader,
		inflight: make(map[uint64]context.CancelCauseFunc),
	}, nil
}

func (c *Client) Loader() *Loader {
	return c.loader
}

// Call signs payload with cred and posts it for op.  resource is sent when not empty.
// A transport failure aborts every other call in flight.
func (c *Client) Call(ctx context.Context, cred *auth.Credential, op string, resource string, payload any) Result {
	operation, err := blih.LookupOperation(op)
	if err != nil {
		return Result{Err: err}
	}
	env, err := sig.Sign(cred, payload)
	if err != nil {
		return Result{Err: err}
	}
	signed, err := json.Marshal(env)
	if err != nil {
		return Result{Err: fmt.Errorf("marshal envelope: %w", err)}
	}
	form := url.Values{SignedDataField: {string(signed)}}
	if resource != "" {
		form.Set(ResourceField, resource)
	}

	ctx, id := c.register(ctx)
	defer c.unregister(id)
	release := c.loader.Acquire()
	defer release()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	callCtx = blih.WithIdempotent(callCtx, operation.ReadOnly())

	log := logging.FromContext(ctx).WithFields(logging.Fields{
		logging.OperationFieldKey: op,
		logging.UserFieldKey:      cred.Login,
	})
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.server.String()+"/api/"+op, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %s", ErrNetwork, err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "blihctl/"+version.Version)

	resp, err := c.http.Do(req)
	if err != nil {
		kind := classify(callCtx, err)
		log.WithError(err).Debug("Call failed")
		if kind != ErrAborted {
			c.AbortAll()
		}
		return Result{Err: fmt.Errorf("%s: %w", op, kind)}
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		kind := classify(callCtx, err)
		if kind != ErrAborted {
			c.AbortAll()
		}
		return Result{Err: fmt.Errorf("%s: read body: %w", op, kind)}
	}
	log.WithField(logging.StatusFieldKey, resp.StatusCode).Trace("Call settled")

	result := Result{Code: resp.StatusCode, Data: body}
	if resp.StatusCode == http.StatusOK {
		result.OK = true
	} else {
		result.Err = fmt.Errorf("%s: %w: %d", op, ErrUnexpectedStatus, resp.StatusCode)
	}
	return result
}

// AbortAll cancels every call in flight and resets the loader.
func (c *Client) AbortAll() {
	c.mu.Lock()
	cancels := c.inflight
	c.inflight = make(map[uint64]context.CancelCauseFunc)
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel(ErrAborted)
	}
	c.loader.Reset()
}

// InFlight returns the number of calls not settled yet.
func (c *Client) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

func (c *Client) register(ctx context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancelCause(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.inflight[c.nextID] = cancel
	return ctx, c.nextID
}

func (c *Client) unregister(id uint64) {
	c.mu.Lock()
	cancel, ok := c.inflight[id]
	delete(c.inflight, id)
	c.mu.Unlock()
	if ok {
		cancel(nil)
	}
}
