package blih_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blihweb/blihweb/pkg/blih"
	"github.com/blihweb/blihweb/pkg/version"
	"github.com/stretchr/testify/require"
)

const signedData = `{"user":"john.doe@epitech.eu","signature":"abcd"}`

func newClient(t *testing.T, endpoint string, timeout time.Duration, retries int) *blih.Client {
	t.Helper()
	c, err := blih.NewClient(blih.Params{
		Endpoint:     endpoint,
		Timeout:      timeout,
		MaxRetries:   retries,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func mustOp(t *testing.T, name string) blih.Operation {
	t.Helper()
	op, err := blih.LookupOperation(name)
	require.NoError(t, err)
	return op
}

func TestClient_Do(t *testing.T) {
	var (
		gotMethod, gotPath, gotRawPath string
		gotHeader                      http.Header
		gotClose                       bool
		gotBody                        []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotRawPath = r.URL.EscapedPath()
		gotHeader = r.Header.Clone()
		gotClose = r.Close
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Repository doesn't exists"}`))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, time.Second, 0)
	resp, err := c.Do(context.Background(), mustOp(t, blih.OpRepoGetACL), "a/b c", json.RawMessage(signedData))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, `{"error":"Repository doesn't exists"}`, string(resp.Body))

	require.Equal(t, http.MethodGet, gotMethod)
	// the name decodes back to the literal it was built from
	require.Equal(t, "/repository/a/b c/acls", gotPath)
	require.Equal(t, "/repository/a%2Fb%20c/acls", gotRawPath)
	require.Equal(t, signedData, string(gotBody))
	require.Equal(t, version.UserAgent(), gotHeader.Get("User-Agent"))
	require.Equal(t, "identity", gotHeader.Get("Accept-Encoding"))
	require.True(t, gotClose, "expected Connection: close")
}

func TestClient_ResourceRoundTrip(t *testing.T) {
	names := []string{"plain", "with space", "with/slash", "both / kinds", "percent%41", "unicodé", "q?uery#frag"}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			var got string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.URL.Path
				_, _ = w.Write([]byte(`null`))
			}))
			defer srv.Close()
			c := newClient(t, srv.URL, time.Second, 0)
			_, err := c.Do(context.Background(), mustOp(t, blih.OpRepoDelete), name, json.RawMessage(signedData))
			require.NoError(t, err)
			require.Equal(t, "/repository/"+name, got)
		})
	}
}

func TestClient_TransportErrors(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()
		c := newClient(t, srv.URL, 50*time.Millisecond, 0)
		_, err := c.Do(context.Background(), mustOp(t, blih.OpRepoList), "", json.RawMessage(signedData))
		require.ErrorIs(t, err, blih.ErrTimeout)
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		endpoint := srv.URL
		srv.Close()
		c := newClient(t, endpoint, time.Second, 0)
		_, err := c.Do(context.Background(), mustOp(t, blih.OpRepoList), "", json.RawMessage(signedData))
		require.ErrorIs(t, err, blih.ErrConnectionRefused)
	})

	t.Run("other failure", func(t *testing.T) {
		c, err := blih.NewClient(blih.Params{
			Endpoint: "http://blih.invalid",
			Timeout:  time.Second,
			Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
				return nil, errors.New("tls: handshake failure")
			}),
		})
		require.NoError(t, err)
		_, err = c.Do(context.Background(), mustOp(t, blih.OpRepoList), "", json.RawMessage(signedData))
		require.ErrorIs(t, err, blih.ErrRequestFailed)
	})

	t.Run("missing resource", func(t *testing.T) {
		c := newClient(t, "http://blih.invalid", time.Second, 0)
		_, err := c.Do(context.Background(), mustOp(t, blih.OpSSHDelete), "", json.RawMessage(signedData))
		require.ErrorIs(t, err, blih.ErrMissingResource)
	})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestClient_Retries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	t.Run("get is retried", func(t *testing.T) {
		calls.Store(0)
		c := newClient(t, srv.URL, time.Second, 2)
		resp, err := c.Do(context.Background(), mustOp(t, blih.OpSSHList), "", json.RawMessage(signedData))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.EqualValues(t, 2, calls.Load())
	})

	t.Run("post is not retried", func(t *testing.T) {
		calls.Store(0)
		c := newClient(t, srv.URL, time.Second, 2)
		resp, err := c.Do(context.Background(), mustOp(t, blih.OpRepoSetACL), "repo", json.RawMessage(signedData))
		require.NoError(t, err)
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		require.EqualValues(t, 1, calls.Load())
	})
}
