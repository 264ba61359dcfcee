package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/blihweb/blihweb/pkg/auth"
	"github.com/blihweb/blihweb/pkg/blih"
	"github.com/blihweb/blihweb/pkg/client"
	"github.com/blihweb/blihweb/pkg/proxy"
	"github.com/blihweb/blihweb/pkg/session"
	"github.com/blihweb/blihweb/pkg/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

const (
	testLogin    = "john.doe"
	testRealUser = "john.doe@epitech.eu"
	testPassword = "secret"
)

// startProxy serves the proxy routes in front of a fake BLIH API.
func startProxy(t *testing.T) (*testutil.FakeBLIH, string) {
	t.Helper()
	fake := testutil.NewFakeBLIH(t)
	fake.AddUser(testRealUser, testPassword)
	upstream, err := blih.NewClient(blih.Params{Endpoint: fake.URL})
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Mount("/api", proxy.NewHandler(upstream).Routes())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return fake, srv.URL
}

func loggedInSession(t *testing.T) (*testutil.FakeBLIH, *session.Session) {
	t.Helper()
	fake, serverURL := startProxy(t)
	c, err := client.New(client.Params{ServerURL: serverURL})
	require.NoError(t, err)
	sess := session.New(session.Params{API: c, Normalizer: auth.DefaultNormalizer()})
	require.NoError(t, sess.Login(context.Background(), testLogin, testPassword))
	return fake, sess
}

func runLine(t *testing.T, sess *session.Session, line string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, runShellLine(context.Background(), sess, &buf, line))
	return buf.String()
}
