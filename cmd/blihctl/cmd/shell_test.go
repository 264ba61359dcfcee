package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSSHKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIBlihctlShellKeyMaterial0123456789abcdef john@laptop"

func TestShell_Repositories(t *testing.T) {
	DisableColors()
	fake, sess := loggedInSession(t)
	fake.AddRepository(testRealUser, "existing", "ramassage-tek:r")

	out := runLine(t, sess, "create fresh jane.doe:rw")
	require.Contains(t, out, "The repository fresh has been created with the specified ACL.")
	require.Equal(t, map[string]string{"jane.doe@epitech.eu": "rw"}, fake.Repository(testRealUser, "fresh").ACL)

	out = runLine(t, sess, "repos")
	require.Contains(t, out, "existing\t")
	require.Contains(t, out, "fresh *\t")
	require.Contains(t, out, "Total: 2 repositories")

	out = runLine(t, sess, "show existing")
	require.Contains(t, out, "Repository: existing")
	require.Contains(t, out, "ramassage-tek\tx\t\t")

	out = runLine(t, sess, "acl existing ramassage-tek:r bob:r")
	require.Contains(t, out, "The specified ACL have been applied.")

	out = runLine(t, sess, "delete fresh")
	require.Contains(t, out, "The repository fresh has been deleted.")
	require.Nil(t, fake.Repository(testRealUser, "fresh"))
}

func TestShell_Errors(t *testing.T) {
	DisableColors()
	_, sess := loggedInSession(t)

	require.Contains(t, runLine(t, sess, "frobnicate"), `unknown command "frobnicate"`)
	require.Contains(t, runLine(t, sess, "show"), "show needs 1 argument(s)")
	require.Contains(t, runLine(t, sess, "create a/b"), "Slashes are not allowed.")
	require.Contains(t, runLine(t, sess, "acl repo jane:x"), "invalid ACL entry")
	require.Empty(t, runLine(t, sess, "   "))
}

func TestShell_SSHKeys(t *testing.T) {
	DisableColors()
	fake, sess := loggedInSession(t)
	keyFile := filepath.Join(t.TempDir(), "id_ed25519.pub")
	require.NoError(t, os.WriteFile(keyFile, []byte(testSSHKey+"\n"), 0o600))

	out := runLine(t, sess, "upload "+keyFile)
	require.Contains(t, out, "The SSH key was successfully uploaded.")
	content, ok := fake.SSHKey(testRealUser, "john@laptop")
	require.True(t, ok)
	require.Equal(t, testSSHKey, content)

	out = runLine(t, sess, "keys")
	require.Contains(t, out, "john@laptop *\t")
	require.Contains(t, out, abbreviate(testSSHKey))

	out = runLine(t, sess, "delkey john@laptop")
	require.Contains(t, out, "The SSH key john@laptop has been deleted.")
}

func TestShell_Exit(t *testing.T) {
	_, sess := loggedInSession(t)
	var buf bytes.Buffer
	require.ErrorIs(t, runShellLine(context.Background(), sess, &buf, "exit"), errShellExit)
	require.True(t, sess.LoggedIn())
	require.ErrorIs(t, runShellLine(context.Background(), sess, &buf, "logout"), errShellExit)
	require.False(t, sess.LoggedIn())
	require.Contains(t, buf.String(), "You have been logged out.")
}

func TestAbbreviate(t *testing.T) {
	require.Equal(t, "short", abbreviate("short"))
	long := abbreviate(testSSHKey)
	require.Less(t, len(long), len(testSSHKey))
	require.Contains(t, long, "...")
	require.Contains(t, long, "john@laptop")
}

func TestShell_Filter(t *testing.T) {
	DisableColors()
	fake, sess := loggedInSession(t)
	fake.AddRepository(testRealUser, "Tek1-cpool")
	fake.AddRepository(testRealUser, "tek1-minishell")
	fake.AddRepository(testRealUser, "perso")
	require.Contains(t, runLine(t, sess, "refresh"), "Total: 3 repositories")

	out := runLine(t, sess, "repos tek1-*")
	require.Contains(t, out, "Tek1-cpool\t")
	require.Contains(t, out, "tek1-minishell\t")
	require.NotContains(t, out, "perso")

	require.Contains(t, runLine(t, sess, "repos [tek"), "invalid pattern")
}

func TestNameMatcher(t *testing.T) {
	cases := []struct {
		pattern string
		name    string
		match   bool
	}{
		{pattern: "", name: "anything", match: true},
		{pattern: "tek1-*", name: "TEK1-cpool", match: true},
		{pattern: "tek1-*", name: "tek2-cpool", match: false},
		{pattern: "*@laptop", name: "john@laptop", match: true},
		{pattern: "repo?", name: "repo10", match: false},
	}
	for _, tt := range cases {
		match, err := nameMatcher(tt.pattern)
		require.NoError(t, err)
		require.Equal(t, tt.match, match(tt.name), "pattern %q on %q", tt.pattern, tt.name)
	}
}
