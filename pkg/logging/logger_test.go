package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// captureJSON sends JSON log lines to a buffer until the test ends.
func captureJSON(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	out, formatter, level := defaultLogger.Out, defaultLogger.Formatter, defaultLogger.GetLevel()
	t.Cleanup(func() {
		defaultLogger.SetOutput(out)
		defaultLogger.SetFormatter(formatter)
		defaultLogger.SetLevel(level)
	})
	defaultLogger.SetOutput(&buf)
	SetOutputFormat("json")
	SetLevel("trace")
	return &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry), buf.String())
	return entry
}

func TestSetOutputs(t *testing.T) {
	saved := defaultLogger.Out
	t.Cleanup(func() { defaultLogger.SetOutput(saved) })

	require.NoError(t, SetOutputs(nil, 0, 0))
	require.Equal(t, saved, defaultLogger.Out, "no outputs keeps the current one")

	require.NoError(t, SetOutputs([]string{"-"}, 0, 0))
	require.Equal(t, os.Stdout, defaultLogger.Out)

	require.NoError(t, SetOutputs([]string{"", "="}, 0, 0))
	require.Equal(t, os.Stderr, defaultLogger.Out)

	dir := t.TempDir()
	proxyLog := filepath.Join(dir, "proxy.log")
	auditLog := filepath.Join(dir, "audit.log")
	require.NoError(t, SetOutputs([]string{proxyLog, auditLog}, 1, 1))
	_, err := defaultLogger.Out.Write([]byte("forwarded repo/list\n"))
	require.NoError(t, err)
	require.NoError(t, CloseWriters())
	for _, name := range []string{proxyLog, auditLog} {
		contents, err := os.ReadFile(name)
		require.NoError(t, err)
		require.Equal(t, "forwarded repo/list\n", string(contents))
	}
}

func TestSetLevel(t *testing.T) {
	buf := captureJSON(t)
	SetLevel("warn")
	require.Equal(t, logrus.WarnLevel.String(), Level())
	Default().Info("hidden")
	require.Zero(t, buf.Len())
	Default().Warn("shown")
	require.Equal(t, "shown", lastEntry(t, buf)["msg"])

	SetLevel("unknown")
	require.Equal(t, logrus.WarnLevel.String(), Level(), "unknown level names are ignored")
}

func TestLogCallerTrimmer(t *testing.T) {
	tests := []struct {
		name             string
		file             string
		function         string
		expectedFile     string
		expectedFunction string
	}{
		{
			name:             "checkout directory",
			file:             "/home/user/src/blihweb/pkg/proxy/handler.go",
			function:         "github.com/blihweb/blihweb/pkg/proxy.(*Handler).ServeHTTP",
			expectedFile:     "pkg/proxy/handler.go:42",
			expectedFunction: "pkg/proxy.(*Handler).ServeHTTP",
		},
		{
			name:             "suffixed directory",
			file:             "/home/user/src/blihweb-fork/pkg/acl/diff.go",
			function:         "github.com/blihweb/blihweb/pkg/acl.Diff",
			expectedFile:     "pkg/acl/diff.go:42",
			expectedFunction: "pkg/acl.Diff",
		},
		{
			name:             "mixed case directory",
			file:             "/home/user/src/BlihWeb/cmd/blihctl/cmd/root.go",
			function:         "github.com/blihweb/blihweb/cmd/blihctl/cmd.Execute",
			expectedFile:     "cmd/blihctl/cmd/root.go:42",
			expectedFunction: "cmd/blihctl/cmd.Execute",
		},
		{
			name:             "outside project",
			file:             "/usr/lib/go/src/net/http/server.go",
			function:         "net/http.HandlerFunc.ServeHTTP",
			expectedFile:     "usr/lib/go/src/net/http/server.go:42",
			expectedFunction: "net/http.HandlerFunc.ServeHTTP",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			function, file := logCallerTrimmer(&runtime.Frame{File: tt.file, Line: 42, Function: tt.function})
			require.Equal(t, tt.expectedFile, file)
			require.Equal(t, tt.expectedFunction, function)
		})
	}
}

func TestContextFields(t *testing.T) {
	buf := captureJSON(t)
	ctx := AddFields(context.Background(), Fields{
		OperationFieldKey: "repo/getacl",
		UserFieldKey:      "john.doe@epitech.eu",
	})
	ctx = AddFields(ctx, Fields{RepositoryFieldKey: "tek1"})

	FromContext(ctx).WithField(StatusFieldKey, "200").Info("forwarded")
	entry := lastEntry(t, buf)
	require.Equal(t, "forwarded", entry["msg"])
	require.Equal(t, "repo/getacl", entry[OperationFieldKey])
	require.Equal(t, "john.doe@epitech.eu", entry[UserFieldKey])
	require.Equal(t, "tek1", entry[RepositoryFieldKey])
	require.Equal(t, "200", entry[StatusFieldKey])

	Default().WithContext(ctx).Debug("again")
	require.Equal(t, "tek1", lastEntry(t, buf)[RepositoryFieldKey])

	ContextUnavailable().Info("bare")
	_, found := lastEntry(t, buf)[RepositoryFieldKey]
	require.False(t, found)
}

func TestAddFieldsKeepsParent(t *testing.T) {
	parent := AddFields(context.Background(), Fields{UserFieldKey: "john.doe@epitech.eu"})
	child := AddFields(parent, Fields{UserFieldKey: "jane.doe@epitech.eu", SSHKeyFieldKey: "laptop"})

	require.Equal(t, Fields{UserFieldKey: "john.doe@epitech.eu"}, GetFieldsFromContext(parent))
	require.Equal(t, Fields{UserFieldKey: "jane.doe@epitech.eu", SSHKeyFieldKey: "laptop"}, GetFieldsFromContext(child))
	require.Nil(t, GetFieldsFromContext(context.Background()))
}
