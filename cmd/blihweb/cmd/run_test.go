package cmd

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListenOrigin(t *testing.T) {
	cases := []struct {
		address string
		want    string
	}{
		{address: "0.0.0.0:1337", want: "http://localhost:1337"},
		{address: ":8080", want: "http://localhost:8080"},
		{address: "127.0.0.1:1337", want: "http://127.0.0.1:1337"},
		{address: "[::]:1337", want: "http://localhost:1337"},
		{address: "blih.local", want: "http://blih.local"},
	}
	for _, tt := range cases {
		t.Run(tt.address, func(t *testing.T) {
			require.Equal(t, tt.want, listenOrigin(tt.address))
		})
	}
}

func TestPrintWelcome(t *testing.T) {
	var buf bytes.Buffer
	printWelcome(&buf, "http://localhost:1337")
	require.Contains(t, buf.String(), "Point blihctl at http://localhost:1337")
}

type fakeShutter struct {
	called bool
}

func (f *fakeShutter) Shutdown(context.Context) error {
	f.called = true
	return nil
}

func TestGracefulShutdown(t *testing.T) {
	quit := make(chan os.Signal, 1)
	done := make(chan bool)
	s := &fakeShutter{}
	go gracefulShutdown(context.Background(), quit, done, "http://localhost:1337", s)
	quit <- os.Interrupt
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	require.True(t, s.called)
}
