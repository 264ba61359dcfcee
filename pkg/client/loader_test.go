package client_test

import (
	"testing"

	"github.com/blihweb/blihweb/pkg/client"
	"github.com/stretchr/testify/require"
)

func TestLoader(t *testing.T) {
	var changes []bool
	l := client.NewLoader(func(busy bool) { changes = append(changes, busy) })

	first := l.Acquire()
	second := l.Acquire()
	require.Equal(t, 2, l.Count())
	require.True(t, l.Busy())

	first()
	first()
	require.Equal(t, 1, l.Count(), "release is idempotent")

	l.Reset()
	require.Zero(t, l.Count())
	second()
	require.Zero(t, l.Count(), "release after reset must not go negative")

	third := l.Acquire()
	require.Equal(t, 1, l.Count())
	third()
	require.False(t, l.Busy())

	require.Equal(t, []bool{true, false, true, false}, changes)
}
