package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseCreationTime(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		expected time.Time
		wantErr  bool
	}{
		{name: "number", raw: `1430000000.75`, expected: time.Unix(1430000000, 0)},
		{name: "string", raw: `"1430000000.75"`, expected: time.Unix(1430000000, 0)},
		{name: "padded string", raw: `" 1430000000 "`, expected: time.Unix(1430000000, 0)},
		{name: "missing", raw: ``},
		{name: "null", raw: `null`},
		{name: "empty string", raw: `""`},
		{name: "garbage", raw: `"yesterday"`, wantErr: true},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCreationTime(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, tt.expected.Equal(got), "got %s, expected %s", got, tt.expected)
		})
	}
}
