package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"
)

const filterFlagName = "filter"

var ErrInvalidPattern = errors.New("invalid pattern")

func withFilterFlag(cmd *cobra.Command) {
	cmd.Flags().StringP(filterFlagName, "f", "", "only list names matching this glob (case-insensitive, e.g. 'tek1-*')")
}

// nameMatcher compiles a case-insensitive glob.  An empty pattern matches every name.
func nameMatcher(pattern string) (func(name string) bool, error) {
	if pattern == "" {
		return func(string) bool { return true }, nil
	}
	g, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %s", ErrInvalidPattern, pattern, err)
	}
	return func(name string) bool {
		return g.Match(strings.ToLower(name))
	}, nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
