package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/blihweb/blihweb/pkg/cache"
	"github.com/blihweb/blihweb/pkg/client"
	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/blihweb/blihweb/pkg/session"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// BlihctlPassword names the environment variable read instead of prompting for the password.
const BlihctlPassword = "BLIHCTL_PASSWORD"

func getClient() *client.Client {
	values := cfg.Values
	loader := client.NewLoader(func(busy bool) {
		logging.ContextUnavailable().WithField("busy", busy).Trace("loader")
	})
	c, err := client.New(client.Params{
		ServerURL: values.Server.EndpointURL,
		Timeout:   values.Options.RequestTimeout,
		Loader:    loader,
	})
	if err != nil {
		DieErr(err)
	}
	return c
}

// newSession builds a session over c.  A nil infoCache keeps repository information for the
// life of the session.
func newSession(c *client.Client, infoCache cache.Cache) *session.Session {
	values := cfg.Values
	return session.New(session.Params{
		API:         c,
		Normalizer:  values.Normalizer(),
		Parallelism: values.Options.Parallelism,
		StaleAfter:  values.Options.StaleAfter,
		IdleTimeout: values.Options.IdleTimeout,
		InfoCache:   infoCache,
	})
}

// infoCacheFor returns the repository information cache for cmd: only the shell lives long
// enough to reuse what it fetched.
func infoCacheFor(cmd *cobra.Command) cache.Cache {
	if cmd.Name() == shellCommandName {
		return nil
	}
	return cache.NoCache
}

// getSession logs in with the remembered login, prompting for what is missing.
func getSession(cmd *cobra.Command) *session.Session {
	login := cfg.Values.Credentials.Login
	if login == "" {
		login = Must(promptLogin(""))
	}
	password := Must(readPassword())
	sess := newSession(getClient(), infoCacheFor(cmd))
	if err := sess.Login(cmd.Context(), login, password); err != nil {
		DieErr(err)
	}
	return sess
}

func promptLogin(current string) (string, error) {
	prompt := promptui.Prompt{
		Label:   "Login",
		Default: current,
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%w: login", session.ErrInvalidInput)
			}
			return nil
		},
	}
	login, err := prompt.Run()
	return strings.TrimSpace(login), err
}

// readPassword reads the password from the environment, the terminal without echo or the
// first line of standard input.
func readPassword() (string, error) {
	if password, ok := os.LookupEnv(BlihctlPassword); ok {
		return password, nil
	}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		_, _ = fmt.Fprint(os.Stderr, "Password: ")
		password, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(password), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
