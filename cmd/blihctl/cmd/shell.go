package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/blihweb/blihweb/pkg/acl"
	"github.com/blihweb/blihweb/pkg/session"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

const (
	shellCommandName  = "shell"
	idleCheckInterval = time.Second

	shellHelp = `Commands:
  repos [pattern]               list repositories, optionally matching a glob
  refresh                       reload the repository list
  show <repository>             show information and ACL
  create <repository> [u:r ...] create a repository, default ACL when none given
  delete <repository>           delete a repository
  acl <repository> [u:r ...]    replace the ACL of a repository
  keys [pattern]                list SSH keys, optionally matching a glob
  upload <file>                 upload a public SSH key
  delkey <name>                 delete an SSH key
  logout                        log out and leave
  help                          show this help
  exit                          leave
`
)

var errShellExit = errors.New("exit")

type shellCommand struct {
	minArgs int
	run     func(ctx context.Context, sess *session.Session, w io.Writer, args []string) error
}

var shellCommands = map[string]shellCommand{
	"repos": {run: func(ctx context.Context, sess *session.Session, w io.Writer, args []string) error {
		return runRepoList(ctx, sess, w, firstArg(args))
	}},
	"refresh": {run: func(ctx context.Context, sess *session.Session, w io.Writer, _ []string) error {
		if err := sess.RefreshRepositories(ctx); err != nil {
			return err
		}
		PrintMessage(w, sess.Message())
		return nil
	}},
	"show": {minArgs: 1, run: func(ctx context.Context, sess *session.Session, w io.Writer, args []string) error {
		return runRepoShow(ctx, sess, w, args[0])
	}},
	"create": {minArgs: 1, run: func(ctx context.Context, sess *session.Session, w io.Writer, args []string) error {
		var initial acl.Set
		if len(args) > 1 {
			var err error
			if initial, err = parseACL(args[1:]); err != nil {
				return err
			}
		}
		return runRepoCreate(ctx, sess, w, args[0], initial)
	}},
	"delete": {minArgs: 1, run: func(ctx context.Context, sess *session.Session, w io.Writer, args []string) error {
		return runRepoDelete(ctx, sess, w, args[0])
	}},
	"acl": {minArgs: 1, run: func(ctx context.Context, sess *session.Session, w io.Writer, args []string) error {
		draft, err := parseACL(args[1:])
		if err != nil {
			return err
		}
		return runACLSet(ctx, sess, w, args[0], draft)
	}},
	"keys": {run: func(ctx context.Context, sess *session.Session, w io.Writer, args []string) error {
		return runSSHList(ctx, sess, w, firstArg(args))
	}},
	"upload": {minArgs: 1, run: func(ctx context.Context, sess *session.Session, w io.Writer, args []string) error {
		content, err := readKeyFile(args[0])
		if err != nil {
			return err
		}
		return runSSHUpload(ctx, sess, w, content)
	}},
	"delkey": {minArgs: 1, run: func(ctx context.Context, sess *session.Session, w io.Writer, args []string) error {
		return runSSHDelete(ctx, sess, w, args[0])
	}},
	"logout": {run: func(_ context.Context, sess *session.Session, w io.Writer, _ []string) error {
		sess.Logout()
		PrintMessage(w, sess.Message())
		return errShellExit
	}},
	"help": {run: func(_ context.Context, _ *session.Session, w io.Writer, _ []string) error {
		_, err := io.WriteString(w, shellHelp)
		return err
	}},
	"exit": {run: func(context.Context, *session.Session, io.Writer, []string) error {
		return errShellExit
	}},
}

// runShellLine runs one shell line.  Errors of the command are printed, only leaving the shell
// is returned.
func runShellLine(ctx context.Context, sess *session.Session, w io.Writer, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	command, ok := shellCommands[fields[0]]
	if !ok {
		_, _ = fmt.Fprintf(w, "unknown command %q, type help\n", fields[0])
		return nil
	}
	if len(fields)-1 < command.minArgs {
		_, _ = fmt.Fprintf(w, "%s needs %d argument(s), type help\n", fields[0], command.minArgs)
		return nil
	}
	err := command.run(ctx, sess, w, fields[1:])
	switch {
	case errors.Is(err, errShellExit):
		return err
	case err != nil:
		var sErr *session.Error
		if errors.As(err, &sErr) {
			PrintMessage(w, sess.Message())
		} else {
			WriteTo(DeathMessage, struct{ Error string }{err.Error()}, w)
		}
	}
	return nil
}

// watchIdle logs the session out once idle, until ctx is done.
func watchIdle(ctx context.Context, sess *session.Session, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sess.CheckIdle()
		}
	}
}

var shellCmd = &cobra.Command{
	Use:   shellCommandName,
	Short: "Run an interactive session",
	Long:  "Log in once and run commands in a single session.  The session is logged out after the idle timeout.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		sess := getSession(cmd)
		w := cmd.OutOrStdout()
		PrintMessage(w, sess.Message())

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go watchIdle(ctx, sess, idleCheckInterval)

		prompt := promptui.Prompt{Label: sess.Credential().ShortLogin}
		for {
			line, err := prompt.Run()
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return
			}
			if err != nil {
				DieErr(err)
			}
			if !sess.LoggedIn() {
				PrintMessage(w, sess.Message())
				return
			}
			if err := runShellLine(ctx, sess, w, line); errors.Is(err, errShellExit) {
				return
			}
		}
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(shellCmd)
}
