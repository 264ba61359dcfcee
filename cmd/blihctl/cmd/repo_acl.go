package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/blihweb/blihweb/pkg/acl"
	"github.com/blihweb/blihweb/pkg/auth"
	"github.com/blihweb/blihweb/pkg/session"
	"github.com/spf13/cobra"
)

var ErrInvalidACL = errors.New("invalid ACL entry")

// parseACL reads user:rights pairs.  Rights are letters among r, w and a; none drops the user.
func parseACL(pairs []string) (acl.Set, error) {
	set := make(acl.Set, 0, len(pairs))
	for _, pair := range pairs {
		user, rights, _ := strings.Cut(pair, ":")
		user = strings.TrimSpace(user)
		if user == "" {
			return nil, fmt.Errorf("%w: %q has no user", ErrInvalidACL, pair)
		}
		if strings.Trim(rights, "rwa") != "" {
			return nil, fmt.Errorf("%w: %q rights must be among r, w and a", ErrInvalidACL, pair)
		}
		set = append(set, acl.Entry{User: user, Rights: acl.ParseRights(rights)})
	}
	return set, nil
}

// editACL returns current with grants set and revoked users removed.  current is not modified.
func editACL(n auth.Normalizer, current acl.Set, grants acl.Set, revoked []string) acl.Set {
	draft := current.Clone()
	for _, g := range grants {
		found := false
		for i := range draft {
			if n.SameUser(draft[i].User, g.User) {
				draft[i].Rights = g.Rights
				found = true
			}
		}
		if !found {
			draft = append(draft, g)
		}
	}
	for _, user := range revoked {
		kept := draft[:0]
		for _, e := range draft {
			if !n.SameUser(e.User, user) {
				kept = append(kept, e)
			}
		}
		draft = kept
	}
	return draft
}

func runACLSet(ctx context.Context, sess *session.Session, w io.Writer, repository string, draft acl.Set) error {
	if err := sess.SaveACL(ctx, repository, draft); err != nil {
		return err
	}
	PrintMessage(w, sess.Message())
	return nil
}

func runACLEdit(ctx context.Context, sess *session.Session, w io.Writer, repository string, grants acl.Set, revoked []string) error {
	view, err := sess.OpenRepository(ctx, repository)
	if err != nil {
		return err
	}
	return runACLSet(ctx, sess, w, repository, editACL(sess.Normalizer(), view.ACL, grants, revoked))
}

var repoACLCmd = &cobra.Command{
	Use:   "acl",
	Short: "Manage repository ACL",
}

var repoACLSetCmd = &cobra.Command{
	Use:     "set <repository> [user:rights ...]",
	Short:   "Replace the ACL of a repository",
	Long:    "Replace the ACL of a repository.  Users left out lose their rights.",
	Example: "blihctl repo acl set my-project ramassage-tek:r jane.doe:rw",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		draft, err := parseACL(args[1:])
		if err != nil {
			DieErr(err)
		}
		sess := getSession(cmd)
		if err := runACLSet(cmd.Context(), sess, cmd.OutOrStdout(), args[0], draft); err != nil {
			DieErr(err)
		}
	},
}

var repoACLEditCmd = &cobra.Command{
	Use:     "edit <repository>",
	Short:   "Grant or revoke rights on a repository",
	Example: "blihctl repo acl edit my-project --grant jane.doe:rw --revoke john.smith",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		grants := Must(aclFlag(cmd, "grant"))
		revoked := Must(cmd.Flags().GetStringSlice("revoke"))
		if len(grants) == 0 && len(revoked) == 0 {
			DieFmt("nothing to change, use --grant or --revoke")
		}
		sess := getSession(cmd)
		if err := runACLEdit(cmd.Context(), sess, cmd.OutOrStdout(), args[0], grants, revoked); err != nil {
			DieErr(err)
		}
	},
}

//nolint:gochecknoinits
func init() {
	repoACLEditCmd.Flags().StringSlice("grant", nil, "user:rights pairs to set")
	repoACLEditCmd.Flags().StringSlice("revoke", nil, "users to remove from the ACL")

	repoACLCmd.AddCommand(repoACLSetCmd, repoACLEditCmd)
	repoCmd.AddCommand(repoACLCmd)
}
