package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/blihweb/blihweb/pkg/session"
	"github.com/spf13/cobra"
)

var sshCmd = &cobra.Command{
	Use:   "ssh",
	Short: "Manage SSH keys",
}

func runSSHList(ctx context.Context, sess *session.Session, w io.Writer, pattern string) error {
	match, err := nameMatcher(pattern)
	if err != nil {
		return err
	}
	keys, err := sess.SSHKeys(ctx)
	if err != nil {
		return err
	}
	var rows [][]interface{}
	for _, k := range keys {
		if !match(k.Name) {
			continue
		}
		name := k.Name
		if k.RecentlyUploaded {
			name += " " + recentTag()
		}
		rows = append(rows, []interface{}{name, abbreviate(k.Content)})
	}
	PrintTable(w, rows, []interface{}{"Name", "Key"})
	PrintMessage(w, sess.Message())
	return nil
}

// abbreviate keeps the start and the end of long key contents.
func abbreviate(content string) string {
	const keep = 24
	if len(content) <= 2*keep+3 {
		return content
	}
	return content[:keep] + "..." + content[len(content)-keep:]
}

func runSSHUpload(ctx context.Context, sess *session.Session, w io.Writer, content string) error {
	if err := sess.UploadSSHKey(ctx, content); err != nil {
		return err
	}
	PrintMessage(w, sess.Message())
	return nil
}

func runSSHDelete(ctx context.Context, sess *session.Session, w io.Writer, name string) error {
	if err := sess.DeleteSSHKey(ctx, name); err != nil {
		return err
	}
	PrintMessage(w, sess.Message())
	return nil
}

// readKeyFile reads a public key from path, standard input for "-".
func readKeyFile(path string) (string, error) {
	var (
		content []byte
		err     error
	)
	if path == "-" {
		content, err = io.ReadAll(os.Stdin)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read ssh key: %w", err)
	}
	return string(content), nil
}

var sshListCmd = &cobra.Command{
	Use:   "list",
	Short: "List SSH keys",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		sess := getSession(cmd)
		pattern := Must(cmd.Flags().GetString(filterFlagName))
		if err := runSSHList(cmd.Context(), sess, cmd.OutOrStdout(), pattern); err != nil {
			DieErr(err)
		}
	},
}

var sshUploadCmd = &cobra.Command{
	Use:     "upload <public key file>",
	Short:   "Upload a public SSH key",
	Example: "blihctl ssh upload ~/.ssh/id_ed25519.pub",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		content := Must(readKeyFile(args[0]))
		sess := getSession(cmd)
		if err := runSSHUpload(cmd.Context(), sess, cmd.OutOrStdout(), content); err != nil {
			DieErr(err)
		}
	},
}

var sshDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Short:   "Delete an SSH key",
	Example: "blihctl ssh delete john@laptop",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		confirmation, err := Confirm(cmd.Flags(), "Are you sure you want to delete SSH key: "+name)
		if err != nil || !confirmation {
			DieFmt("Delete SSH key '%s' aborted\n", name)
		}
		sess := getSession(cmd)
		if err := runSSHDelete(cmd.Context(), sess, cmd.OutOrStdout(), name); err != nil {
			DieErr(err)
		}
	},
}

//nolint:gochecknoinits
func init() {
	AssignAutoConfirmFlag(sshDeleteCmd.Flags())
	withFilterFlag(sshListCmd)
	sshCmd.AddCommand(sshListCmd, sshUploadCmd, sshDeleteCmd)
	rootCmd.AddCommand(sshCmd)
}
