package cmd

import (
	"fmt"

	"github.com/blihweb/blihweb/pkg/acl"
	"github.com/spf13/cobra"
)

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List repositories",
	Args:  cobra.NoArgs,
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	Run: func(cmd *cobra.Command, args []string) {
		sess := getSession(cmd)
		pattern := Must(cmd.Flags().GetString(filterFlagName))
		if err := runRepoList(cmd.Context(), sess, cmd.OutOrStdout(), pattern); err != nil {
			DieErr(err)
		}
	},
}

var repoShowCmd = &cobra.Command{
	Use:     "show [repository]",
	Short:   "Show repository information and ACL",
	Example: "blihctl repo show my-project",
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sess := getSession(cmd)
		var name string
		if len(args) > 0 {
			name = args[0]
		} else {
			name = Must(selectRepository(cmd.Context(), sess))
		}
		if err := runRepoShow(cmd.Context(), sess, cmd.OutOrStdout(), name); err != nil {
			DieErr(err)
		}
	},
}

var repoCreateCmd = &cobra.Command{
	Use:     "create <repository>",
	Short:   "Create a repository and apply its initial ACL",
	Long:    "Create a repository.  Unless --acl or --no-acl is given, ramassage-tek gets read access.",
	Example: "blihctl repo create my-project --acl jane.doe:rw",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initial := Must(aclFlag(cmd, "acl"))
		if Must(cmd.Flags().GetBool("no-acl")) {
			initial = acl.Set{}
		}
		sess := getSession(cmd)
		if err := runRepoCreate(cmd.Context(), sess, cmd.OutOrStdout(), args[0], initial); err != nil {
			DieErr(err)
		}
	},
}

var repoDeleteCmd = &cobra.Command{
	Use:     "delete <repository>",
	Short:   "Delete existing repository",
	Example: "blihctl repo delete my-project",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		confirmation, err := Confirm(cmd.Flags(), "Are you sure you want to delete repository: "+name)
		if err != nil || !confirmation {
			DieFmt("Delete Repository '%s' aborted\n", name)
		}
		sess := getSession(cmd)
		if err := runRepoDelete(cmd.Context(), sess, cmd.OutOrStdout(), name); err != nil {
			DieErr(err)
		}
	},
}

// aclFlag parses a user:rights list flag, nil when the flag was not set.
func aclFlag(cmd *cobra.Command, name string) (acl.Set, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	pairs, err := cmd.Flags().GetStringSlice(name)
	if err != nil {
		return nil, err
	}
	set, err := parseACL(pairs)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return set, nil
}

//nolint:gochecknoinits
func init() {
	repoCreateCmd.Flags().StringSlice("acl", nil, "initial ACL as user:rights pairs, rights among r, w and a")
	repoCreateCmd.Flags().Bool("no-acl", false, "create the repository without ACL")
	repoCreateCmd.MarkFlagsMutuallyExclusive("acl", "no-acl")
	AssignAutoConfirmFlag(repoDeleteCmd.Flags())

	withFilterFlag(repoListCmd)
	repoCmd.AddCommand(repoListCmd, repoShowCmd, repoCreateCmd, repoDeleteCmd)
}
