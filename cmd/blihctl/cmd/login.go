package cmd

import (
	"github.com/blihweb/blihweb/cmd/blihctl/cmd/config"
	"github.com/blihweb/blihweb/pkg/cache"
	"github.com/blihweb/blihweb/pkg/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var loginCmd = &cobra.Command{
	Use:     "login [login]",
	Short:   "Check credentials against BLIH and remember the login",
	Long:    "Log into BLIH through the blihweb proxy.  Only the login is saved; the password is asked for on every run.",
	Example: "blihctl login john.doe",
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		login := cfg.Values.Credentials.Login
		noPrompt := Must(cmd.Flags().GetBool("no-prompt"))
		switch {
		case len(args) > 0:
			login = args[0]
		case login == "" || !noPrompt:
			login = Must(promptLogin(login))
		}
		password := Must(readPassword())
		sess := newSession(getClient(), cache.NoCache)
		if err := sess.Login(cmd.Context(), login, password); err != nil {
			DieErr(err)
		}
		PrintMessage(cmd.OutOrStdout(), sess.Message())

		if Must(cmd.Flags().GetBool("remember")) {
			viper.Set(config.ConfigLoginKey, sess.Credential().ShortLogin)
			if err := writeConfig(); err != nil {
				DieErr(err)
			}
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the remembered login",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		viper.Set(config.ConfigLoginKey, "")
		if err := writeConfig(); err != nil {
			DieErr(err)
		}
		PrintMessage(cmd.OutOrStdout(), session.Message{Kind: session.MessageSuccess, Text: session.TextLoggedOut})
	},
}

//nolint:gochecknoinits
func init() {
	loginCmd.Flags().Bool("remember", true, "save the login in the configuration file")
	loginCmd.Flags().Bool("no-prompt", false, "use the remembered login without asking")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
