package cmd

import (
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/blihweb/blihweb/cmd/blihctl/cmd/config"
	"github.com/manifoldco/promptui"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create/update local blihctl configuration",
	Run: func(cmd *cobra.Command, args []string) {
		setConfigFile()
		fmt.Printf("Config file %s will be used\n", viper.ConfigFileUsed())

		questions := []struct {
			Key    string
			Prompt *promptui.Prompt
		}{
			{Key: config.ConfigServerEndpointURLKey, Prompt: &promptui.Prompt{Label: "blihweb server URL", Validate: promptuiValidateURL}},
			{Key: config.ConfigLoginKey, Prompt: &promptui.Prompt{Label: "Login"}},
		}
		for _, question := range questions {
			question.Prompt.Default = viper.GetString(question.Key)
			val, err := question.Prompt.Run()
			if err != nil {
				DieErr(err)
			}
			viper.Set(question.Key, val)
		}
		if err := writeConfig(); err != nil {
			DieErr(err)
		}
	},
}

func promptuiValidateURL(s string) error {
	_, err := url.ParseRequestURI(s)
	return err
}

// setConfigFile points viper at $HOME/.blihctl.yaml when no file was found.
func setConfigFile() {
	if viper.ConfigFileUsed() != "" {
		return
	}
	home, err := homedir.Dir()
	if err != nil {
		DieErr(err)
	}
	viper.SetConfigFile(filepath.Join(home, ".blihctl.yaml"))
}

func writeConfig() error {
	setConfigFile()
	err := viper.SafeWriteConfig()
	if err != nil {
		err = viper.WriteConfig()
	}
	return err
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(configCmd)
}
