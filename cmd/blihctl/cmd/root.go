package cmd

import (
	"errors"
	"strings"

	"github.com/blihweb/blihweb/cmd/blihctl/cmd/config"
	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/blihweb/blihweb/pkg/version"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "BLIHCTL"

var (
	cfgFile string
	cfg     *config.Config

	// logLevel logging level (default is off)
	logLevel string
	// logFormat logging format
	logFormat string
	// logOutputs logging outputs
	logOutputs []string
)

// rootCmd represents the base command when called without any sub-commands
var rootCmd = &cobra.Command{
	Use:     "blihctl",
	Short:   "A cli tool to manage BLIH repositories, ACLs and SSH keys",
	Long:    `blihctl signs requests with your BLIH credentials and sends them through a blihweb proxy`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetLevel(logLevel)
		logging.SetOutputFormat(logFormat)
		if err := logging.SetOutputs(logOutputs, 0, 0); err != nil {
			DieErr(err)
		}
		if noColorRequested {
			DisableColors()
		}

		if cfg.Err() == nil {
			logging.Default().
				WithField("file", viper.ConfigFileUsed()).
				Debug("loaded configuration from file")
		}
		var errNotFound viper.ConfigFileNotFoundError
		switch {
		case cfg.Err() == nil, errors.As(cfg.Err(), &errNotFound):
			// no file found in the search path: run on defaults and environment
		case isNotExist(cfg.Err()) && cmd == configCmd:
			// config creates the file
		case isNotExist(cfg.Err()):
			DieFmt("config file not found, please run \"blihctl config\" to create one\n%s\n", cfg.Err())
		default:
			DieFmt("error reading configuration file: %v", cfg.Err())
		}

		if err := cfg.Load(); err != nil {
			DieFmt("error unmarshal configuration: %v", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		DieErr(err)
	}
}

//nolint:gochecknoinits
func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.blihctl.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColorRequested, "no-color", false, "don't use fancy output colors (default when not attached to an interactive terminal)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", "none", "set logging level")
	rootCmd.PersistentFlags().StringVarP(&logFormat, "log-format", "", "", "set logging output format")
	rootCmd.PersistentFlags().StringSliceVarP(&logOutputs, "log-output", "", []string{}, "set logging output(s)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			DieErr(err)
		}
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".blihctl")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // support nested config
	viper.AutomaticEnv()                                   // read in environment variables that match

	cfg = config.ReadConfig()
}
