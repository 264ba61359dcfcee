package cmd

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/blihweb/blihweb/pkg/config"
	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/blihweb/blihweb/pkg/version"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "BLIHWEB"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "blihweb",
	Short:   "blihweb forwards signed requests to the BLIH API",
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var initOnce sync.Once

//nolint:gochecknoinits
func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml, $HOME/.blihweb/config.yaml or /etc/blihweb/config.yaml)")
}

func loadConfig() *config.Config {
	initOnce.Do(initConfig)
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Println("Failed to load config file", err)
		os.Exit(1)
	}
	return cfg
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	logger := logging.Default().WithField("phase", "startup")
	if cfgFile != "" {
		logger.WithField("file", cfgFile).Info("Configuration file")
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath(path.Join(getHomeDir(), ".blihweb"))
		viper.AddConfigPath("/etc/blihweb")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // support nested config
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	logger = logger.WithField("file", viper.ConfigFileUsed()) // should be called after SetConfigFile
	var errFileNotFound viper.ConfigFileNotFoundError
	switch {
	case errors.As(err, &errFileNotFound):
		logger.Info("No configuration file, using defaults")
	case err != nil:
		logger.WithError(err).Fatal("Failed to read config file")
	}

	cfg, err := config.NewConfig()
	if err != nil {
		logger.WithError(err).Fatal("Load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid config")
	}
	logger.WithFields(cfg.ToLoggerFields()).Info("Config loaded")
}

// getHomeDir find and return the home directory
func getHomeDir() string {
	home, err := homedir.Dir()
	if err != nil {
		fmt.Println("Get home directory -", err)
		os.Exit(1)
	}
	return home
}
