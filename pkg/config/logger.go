package config

import (
	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/spf13/viper"
)

const (
	DefaultLoggingFormat = "text"
	DefaultLoggingLevel  = "INFO"
	DefaultLoggingOutput = "-"
)

func setupLogger() {
	// set output format
	logging.SetOutputFormat(viper.GetString(LoggingFormatKey))

	// set outputs
	err := logging.SetOutputs(viper.GetStringSlice(LoggingOutputKey),
		viper.GetInt(LoggingFileMaxSizeMBKey), viper.GetInt(LoggingFilesKeepKey))
	if err != nil {
		logging.ContextUnavailable().WithError(err).Error("Failed to set log outputs")
	}

	// set level
	logging.SetLevel(viper.GetString(LoggingLevelKey))
}
