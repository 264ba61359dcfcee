package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultListenAddress = "0.0.0.0:1337"

	DefaultLoggingFilesKeepKey = 100
	DefaultAuditLogLevel       = "INFO"

	DefaultUpstreamEndpoint     = "https://blih.epitech.eu"
	DefaultUpstreamTimeout      = 5 * time.Second
	DefaultUpstreamMaxRetries   = 0
	DefaultUpstreamRetryWaitMin = 100 * time.Millisecond
	DefaultUpstreamRetryWaitMax = time.Second

	DefaultUIEnabled = true
)

// Default flag keys
const (
	ListenAddressKey = "listen_address"

	LoggingFormatKey        = "logging.format"
	LoggingLevelKey         = "logging.level"
	LoggingOutputKey        = "logging.output"
	LoggingFileMaxSizeMBKey = "logging.file_max_size_mb"
	LoggingFilesKeepKey     = "logging.files_keep"
	LoggingAuditLogLevel    = "logging.audit_log_level"

	UpstreamEndpointKey     = "upstream.endpoint"
	UpstreamTimeoutKey      = "upstream.timeout"
	UpstreamMaxRetriesKey   = "upstream.max_retries"
	UpstreamRetryWaitMinKey = "upstream.retry_wait_min"
	UpstreamRetryWaitMaxKey = "upstream.retry_wait_max"

	SecurityCookieHashKey  = "security.cookie_hash_key"
	SecurityCookieBlockKey = "security.cookie_block_key"

	UIEnabledKey = "ui.enabled"
)

func setDefaults() {
	viper.SetDefault(ListenAddressKey, DefaultListenAddress)

	viper.SetDefault(LoggingFormatKey, DefaultLoggingFormat)
	viper.SetDefault(LoggingLevelKey, DefaultLoggingLevel)
	viper.SetDefault(LoggingOutputKey, DefaultLoggingOutput)
	viper.SetDefault(LoggingFilesKeepKey, DefaultLoggingFilesKeepKey)
	viper.SetDefault(LoggingAuditLogLevel, DefaultAuditLogLevel)

	viper.SetDefault(UpstreamEndpointKey, DefaultUpstreamEndpoint)
	viper.SetDefault(UpstreamTimeoutKey, DefaultUpstreamTimeout)
	viper.SetDefault(UpstreamMaxRetriesKey, DefaultUpstreamMaxRetries)
	viper.SetDefault(UpstreamRetryWaitMinKey, DefaultUpstreamRetryWaitMin)
	viper.SetDefault(UpstreamRetryWaitMaxKey, DefaultUpstreamRetryWaitMax)

	viper.SetDefault(UIEnabledKey, DefaultUIEnabled)
}
