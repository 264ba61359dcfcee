package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

var (
	ErrBadConfiguration    = errors.New("bad configuration")
	ErrBadUpstreamEndpoint = fmt.Errorf("%w: upstream.endpoint must be an absolute http(s) URL", ErrBadConfiguration)
	ErrBadUpstreamTimeout  = fmt.Errorf("%w: upstream.timeout must be positive", ErrBadConfiguration)
	ErrBadRetries          = fmt.Errorf("%w: upstream.max_retries cannot be negative", ErrBadConfiguration)
	ErrBadCookieBlockKey   = fmt.Errorf("%w: security.cookie_block_key must be 16, 24 or 32 bytes", ErrBadConfiguration)
	ErrMissingRequiredKeys = fmt.Errorf("%w: missing required keys", ErrBadConfiguration)
)

// Config is the output struct of configuration, used to validate.  If you read a key using a
// viper accessor rather than accessing a field of this struct, that key will *not* be
// validated.  So don't do that.
type Config struct {
	ListenAddress string `mapstructure:"listen_address" validate:"required"`

	Logging struct {
		Format        string  `mapstructure:"format"`
		Level         string  `mapstructure:"level"`
		Output        Strings `mapstructure:"output"`
		FileMaxSizeMB int     `mapstructure:"file_max_size_mb"`
		FilesKeep     int     `mapstructure:"files_keep"`
		AuditLogLevel string  `mapstructure:"audit_log_level"`
	} `mapstructure:"logging"`

	Upstream struct {
		Endpoint     string        `mapstructure:"endpoint" validate:"required"`
		Timeout      time.Duration `mapstructure:"timeout"`
		MaxRetries   int           `mapstructure:"max_retries"`
		RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
		RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
	} `mapstructure:"upstream"`

	Security struct {
		CookieHashKey  SecureString `mapstructure:"cookie_hash_key"`
		CookieBlockKey SecureString `mapstructure:"cookie_block_key"`
	} `mapstructure:"security"`

	UI struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"ui"`
}

// NewConfig reads the configuration currently loaded into viper, on top of the defaults.
func NewConfig() (*Config, error) {
	c := &Config{}

	// Inform viper of all expected fields.  Otherwise, it fails to deserialize from the
	// environment.
	keys := GetStructKeys(reflect.TypeOf(c), "mapstructure", "squash")
	for _, key := range keys {
		viper.SetDefault(key, nil)
	}

	setDefaults()
	setupLogger()

	err := viper.UnmarshalExact(c, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			DecodeStrings, DecodeSecureString, mapstructure.StringToTimeDurationHookFunc())))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	missingKeys := ValidateMissingRequiredKeys(c, "mapstructure", "squash")
	if len(missingKeys) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingRequiredKeys, missingKeys)
	}

	u, err := url.Parse(c.Upstream.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrBadUpstreamEndpoint, c.Upstream.Endpoint)
	}
	if c.Upstream.Timeout <= 0 {
		return ErrBadUpstreamTimeout
	}
	if c.Upstream.MaxRetries < 0 {
		return ErrBadRetries
	}
	switch len(c.Security.CookieBlockKey.SecureValue()) {
	case 0, 16, 24, 32: //nolint: mnd
	default:
		return ErrBadCookieBlockKey
	}
	return nil
}
