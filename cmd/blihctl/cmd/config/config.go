package config

import (
	"time"

	"github.com/blihweb/blihweb/pkg/auth"
	"github.com/blihweb/blihweb/pkg/client"
	configtypes "github.com/blihweb/blihweb/pkg/config"
	"github.com/blihweb/blihweb/pkg/state"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	ConfigServerEndpointURLKey = "server.endpoint_url"
	ConfigLoginKey             = "credentials.login"
	ConfigLoginDomainKey       = "login.domain"
	ConfigLoginExemptKey       = "login.exempt"
	ConfigParallelismKey       = "options.parallelism"
	ConfigStaleAfterKey        = "options.stale_after"
	ConfigIdleTimeoutKey       = "options.idle_timeout"
	ConfigRequestTimeoutKey    = "options.request_timeout"

	DefaultServerEndpointURL = "http://localhost:1337"
	DefaultParallelism       = 4
	DefaultIdleTimeout       = time.Minute
)

// Values is the content of the blihctl configuration file.
type Values struct {
	Server struct {
		EndpointURL string `mapstructure:"endpoint_url"`
	} `mapstructure:"server"`
	Credentials struct {
		// Login is the remembered login; the password is never stored.
		Login string `mapstructure:"login"`
	} `mapstructure:"credentials"`
	Login struct {
		Domain string              `mapstructure:"domain"`
		Exempt configtypes.Strings `mapstructure:"exempt"`
	} `mapstructure:"login"`
	Options struct {
		Parallelism    int           `mapstructure:"parallelism"`
		StaleAfter     time.Duration `mapstructure:"stale_after"`
		IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
		RequestTimeout time.Duration `mapstructure:"request_timeout"`
	} `mapstructure:"options"`
}

type Config struct {
	Values Values
	err    error
}

// ReadConfig reads the configuration file viper points at.  A read failure is kept in Err so
// commands that do not need the file can go on.
func ReadConfig() *Config {
	setDefaults()
	c := &Config{}
	c.err = viper.ReadInConfig()
	return c
}

func (c *Config) Err() error {
	return c.err
}

// Load decodes what viper holds, file and environment, into Values.
func (c *Config) Load() error {
	return viper.UnmarshalExact(&c.Values, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			configtypes.DecodeStrings,
			mapstructure.StringToTimeDurationHookFunc())))
}

func setDefaults() {
	viper.SetDefault(ConfigServerEndpointURLKey, DefaultServerEndpointURL)
	viper.SetDefault(ConfigLoginKey, "")
	viper.SetDefault(ConfigLoginDomainKey, auth.DefaultDomain)
	viper.SetDefault(ConfigLoginExemptKey, auth.DefaultExempt)
	viper.SetDefault(ConfigParallelismKey, DefaultParallelism)
	viper.SetDefault(ConfigStaleAfterKey, state.DefaultStaleAfter)
	viper.SetDefault(ConfigIdleTimeoutKey, DefaultIdleTimeout)
	viper.SetDefault(ConfigRequestTimeoutKey, client.DefaultTimeout)
}

func (v *Values) Normalizer() auth.Normalizer {
	exempt := []string(v.Login.Exempt)
	if len(exempt) == 0 {
		exempt = auth.DefaultExempt
	}
	return auth.Normalizer{Domain: v.Login.Domain, Exempt: exempt}
}
