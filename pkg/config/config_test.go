package config_test

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blihweb/blihweb/pkg/config"
	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/blihweb/blihweb/pkg/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newConfigFromFile(t *testing.T, fn string) (*config.Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetConfigFile(fn)
	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, err
	}
	err = cfg.Validate()
	return cfg, err
}

func TestConfig_Setup(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	// test defaults
	c, err := config.NewConfig()
	testutil.Must(t, err)
	testutil.MustDo(t, "validate defaults", c.Validate())
	require.Equal(t, config.DefaultListenAddress, c.ListenAddress)
	require.Equal(t, config.DefaultUpstreamEndpoint, c.Upstream.Endpoint)
	require.Equal(t, 5*time.Second, c.Upstream.Timeout)
	require.Zero(t, c.Upstream.MaxRetries)
	require.True(t, c.UI.Enabled)
}

func TestConfig_NewFromFile(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		c, err := newConfigFromFile(t, "testdata/valid_config.yaml")
		testutil.Must(t, err)
		require.Equal(t, "0.0.0.0:8005", c.ListenAddress)
		require.Equal(t, "http://localhost:9000", c.Upstream.Endpoint)
		require.Equal(t, 2*time.Second, c.Upstream.Timeout)
		require.Equal(t, 2, c.Upstream.MaxRetries)
		require.Equal(t, "0123456789abcdef", c.Security.CookieBlockKey.SecureValue())
		require.Equal(t, config.Strings{"-"}, c.Logging.Output)
		require.False(t, c.UI.Enabled)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := newConfigFromFile(t, "testdata/invalid_config.yaml")
		var parseErr viper.ConfigParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected invalid configuration file to fail parsing, got %v", err)
		}
	})

	t.Run("missing config", func(t *testing.T) {
		_, err := newConfigFromFile(t, "testdata/valid_configgggggggggggggggg.yaml")
		if !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected missing configuration file to fail, got %v", err)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := newConfigFromFile(t, "testdata/unknown_key.yaml")
		require.Error(t, err)
		require.Contains(t, err.Error(), "hostname")
	})

	t.Run("bad cookie block key", func(t *testing.T) {
		_, err := newConfigFromFile(t, "testdata/bad_block_key.yaml")
		require.ErrorIs(t, err, config.ErrBadCookieBlockKey)
	})
}

func TestConfig_ToLoggerFields(t *testing.T) {
	c, err := newConfigFromFile(t, "testdata/valid_config.yaml")
	testutil.Must(t, err)
	fields := c.ToLoggerFields()
	require.Equal(t, "http://localhost:9000", fields["upstream.endpoint"])
	require.Equal(t, "0.0.0.0:8005", fields["listen_address"])
	require.Equal(t, "[SECRET]", fmt.Sprint(fields["security.cookie_block_key"]))
}

func TestConfig_EnvironmentVariables(t *testing.T) {
	const endpoint = "https://blih.example.org"
	t.Setenv("BLIHWEB_UPSTREAM_ENDPOINT", endpoint)

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetEnvPrefix("BLIHWEB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // support nested config
	// read in environment variables
	viper.AutomaticEnv()

	c, err := config.NewConfig()
	testutil.Must(t, err)
	require.Equal(t, endpoint, c.Upstream.Endpoint)
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name     string
		endpoint string
		timeout  time.Duration
		retries  int
		err      error
	}{
		{name: "ok", endpoint: "https://blih.epitech.eu", timeout: time.Second},
		{name: "no scheme", endpoint: "blih.epitech.eu", timeout: time.Second, err: config.ErrBadUpstreamEndpoint},
		{name: "ftp", endpoint: "ftp://blih.epitech.eu", timeout: time.Second, err: config.ErrBadUpstreamEndpoint},
		{name: "no timeout", endpoint: "https://blih.epitech.eu", err: config.ErrBadUpstreamTimeout},
		{name: "negative retries", endpoint: "https://blih.epitech.eu", timeout: time.Second, retries: -1, err: config.ErrBadRetries},
		{name: "missing endpoint", timeout: time.Second, err: config.ErrMissingRequiredKeys},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &config.Config{ListenAddress: config.DefaultListenAddress}
			c.Upstream.Endpoint = tc.endpoint
			c.Upstream.Timeout = tc.timeout
			c.Upstream.MaxRetries = tc.retries
			err := c.Validate()
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestConfig_JSONLogger(t *testing.T) {
	logfile := filepath.Join(t.TempDir(), "blihweb_json_logger_test.log")
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set(config.LoggingFormatKey, "json")
	viper.Set(config.LoggingOutputKey, logfile)
	_, err := config.NewConfig()
	testutil.Must(t, err)
	t.Cleanup(func() {
		_ = logging.CloseWriters()
		logging.SetOutputFormat(config.DefaultLoggingFormat)
		_ = logging.SetOutputs([]string{config.DefaultLoggingOutput}, 0, 0)
	})

	logging.ContextUnavailable().Info("some message that I should be looking for")

	content, err := os.Open(logfile)
	if err != nil {
		t.Fatalf("unexpected error reading log file: %s", err)
	}
	defer func() {
		_ = content.Close()
	}()
	reader := bufio.NewReader(content)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("could not read line from logfile: %s", err)
	}
	m := make(map[string]string)
	err = json.Unmarshal([]byte(line), &m)
	if err != nil {
		t.Fatalf("could not parse JSON line from logfile: %s", err)
	}
	if _, ok := m["msg"]; !ok {
		t.Fatalf("expected a msg field, could not find one")
	}
}
