package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blihweb/blihweb/pkg/api"
	"github.com/blihweb/blihweb/pkg/blih"
	"github.com/blihweb/blihweb/pkg/config"
	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/blihweb/blihweb/pkg/version"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	gracefulShutdownTimeout = 30 * time.Second
	readHeaderTimeout       = 10 * time.Second
)

type Shutter interface {
	Shutdown(context.Context) error
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the BLIH web proxy",
	Run: func(cmd *cobra.Command, args []string) {
		logger := logging.Default()
		cfg := loadConfig()
		viper.OnConfigChange(func(in fsnotify.Event) {
			lvl := viper.GetString(config.LoggingLevelKey)
			logger.WithFields(logging.Fields{"fromLevel": logging.Level(), "toLevel": lvl, "file": in.Name}).Info("Changing log level")
			logging.SetLevel(lvl)
		})
		viper.WatchConfig()
		defer func() { _ = logging.CloseWriters() }()

		logger.WithFields(logging.Fields{
			"version": version.Version,
			"release": version.IsRelease(version.Version),
		}).Info("blihweb run")

		upstream, err := blih.NewClient(blih.Params{
			Endpoint:     cfg.Upstream.Endpoint,
			Timeout:      cfg.Upstream.Timeout,
			MaxRetries:   cfg.Upstream.MaxRetries,
			RetryWaitMin: cfg.Upstream.RetryWaitMin,
			RetryWaitMax: cfg.Upstream.RetryWaitMax,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to create upstream client")
		}

		cookies, err := api.NewCookieCodec(
			[]byte(cfg.Security.CookieHashKey.SecureValue()),
			[]byte(cfg.Security.CookieBlockKey.SecureValue()))
		if err != nil {
			logger.WithError(err).Fatal("Failed to create cookie codec")
		}

		origin := listenOrigin(cfg.ListenAddress)
		handler, err := api.Serve(api.Params{
			Upstream:      upstream,
			Cookies:       cookies,
			Origin:        origin,
			UIEnabled:     cfg.UI.Enabled,
			AuditLogLevel: cfg.Logging.AuditLogLevel,
			Logger:        logger.WithField("service", api.LoggerServiceName),
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to set up HTTP handler")
		}

		done := make(chan bool, 1)
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		logger.WithFields(logging.Fields{
			"listen_address": cfg.ListenAddress,
			"upstream":       cfg.Upstream.Endpoint,
		}).Info("starting HTTP server")
		server := &http.Server{
			Addr:              cfg.ListenAddress,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Printf("server failed to listen on %s: %v\n", cfg.ListenAddress, err)
				os.Exit(1)
			}
		}()

		go gracefulShutdown(cmd.Context(), quit, done, origin, server)

		<-done
	},
}

// listenOrigin is the URL users reach a server listening on address with.
func listenOrigin(address string) string {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "http://" + address
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

const runBanner = `
│
│ blihweb proxies signed requests to the BLIH API.
│     Point blihctl at %s
│
`

func printWelcome(w io.Writer, origin string) {
	_, _ = fmt.Fprintf(w, runBanner, origin)
	_, _ = fmt.Fprintf(w, "Version %s\n\n", version.Version)
}

func gracefulShutdown(ctx context.Context, quit <-chan os.Signal, done chan<- bool, origin string, servers ...Shutter) {
	logger := logging.Default()
	logger.WithField("version", version.Version).Info("Up and running (^C to shutdown)...")

	printWelcome(os.Stderr, origin)

	<-quit
	logger.Warn("shutting down...")

	ctx, cancel := context.WithTimeout(ctx, gracefulShutdownTimeout)
	defer cancel()

	for i, server := range servers {
		if err := server.Shutdown(ctx); err != nil {
			fmt.Printf("Error while shutting down service (%d): %s\n", i, err)
		}
	}
	close(done)
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(runCmd)
}
