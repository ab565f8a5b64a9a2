// Command registry runs the registry HTTP server over a configured
// storage driver.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/anchorage/registry/configuration"
	"github.com/anchorage/registry/handlers"
	"github.com/anchorage/registry/storage"
	"github.com/anchorage/registry/storagedriver/factory"
	"github.com/anchorage/registry/version"

	_ "github.com/anchorage/registry/storagedriver/inmemory"
	_ "github.com/anchorage/registry/storagedriver/s3"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "registry",
	Short: "An OCI distribution registry",
	Long:  "A content-addressable OCI distribution registry backed by pluggable storage drivers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Usage()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", version.Package, version.Version)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve <config>",
	Short: "Serve the registry over HTTP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fp, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer fp.Close()

		config, err := configuration.Parse(fp)
		if err != nil {
			return fmt.Errorf("error parsing %s: %w", args[0], err)
		}

		return serve(config)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}

func serve(config *configuration.Configuration) error {
	level, err := logrus.ParseLevel(string(config.Log.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	driver, err := factory.Create(config.Storage.Type(), config.Storage.Parameters())
	if err != nil {
		return fmt.Errorf("error constructing %q driver: %w", config.Storage.Type(), err)
	}

	registry := storage.New(driver, storage.WithUploadTimeout(config.Uploads.Timeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweepUploads(ctx, registry, config.Uploads.SweepInterval)

	server := &http.Server{
		Addr:    config.HTTP.Addr,
		Handler: gorillahandlers.CombinedLoggingHandler(os.Stdout, handlers.NewApp(registry)),
	}

	errs := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":    config.HTTP.Addr,
			"storage": config.Storage.Type(),
			"version": version.Version,
		}).Info("registry listening")
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// sweepUploads expires idle upload sessions on a fixed interval until the
// context is cancelled.
func sweepUploads(ctx context.Context, registry *storage.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.Uploads().SweepExpired(ctx); n > 0 {
				logrus.WithField("count", n).Info("expired upload sessions swept")
			}
		}
	}
}
