package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/cookiebanner/scanner/internal/browser"
	"github.com/cookiebanner/scanner/internal/config"
	"github.com/cookiebanner/scanner/internal/logging"
	"github.com/cookiebanner/scanner/internal/operation"
	"github.com/cookiebanner/scanner/internal/server"
	"github.com/cookiebanner/scanner/internal/storage"
)

type ServeOptions struct {
	Port       int
	Workers    int
	Headless   bool
	GCSBucket  string
	LocalOut   string
	ConfigPath string
}

var (
	serveLong = templates.LongDesc(`Start the cookiescan HTTP server, backed by a pool of long-lived browser workers.`)

	serveExample = templates.Examples(`
		# Start on the default port with 4 browser workers, uploading artefacts locally
		cookiescan serve --workers 4 --local-out ./artefacts

		# Start with a GCS bucket for artefact storage
		cookiescan serve --workers 4 --bucket my-cookiescan-bucket`)
)

func NewServeOptions() *ServeOptions {
	return &ServeOptions{}
}

func NewServeCommand(o *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the cookiescan HTTP server",
		Long:    serveLong,
		Example: serveExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run()
		},
	}

	cmd.Flags().IntVarP(&o.Port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().IntVarP(&o.Workers, "workers", "n", 1, "Number of browser workers to launch")
	cmd.Flags().BoolVar(&o.Headless, "headless", true, "Run browser workers headless")
	cmd.Flags().StringVarP(&o.GCSBucket, "bucket", "b", "", "GCS bucket name for artefact storage")
	cmd.Flags().StringVar(&o.LocalOut, "local-out", "", "Local directory for artefact storage (used when --bucket is not set)")
	cmd.Flags().StringVarP(&o.ConfigPath, "config", "c", "", "Path to a config file overriding scan defaults")

	return cmd
}

func (o *ServeOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scanOpts, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}

	log := logging.New("info")

	var uploader storage.Uploader
	if o.GCSBucket != "" {
		uploader, err = storage.NewGCSUploader(ctx, o.GCSBucket)
		if err != nil {
			return fmt.Errorf("failed to initialise GCS uploader: %w", err)
		}
	} else {
		dir := o.LocalOut
		if dir == "" {
			dir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get current working directory: %w", err)
			}
		}
		uploader, err = storage.NewLocalUploader(dir)
		if err != nil {
			return fmt.Errorf("failed to initialise local uploader: %w", err)
		}
	}

	pool, err := operation.NewPool(ctx, o.Workers, browser.Options{
		Headless:       o.Headless,
		RandomUA:       scanOpts.RandomUserAgent,
		ViewportWidth:  int64(scanOpts.ResolutionWidth),
		ViewportHeight: int64(scanOpts.ResolutionHeight),
	}, log)
	if err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	defer pool.Close()

	store := operation.NewMemoryStore()
	srv := server.New(store, uploader, pool, scanOpts, log)

	addr := fmt.Sprintf(":%d", o.Port)
	log.Info().Str("addr", addr).Int("workers", o.Workers).Msg("starting cookiescan server")
	return srv.ListenAndServe(addr)
}
