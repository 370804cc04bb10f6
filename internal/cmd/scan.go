package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/cookiebanner/scanner/internal/browser"
	"github.com/cookiebanner/scanner/internal/config"
	"github.com/cookiebanner/scanner/internal/logging"
	"github.com/cookiebanner/scanner/internal/scan"
)

// ScanOptions holds the flags and computed state for `cookiescan scan`.
type ScanOptions struct {
	outFile *os.File

	URL         string
	ConfigPath  string
	WorkerID    int
	Headless    bool
	OutPath     string
	ScanOptions scan.Options

	iooption.IOStreams
}

var (
	scanLong = templates.LongDesc(`
		Run a single site scan: detect the cookie-consent banner (if any),
		enumerate its clickables, optionally replay each one, and print the
		resulting JSON record.`)

	scanExample = templates.Examples(`
		# Scan a single site, printing the result to stdout
		cookiescan scan https://example.com

		# Scan with a config file overriding defaults
		cookiescan scan --config ./cookiescan.yaml https://example.com`)
)

func NewScanOptions(streams iooption.IOStreams) *ScanOptions {
	return &ScanOptions{
		IOStreams: streams,
	}
}

func NewScanCommand(o *ScanOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "scan [URL]",
		DisableFlagsInUseLine: true,
		Short:                 "Scan a single site for a cookie-consent banner",
		Long:                  scanLong,
		Example:               scanExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			return o.Run()
		},
	}

	pflags := cmd.PersistentFlags()
	pflags.StringVarP(&o.ConfigPath, "config", "c", "", "Path to a config file overriding defaults (optional)")
	pflags.IntVarP(&o.WorkerID, "worker-id", "w", 0, "Worker index; binds the debugging port to 9222+worker-id")
	pflags.BoolVar(&o.Headless, "headless", true, "Run the browser headless")
	pflags.StringVarP(&o.OutPath, "out", "o", "", "Output file for the JSON result (default: stdout)")

	return cmd
}

func (o *ScanOptions) Complete(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("URL is required")
	}
	o.URL = args[0]

	opts, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	o.ScanOptions = opts
	return nil
}

func (o *ScanOptions) Validate() error {
	if len(o.URL) == 0 {
		return fmt.Errorf("URL is required")
	}

	if o.OutPath != "" {
		f, err := os.Create(o.OutPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		o.outFile = f
	}

	return nil
}

func (o *ScanOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if o.outFile != nil {
		defer o.outFile.Close()
	}

	log := logging.New("info")

	fmt.Fprintf(o.Out, "Scanning %s...\n", o.URL)

	w, err := browser.Acquire(ctx, browser.Options{
		WorkerID:       o.WorkerID,
		Headless:       o.Headless,
		RandomUA:       o.ScanOptions.RandomUserAgent,
		ViewportWidth:  int64(o.ScanOptions.ResolutionWidth),
		ViewportHeight: int64(o.ScanOptions.ResolutionHeight),
	}, log)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer w.Release()

	res, err := scan.RunWithRetry(ctx, w, scan.Input{SiteURL: o.URL}, o.ScanOptions, log)
	if res == nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Fprintf(o.Out, "Scan complete: chrome_error=%q reachable=%t preferred_detector=%q\n",
		res.ChromeError, res.Reachable, res.PreferredDetector)

	resultJSON, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if o.outFile != nil {
		_, err = o.outFile.Write(resultJSON)
	} else {
		_, err = o.Out.Write(append(resultJSON, '\n'))
	}
	if err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	dir := "."
	if o.OutPath != "" {
		dir = filepath.Dir(o.OutPath)
	}
	for name, data := range res.Files {
		if werr := os.WriteFile(filepath.Join(dir, name), data, 0o644); werr != nil {
			fmt.Fprintf(o.ErrOut, "warning: failed to write attachment %q: %v\n", name, werr)
		}
	}

	return nil
}
