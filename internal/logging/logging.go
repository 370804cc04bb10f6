// Package logging constructs the per-scan zerolog logger: a console writer
// for interactive use plus, when enabled, a file sink under
// $HOME/cookiebanner_logs/ keyed by a slug derived from the scanned site
// (spec.md §6: "optional cookie-banner scan log file at
// $HOME/cookiebanner_logs/<slug>_<hash>").
//
// Grounded on the ambient-stack requirement; the console-writer setup
// follows the zerolog idiom in Rorqualx-flaresolverr-go's
// cmd/flaresolverr/main.go (setupLogging) - see DESIGN.md.
package logging

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger at the given level, with no file sink.
// level accepts zerolog's level names ("debug", "info", "warn", "error");
// anything else defaults to info.
func New(level string) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).Level(parseLevel(level)).With().Timestamp().Logger()
}

// ForScan returns a logger for one site scan. When saveLogs is true it
// additionally writes to a per-scan file under
// $HOME/cookiebanner_logs/<slug>_<hash>.log, creating the directory if
// needed; a failure to open that file falls back to console-only logging
// rather than failing the scan (§7: filesystem I/O errors on auxiliary
// outputs are logged, not fatal).
func ForScan(base zerolog.Logger, siteURL string, saveLogs bool) (zerolog.Logger, func()) {
	if !saveLogs {
		return base, func() {}
	}

	path, err := scanLogPath(siteURL)
	if err != nil {
		base.Warn().Err(err).Msg("could not determine scan log path, logging to console only")
		return base, func() {}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		base.Warn().Err(err).Str("path", path).Msg("could not create scan log directory")
		return base, func() {}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		base.Warn().Err(err).Str("path", path).Msg("could not open scan log file")
		return base, func() {}
	}

	multi := zerolog.MultiLevelWriter(consoleOf(base), f)
	logger := zerolog.New(multi).With().Timestamp().Str("log_file", path).Logger()
	return logger, func() { _ = f.Close() }
}

// consoleOf rebuilds a console writer matching the base logger's output
// target, used to keep file-sink logging additive rather than replacing
// console output.
func consoleOf(base zerolog.Logger) io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
}

// scanLogPath derives $HOME/cookiebanner_logs/<slug>_<hash> from siteURL: a
// filesystem-safe slug of the host plus a short hash of the full URL so
// distinct paths on the same host do not collide.
func scanLogPath(siteURL string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("logging: resolve home directory: %w", err)
	}

	slug := slugify(siteURL)
	sum := sha1.Sum([]byte(siteURL))
	hash := hex.EncodeToString(sum[:])[:8]

	return filepath.Join(home, "cookiebanner_logs", fmt.Sprintf("%s_%s.log", slug, hash)), nil
}

func slugify(siteURL string) string {
	host := siteURL
	if u, err := url.Parse(siteURL); err == nil && u.Host != "" {
		host = u.Host
	}
	var b strings.Builder
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "site"
	}
	return b.String()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
