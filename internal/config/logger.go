package config

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
)

// NewLogger builds the charm log handler configured by AppLogLevel and
// AppLogFormat.
func (c *Config) NewLogger(w io.Writer) *log.Logger {
	opts := log.Options{
		Level:           log.Level(c.AppLogLevel),
		ReportTimestamp: true,
	}
	if c.AppLogFormat == "json" {
		opts.Formatter = log.JSONFormatter
	}
	return log.NewWithOptions(w, opts)
}

// InstallLogger makes the charm handler the slog default.
func (c *Config) InstallLogger() {
	slog.SetDefault(slog.New(c.NewLogger(os.Stderr)))
}
