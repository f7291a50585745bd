// Package bootstrap builds the process-wide infrastructure: the logger and
// the NATS transport (embedded server plus client).
package bootstrap

import (
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// NewLogger builds the shared logger: timestamped, caller-annotated, colored
// when the terminal supports it.
func NewLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stdout, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Level:           log.DebugLevel,
		TimeFormat:      time.Kitchen,
	})
	logger.SetColorProfile(lipgloss.ColorProfile())
	return logger
}
