// Package cli implements the planbridge command-line interface.
//
// This package provides commands for building planning hierarchies from flat
// records, moving workspaces between environments as validated snapshots,
// and syncing ProductBoard features into Azure DevOps. The CLI is built using
// cobra and supports verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - hierarchy: Build a forest from entities, snapshots, stories or ProductBoard
//   - export, import, validate: Move workspaces as snapshots
//   - sync: Plan and apply a ProductBoard to Azure DevOps sync
//   - workspaces, auth: Inspect workspaces and manage their credentials
//   - serve: Run the HTTP API
//   - cache: Manage the response cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context so library code logs with the same settings.
//
// # Example
//
//	import "github.com/matzehuels/planbridge/internal/cli"
//
//	func main() {
//	    if err := cli.Execute(ctx, os.Args[1:]); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns the CLI logger: timestamps with hundredths of a second,
// filtered at level.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs how long an operation took, e.g.
// "Built 3 roots from 42 entities (1.234s)".
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs the formatted message with the elapsed time in milliseconds.
func (p *progress) done(format string, args ...any) {
	elapsed := time.Since(p.start).Round(time.Millisecond)
	p.logger.Info(fmt.Sprintf(format, args...), "took", elapsed)
}

type loggerKey struct{}

// withLogger attaches l to ctx for code that has no CLI at hand.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// loggerFromContext returns the logger attached by withLogger, or the
// package default.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
