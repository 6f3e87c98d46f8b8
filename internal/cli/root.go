// Package cli is the offline command line front end of the timetable engine.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/pkg/logger"
)

type runContextKey struct{}

type runContext struct {
	logger    *zap.Logger
	runID     string
	startedAt time.Time
}

// NewRootCommand builds the timetable-cli command tree writing results to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "timetable-cli",
		Short:         "Generate weekly school timetables offline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logr, err := logger.NewCLI(logLevel)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			rc := &runContext{logger: logr, runID: uuid.NewString(), startedAt: time.Now()}
			cmd.SetContext(context.WithValue(cmd.Context(), runContextKey{}, rc))
			logr.Debug("command start", zap.String("command", cmd.CommandPath()), zap.String("run_id", rc.runID))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			rc := fromContext(cmd.Context())
			rc.logger.Debug("command end",
				zap.String("command", cmd.CommandPath()),
				zap.String("run_id", rc.runID),
				zap.Duration("duration", time.Since(rc.startedAt)),
			)
			_ = rc.logger.Sync()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newGenerateCommand(), newMappingsCommand(), newTokenCommand())
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := NewRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func fromContext(ctx context.Context) *runContext {
	if rc, ok := ctx.Value(runContextKey{}).(*runContext); ok {
		return rc
	}
	return &runContext{logger: zap.NewNop(), startedAt: time.Now()}
}

// writeOutput writes data to path, or to the command's output when path is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
