package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/scheduler"
)

// ErrIncomplete is returned when the chosen timetable leaves hours unplaced or has conflicts.
// The result is still written.
var ErrIncomplete = errors.New("timetable incomplete")

type generateOptions struct {
	input          string
	output         string
	format         string
	seed           int64
	attempts       int
	strictAttempts int
}

func newGenerateCommand() *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the timetable engine on a problem document",
		Long: `Run the timetable engine on a YAML or JSON problem document and write the result.

Examples:
  timetable-cli generate --input problem.yaml
  timetable-cli generate --input problem.yaml --seed 42 --output result.json
  timetable-cli generate --input problem.yaml --format pdf --output timetable.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "", "problem document (YAML or JSON)")
	flags.StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	flags.StringVarP(&opts.format, "format", "f", "", "output format: json, yaml, csv or pdf (default from output extension, else json)")
	flags.Int64Var(&opts.seed, "seed", 0, "random seed; 0 picks one from the clock")
	flags.IntVar(&opts.attempts, "attempts", 0, "maximum attempts (default 100)")
	flags.IntVar(&opts.strictAttempts, "strict-attempts", 0, "maximum attempts when distribution patterns are enforced (default 150)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	format, err := resolveFormat(opts.format, opts.output)
	if err != nil {
		return err
	}
	if format == formatPDF && opts.output == "" {
		return fmt.Errorf("pdf output needs --output")
	}

	problem, err := LoadProblem(opts.input)
	if err != nil {
		return err
	}
	rc := fromContext(cmd.Context())
	logr := rc.logger.With(zap.String("run_id", rc.runID))

	mapping := problem.Mappings()
	for _, w := range mapping.Warnings {
		logr.Warn("mapping warning", zap.String("detail", w))
	}
	if len(mapping.Mappings) == 0 {
		return fmt.Errorf("%s: %s", scheduler.ErrNoMappings, strings.Join(mapping.Errors, "; "))
	}

	engine := scheduler.NewEngine(scheduler.Config{
		MaxAttempts:       opts.attempts,
		StrictMaxAttempts: opts.strictAttempts,
		Seed:              opts.seed,
	}, logr.Named("engine"))

	last := -1
	result := engine.Generate(cmd.Context(), problem.Input(mapping.Mappings, opts.seed), func(percent int) {
		if percent/10 != last/10 {
			logr.Info("generation progress", zap.Int("percent", percent))
		}
		last = percent
	})
	result.Warnings = append(mapping.Warnings, result.Warnings...)
	result.Errors = append(mapping.Errors, result.Errors...)

	logr.Info("generation finished",
		zap.Bool("success", result.Success),
		zap.Int("attempts", result.Attempts),
		zap.Int("placed", result.Statistics.PlacedLessons),
		zap.Int("total", result.Statistics.TotalLessonsToPlace),
		zap.Int("conflicts", result.Conflicts),
		zap.Int64("seed", result.Seed),
	)

	data, err := renderResult(problem, result, format)
	if err != nil {
		return fmt.Errorf("render result: %w", err)
	}
	if err := writeOutput(cmd, opts.output, data); err != nil {
		return err
	}

	if result.Cancelled {
		return cmd.Context().Err()
	}
	if !result.Success || result.Conflicts > 0 || result.Statistics.PlacedLessons < result.Statistics.TotalLessonsToPlace {
		return fmt.Errorf("%w: %d of %d hours placed, %d conflicts",
			ErrIncomplete, result.Statistics.PlacedLessons, result.Statistics.TotalLessonsToPlace, result.Conflicts)
	}
	return nil
}

func resolveFormat(format, output string) (string, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
		if format == "yml" {
			format = formatYAML
		}
		if format == "" {
			format = formatJSON
		}
	}
	switch format {
	case formatJSON, formatYAML, formatCSV, formatPDF:
		return format, nil
	}
	return "", fmt.Errorf("unsupported format %q (json, yaml, csv, pdf)", format)
}
