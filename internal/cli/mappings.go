package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMappingsCommand() *cobra.Command {
	var (
		input  string
		output string
		format string
	)
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Show the lesson mappings a problem document expands to",
		RunE: func(cmd *cobra.Command, args []string) error {
			problem, err := LoadProblem(input)
			if err != nil {
				return err
			}
			result := problem.Mappings()
			fromContext(cmd.Context()).logger.Info("mappings built",
				zap.Int("mappings", len(result.Mappings)),
				zap.Int("warnings", len(result.Warnings)),
				zap.Int("errors", len(result.Errors)),
			)
			data, err := encode(result, format)
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, data)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "problem document (YAML or JSON)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", formatYAML, "output format: json or yaml")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
