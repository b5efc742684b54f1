package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/designscore/designscore/internal/orchestrator"
	"github.com/designscore/designscore/internal/prompt"
)

// newAnalyzeCmd creates the 'analyze' subcommand for one-shot CLI analysis.
func newAnalyzeCmd() *cobra.Command {
	var (
		includeMobile bool
		logToSheets   bool
		analysisType  string
	)

	cmd := &cobra.Command{
		Use:   "analyze <url>",
		Short: "Analyzes one website and prints the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Orch.Analyze(cmd.Context(), args[0], orchestrator.Options{
				IncludeMobile:   includeMobile,
				LogToSheets:     logToSheets,
				AnalysisType:    prompt.AnalysisType(analysisType),
				UploadArtifacts: true,
			})
			if err != nil {
				return fmt.Errorf("analyze %s: %w", args[0], err)
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			cmd.Println(string(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeMobile, "mobile", false, "capture the mobile viewport as well")
	cmd.Flags().BoolVar(&logToSheets, "sheets", false, "log the result to the configured spreadsheet")
	cmd.Flags().StringVar(&analysisType, "type", string(prompt.TypePDFReport), "analysis type: pdf_report, quick, or detailed")

	return cmd
}
