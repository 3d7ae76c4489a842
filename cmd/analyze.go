package cmd

import (
	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <app-id>",
		Short: "Print every listing field plus the ASO report",
		Example: `  gplay-aso analyze com.spotify.music
  gplay-aso analyze --proxy http://proxy.example:8080 com.example.app`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := appInstance.Scraper().Analyze(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}
