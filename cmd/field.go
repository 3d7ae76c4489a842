package cmd

import (
	"github.com/spf13/cobra"
)

func newFieldCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "field <app-id> <name>",
		Short: `Print one listing field ("aso" prints the report)`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			value, err := appInstance.Scraper().GetField(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, value)
		},
	}
}

func newFieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields <app-id> <name>...",
		Short: "Print several listing fields in the order given",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			fields, err := appInstance.Scraper().GetFields(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			return printJSON(cmd, fields)
		},
	}
}
