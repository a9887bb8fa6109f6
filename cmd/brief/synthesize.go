package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func synthesizeCmd() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:          "synthesize <selector> <selector> [selector...]",
		Short:        "Combine two or more reports into a new one",
		Args:         cobra.MinimumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("--title is required")
			}
			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			o, err := svc.Synthesize(cmd.Context(), args, title, "")
			if err != nil {
				return err
			}
			fmt.Printf("Synthesized report %s (%q) from %d sources, %d insights\n", o.ReportID, o.Title, len(args), len(o.Insights))
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title for the combined report")
	return cmd
}
