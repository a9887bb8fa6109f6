package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/briefkit/brief/internal/service"
)

func evolveCmd() *cobra.Command {
	var file string
	var expectedVersion int
	var allowUncited, dryRun bool
	cmd := &cobra.Command{
		Use:          "evolve <selector>",
		Short:        "Apply a batch of changes to a report",
		Long:         "Apply a batch of changes read as JSON from --file (or stdin). The batch is validated in full before anything is applied; on failure every problem is reported at once.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readChanges(file)
			if err != nil {
				return err
			}
			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.Evolve(cmd.Context(), args[0], raw, service.EvolveOptions{
				ExpectedVersion: expectedVersion,
				AllowUncited:    allowUncited,
				DryRun:          dryRun,
			})
			if err != nil {
				var valErr *service.ValidationFailedError
				if errors.As(err, &valErr) {
					fmt.Fprintln(os.Stderr, "Validation failed:")
					for _, ve := range valErr.Errors {
						fmt.Fprintf(os.Stderr, "  [%s] %s: %s\n", ve.Code, ve.Field, ve.Message)
					}
					for _, w := range valErr.Warnings {
						fmt.Fprintf(os.Stderr, "  warning: %s\n", w)
					}
					return fmt.Errorf("%d validation error(s)", len(valErr.Errors))
				}
				return err
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}
			if res.DryRun {
				fmt.Printf("Dry run OK: would produce version %d\n", res.Outline.OutlineVersion)
			} else {
				fmt.Printf("Evolved report %s to version %d (action %s)\n", res.Outline.ReportID, res.Outline.OutlineVersion, res.ActionID)
			}
			sum := res.Summary
			fmt.Printf("  insights: +%d ~%d -%d  sections: +%d ~%d -%d\n",
				len(sum.InsightsAdded), len(sum.InsightsModified), len(sum.InsightsRemoved),
				len(sum.SectionsAdded), len(sum.SectionsModified), len(sum.SectionsRemoved))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "changes JSON file, or - for stdin")
	cmd.Flags().IntVar(&expectedVersion, "expected-version", 0, "fail unless the current outline version matches")
	cmd.Flags().BoolVar(&allowUncited, "allow-uncited", false, "permit new insights without citations")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and report without applying")
	return cmd
}

func readChanges(file string) (map[string]any, error) {
	var data []byte
	var err error
	if file == "" || file == "-" {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read changes from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read changes file: %w", err)
		}
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse changes JSON: %w", err)
	}
	return raw, nil
}
