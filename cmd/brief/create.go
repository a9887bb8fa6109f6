package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/briefkit/brief/internal/templates"
)

func createCmd() *cobra.Command {
	var templateName string
	var tags []string
	cmd := &cobra.Command{
		Use:          "create <title>",
		Short:        "Create a new report, optionally from a template",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			o, err := svc.Create(cmd.Context(), args[0], templateName, tags, "")
			if err != nil {
				return err
			}
			fmt.Printf("Created report %s (version %d, %d sections)\n", o.ReportID, o.OutlineVersion, len(o.Sections))
			return nil
		},
	}
	cmd.Flags().StringVar(&templateName, "template", "", "template name: "+strings.Join(templates.Names(), ", "))
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "initial tags (repeatable)")
	return cmd
}
