package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func archiveCmd() *cobra.Command {
	var restore bool
	cmd := &cobra.Command{
		Use:          "archive <selector>",
		Short:        "Archive a report, or restore it with --restore",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			o, err := svc.Archive(cmd.Context(), args[0], !restore, "")
			if err != nil {
				return err
			}
			fmt.Printf("Report %s is now %s\n", o.ReportID, o.Status())
			return nil
		},
	}
	cmd.Flags().BoolVar(&restore, "restore", false, "set the report active instead of archived")
	return cmd
}
