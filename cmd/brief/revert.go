package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func revertCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "revert <selector> <action-id>",
		Short:        "Revert a report to the state before a past action",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			o, err := svc.Revert(cmd.Context(), args[0], args[1], "")
			if err != nil {
				return err
			}
			fmt.Printf("Reverted report %s to the state recorded by action %s (now version %d)\n", o.ReportID, args[1], o.OutlineVersion)
			return nil
		},
	}
}
