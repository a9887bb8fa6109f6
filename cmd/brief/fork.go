package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func forkCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "fork <selector> <new-title>",
		Short:        "Copy a report into an independent new report",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			o, err := svc.Fork(cmd.Context(), args[0], args[1], "")
			if err != nil {
				return err
			}
			fmt.Printf("Forked into report %s (%q)\n", o.ReportID, o.Title)
			return nil
		},
	}
}
