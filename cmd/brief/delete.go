package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "delete <selector>",
		Short:        "Move a report to the trash",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			trashPath, err := svc.Delete(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			fmt.Printf("Report moved to %s\n", trashPath)
			return nil
		},
	}
}
