package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func tagCmd() *cobra.Command {
	var add, remove []string
	cmd := &cobra.Command{
		Use:          "tag <selector>",
		Short:        "Add and remove tags on a report",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			o, err := svc.Tag(cmd.Context(), args[0], add, remove, "")
			if err != nil {
				return err
			}
			fmt.Printf("Report %s tags: %s\n", o.ReportID, strings.Join(o.Tags(), ", "))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&add, "add", nil, "tags to add (repeatable)")
	cmd.Flags().StringSliceVar(&remove, "remove", nil, "tags to remove (repeatable)")
	return cmd
}
