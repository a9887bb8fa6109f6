package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect and repair the global report index",
	}
	cmd.AddCommand(indexValidateCmd())
	cmd.AddCommand(indexRebuildCmd())
	return cmd
}

func indexValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "validate",
		Short:        "Check the index against the report directories without repairing",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			problems := svc.CheckIndex()
			if len(problems) == 0 {
				fmt.Println("Index is consistent.")
				return nil
			}
			for _, p := range problems {
				fmt.Println(p)
			}
			return fmt.Errorf("%d index problem(s)", len(problems))
		},
	}
}

func indexRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "rebuild",
		Short:        "Rebuild the index from the report directories",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			warnings, err := svc.RebuildIndex()
			if err != nil {
				return err
			}
			for _, w := range warnings {
				fmt.Println("warning:", w)
			}
			fmt.Printf("Index rebuilt: %d report(s)\n", svc.Index().Len())
			return nil
		},
	}
}
