package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/briefkit/brief/internal/history"
)

func execCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Record and inspect query executions used as insight citations",
	}
	cmd.AddCommand(execRecordCmd())
	cmd.AddCommand(execListCmd())
	return cmd
}

func execRecordCmd() *cobra.Command {
	var description string
	var rowCount int
	cmd := &cobra.Command{
		Use:          "record <sql>",
		Short:        "Record a query execution and print its citation ids",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, hist, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			ex, err := hist.Record(cmd.Context(), history.Execution{
				Query:       args[0],
				Description: description,
				RowCount:    rowCount,
			})
			if err != nil {
				return err
			}
			fmt.Printf("execution_id: %s\nsql_hash: %s\n", ex.ExecutionID, ex.SQLHash)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "what the query answers")
	cmd.Flags().IntVar(&rowCount, "rows", 0, "row count the query returned")
	return cmd
}

func execListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List recorded executions, newest first",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, hist, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			execs, err := hist.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "EXECUTION ID\tHASH\tROWS\tEXECUTED\tDESCRIPTION")
			for _, ex := range execs {
				hash := ex.SQLHash
				if len(hash) > 12 {
					hash = hash[:12]
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", ex.ExecutionID, hash, ex.RowCount, ex.ExecutedAt, ex.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum executions to list")
	return cmd
}
