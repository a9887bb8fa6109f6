package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/briefkit/brief/internal/index"
)

func listCmd() *cobra.Command {
	var status, sortBy string
	var tags []string
	var reverse, asJSON bool
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List reports, filtered by status and tags",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			entries := svc.List(index.ListOptions{
				Status:  status,
				Tags:    tags,
				SortBy:  sortBy,
				Reverse: reverse,
			})
			if asJSON {
				return printJSON(entries)
			}
			if len(entries) == 0 {
				fmt.Println("No reports.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tUPDATED\tTAGS")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.ReportID, e.CurrentTitle, e.Status, e.UpdatedAt, strings.Join(e.Tags, ","))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status: active or archived")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "require every given tag")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort by: updated_at, created_at, or title")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "reverse the sort order")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}
