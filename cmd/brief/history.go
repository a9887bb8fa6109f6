package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:          "history <selector>",
		Short:        "Show a report's audit trail, oldest first",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			events, err := svc.History(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(events)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ACTION ID\tTYPE\tACTOR\tTIMESTAMP\tPAYLOAD")
			for _, ev := range events {
				payload, _ := json.Marshal(ev.Payload)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", ev.ActionID, ev.ActionType, ev.Actor, ev.TS, payload)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print events as JSON")
	return cmd
}
