package main

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/briefkit/brief/internal/render"
)

func showCmd() *cobra.Command {
	var asJSON, plain bool
	cmd := &cobra.Command{
		Use:          "show <selector>",
		Short:        "Show a report by id, title, or tag:<value>",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			o, err := svc.GetOutline(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(o)
			}
			md, err := render.Markdown(&o)
			if err != nil {
				return err
			}
			if plain {
				fmt.Print(md)
				return nil
			}
			renderer, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(100),
			)
			if err != nil {
				fmt.Print(md)
				return nil
			}
			out, err := renderer.Render(md)
			if err != nil {
				fmt.Print(md)
				return nil
			}
			fmt.Print(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw outline as JSON")
	cmd.Flags().BoolVar(&plain, "plain", false, "print plain markdown without terminal styling")
	return cmd
}
