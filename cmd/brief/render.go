package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/briefkit/brief/internal/render"
)

func renderCmd() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:          "render <selector>",
		Short:        "Render a report as markdown or HTML",
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
			var doc string
			switch format {
			case "markdown", "md":
				doc, err = render.Markdown(&o)
			case "html":
				doc, err = render.HTML(&o)
			default:
				return fmt.Errorf("unknown format %q (want markdown or html)", format)
			}
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				fmt.Print(doc)
				return nil
			}
			if err := os.WriteFile(output, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("write rendered report: %w", err)
			}
			fmt.Printf("Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "output format: markdown or html")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}
