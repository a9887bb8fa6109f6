package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/briefkit/brief/internal/mcpserver"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Serve the report tools to agents over MCP stdio",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			log.Info().Str("version", version).Msg("serving MCP over stdio")
			return mcpserver.ServeStdio(mcpserver.New(svc, version))
		},
	}
}
