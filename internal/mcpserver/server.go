// Package mcpserver exposes the report service to external agents over the
// Model Context Protocol. It is a thin adapter: every tool translates the
// tool-call envelope into one service call and maps typed errors back to
// protocol-level results. No business logic lives here.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/briefkit/brief/internal/service"
)

// New creates the MCP server with every report tool registered.
func New(svc *service.Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"brief",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("brief manages living reports: structured documents with "+
			"sections and cited insights that evolve over time. Mutations are validated, "+
			"versioned, audited, and revertible. Read a report before evolving it and pass "+
			"expected_version to avoid overwriting concurrent edits."),
	)

	createTool := &CreateTool{svc: svc}
	s.AddTool(createTool.Definition(), createTool.Handle)

	getTool := &GetTool{svc: svc}
	s.AddTool(getTool.Definition(), getTool.Handle)

	listTool := &ListTool{svc: svc}
	s.AddTool(listTool.Definition(), listTool.Handle)

	evolveTool := &EvolveTool{svc: svc}
	s.AddTool(evolveTool.Definition(), evolveTool.Handle)

	revertTool := &RevertTool{svc: svc}
	s.AddTool(revertTool.Definition(), revertTool.Handle)

	forkTool := &ForkTool{svc: svc}
	s.AddTool(forkTool.Definition(), forkTool.Handle)

	synthesizeTool := &SynthesizeTool{svc: svc}
	s.AddTool(synthesizeTool.Definition(), synthesizeTool.Handle)

	archiveTool := &ArchiveTool{svc: svc}
	s.AddTool(archiveTool.Definition(), archiveTool.Handle)

	tagTool := &TagTool{svc: svc}
	s.AddTool(tagTool.Definition(), tagTool.Handle)

	deleteTool := &DeleteTool{svc: svc}
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	historyTool := &HistoryTool{svc: svc}
	s.AddTool(historyTool.Definition(), historyTool.Handle)

	return s
}

// ServeStdio runs the server over stdio until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
