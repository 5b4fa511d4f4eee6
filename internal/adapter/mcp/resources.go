package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Strob0t/taskdeck/internal/domain/task"
	"github.com/Strob0t/taskdeck/internal/service"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"taskdeck://tasks",
			"Task List",
			mcplib.WithResourceDescription("First page of tasks, newest update first"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleTasksResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			"taskdeck://commands/help",
			"Command Help",
			mcplib.WithResourceDescription("Phrases accepted by run_task_command"),
			mcplib.WithMIMEType("text/plain"),
		),
		s.handleCommandHelpResource,
	)
}

func (s *Server) handleTasksResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Tasks == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"task service not configured"}`,
			},
		}, nil
	}
	res, err := s.deps.Tasks.List(ctx, task.ListQuery{Page: 1, Limit: task.MaxPageLimit})
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleCommandHelpResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     service.CommandHelp,
		},
	}, nil
}
