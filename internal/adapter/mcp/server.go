// Package mcp exposes the task service to AI agents over the Model Context
// Protocol, served as a streamable HTTP endpoint.
package mcp

import (
	"context"
	"net/http"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/taskdeck/internal/domain/task"
	"github.com/Strob0t/taskdeck/internal/service"
)

// TaskManager is the subset of the task service the tools call.
type TaskManager interface {
	List(ctx context.Context, q task.ListQuery) (*task.ListResult, error)
	Get(ctx context.Context, id string) (*task.Task, error)
	Create(ctx context.Context, req task.CreateRequest) (*task.Task, error)
	Update(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error)
	Delete(ctx context.Context, id string) error
}

// CommandRunner executes natural-language commands and resolves references.
type CommandRunner interface {
	Execute(ctx context.Context, message string) (*service.CommandResult, error)
	Resolve(ctx context.Context, ref string) (*task.Task, error)
}

// ServerConfig holds MCP server identity.
type ServerConfig struct {
	Name    string
	Version string
	Path    string // endpoint path, e.g. /mcp
	APIKey  string // empty disables auth
}

// ServerDeps are the services backing the tools. Nil deps make the
// corresponding tools report an error result.
type ServerDeps struct {
	Tasks    TaskManager
	Commands CommandRunner
}

// Server wraps an MCP server with the taskdeck tools and resources.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
}

// NewServer creates the MCP server and registers tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable HTTP handler, guarded by AuthMiddleware.
func (s *Server) Handler() http.Handler {
	h := mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath(s.cfg.Path),
		mcpserver.WithStateLess(true),
	)
	return AuthMiddleware(s.cfg.APIKey, h)
}

func toolResultJSON(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: text},
		},
	}
}
