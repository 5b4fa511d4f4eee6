package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/taskdeck/internal/domain"
	"github.com/Strob0t/taskdeck/internal/domain/task"
)

var statusValues = []string{string(task.StatusTodo), string(task.StatusInProgress), string(task.StatusDone)}

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.listTasksTool(),
		s.getTaskTool(),
		s.createTaskTool(),
		s.updateTaskTool(),
		s.deleteTaskTool(),
		s.runCommandTool(),
	)
}

func (s *Server) listTasksTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_tasks",
		mcplib.WithDescription("List tasks, newest update first, optionally filtered by status and project"),
		mcplib.WithReadOnlyHintAnnotation(true),
		mcplib.WithString("status", mcplib.Description("Only tasks with this status"), mcplib.Enum(statusValues...)),
		mcplib.WithString("project", mcplib.Description("Only tasks in this project")),
		mcplib.WithNumber("page", mcplib.Description("1-based page number"), mcplib.Min(1)),
		mcplib.WithNumber("limit", mcplib.Description("Page size, at most 100"), mcplib.Min(1)),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListTasks}
}

func (s *Server) getTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_task",
		mcplib.WithDescription("Get a task by id or slug"),
		mcplib.WithReadOnlyHintAnnotation(true),
		mcplib.WithString("task", mcplib.Required(), mcplib.Description("Task UUID or slug")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetTask}
}

func (s *Server) createTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("create_task",
		mcplib.WithDescription("Create a task"),
		mcplib.WithString("title", mcplib.Required(), mcplib.Description("Task title")),
		mcplib.WithString("status", mcplib.Description("Initial status, default todo"), mcplib.Enum(statusValues...)),
		mcplib.WithString("project", mcplib.Description("Project name, default \"default\"")),
		mcplib.WithString("slug", mcplib.Description("URL-friendly name, derived from the title when omitted")),
		mcplib.WithString("content", mcplib.Description("Markdown body")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleCreateTask}
}

func (s *Server) updateTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("update_task",
		mcplib.WithDescription("Update fields of an existing task. Omitted fields are left unchanged"),
		mcplib.WithString("task", mcplib.Required(), mcplib.Description("Task UUID or slug")),
		mcplib.WithString("title", mcplib.Description("New title")),
		mcplib.WithString("status", mcplib.Description("New status"), mcplib.Enum(statusValues...)),
		mcplib.WithString("project", mcplib.Description("New project")),
		mcplib.WithString("slug", mcplib.Description("New slug")),
		mcplib.WithString("content", mcplib.Description("New markdown body")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleUpdateTask}
}

func (s *Server) deleteTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("delete_task",
		mcplib.WithDescription("Delete a task"),
		mcplib.WithDestructiveHintAnnotation(true),
		mcplib.WithString("task", mcplib.Required(), mcplib.Description("Task UUID or slug")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleDeleteTask}
}

func (s *Server) runCommandTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("run_task_command",
		mcplib.WithDescription("Run a short natural-language task command such as `create task: \"Write docs\"`"),
		mcplib.WithString("message", mcplib.Required(), mcplib.Description("The command text")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleRunCommand}
}

func (s *Server) handleListTasks(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Tasks == nil {
		return mcplib.NewToolResultError("task service not configured"), nil
	}
	q := task.ListQuery{
		Page:    req.GetInt("page", 1),
		Limit:   req.GetInt("limit", task.DefaultPageLimit),
		Status:  task.Status(req.GetString("status", "")),
		Project: req.GetString("project", ""),
	}
	res, err := s.deps.Tasks.List(ctx, q)
	if err != nil {
		return toolError("failed to list tasks", err), nil
	}
	return marshalResult(res)
}

func (s *Server) handleGetTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	t, res := s.resolve(ctx, req)
	if res != nil {
		return res, nil
	}
	return marshalResult(t)
}

func (s *Server) handleCreateTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Tasks == nil {
		return mcplib.NewToolResultError("task service not configured"), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcplib.NewToolResultError("title is required"), nil
	}
	args := req.GetArguments()
	cr := task.CreateRequest{
		Title:   title,
		Slug:    optString(args, "slug"),
		Project: optString(args, "project"),
		Content: optString(args, "content"),
	}
	if st := optString(args, "status"); st != nil {
		status := task.Status(*st)
		cr.Status = &status
	}
	t, err := s.deps.Tasks.Create(ctx, cr)
	if err != nil {
		return toolError("failed to create task", err), nil
	}
	return marshalResult(t)
}

func (s *Server) handleUpdateTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	cur, res := s.resolve(ctx, req)
	if res != nil {
		return res, nil
	}
	args := req.GetArguments()
	ur := task.UpdateRequest{
		Title:   optString(args, "title"),
		Slug:    optString(args, "slug"),
		Project: optString(args, "project"),
		Content: optString(args, "content"),
	}
	if st := optString(args, "status"); st != nil {
		status := task.Status(*st)
		ur.Status = &status
	}
	t, err := s.deps.Tasks.Update(ctx, cur.ID, ur)
	if err != nil {
		return toolError("failed to update task", err), nil
	}
	return marshalResult(t)
}

func (s *Server) handleDeleteTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	cur, res := s.resolve(ctx, req)
	if res != nil {
		return res, nil
	}
	if err := s.deps.Tasks.Delete(ctx, cur.ID); err != nil {
		return toolError("failed to delete task", err), nil
	}
	return mcplib.NewToolResultText(fmt.Sprintf("Deleted task %q (%s)", cur.Title, cur.ID)), nil
}

func (s *Server) handleRunCommand(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Commands == nil {
		return mcplib.NewToolResultError("command service not configured"), nil
	}
	msg, err := req.RequireString("message")
	if err != nil || msg == "" {
		return mcplib.NewToolResultError("message is required"), nil
	}
	out, err := s.deps.Commands.Execute(ctx, msg)
	if err != nil {
		return toolError("command failed", err), nil
	}
	result, err := marshalResult(out)
	if err == nil && !out.Success {
		result.IsError = true
	}
	return result, err
}

// resolve looks up the "task" argument by id or slug. A non-nil result is an
// error to hand back to the caller as is.
func (s *Server) resolve(ctx context.Context, req mcplib.CallToolRequest) (*task.Task, *mcplib.CallToolResult) { //nolint:gocritic // hugeParam: mcp-go request type
	if s.deps.Tasks == nil || s.deps.Commands == nil {
		return nil, mcplib.NewToolResultError("task service not configured")
	}
	ref, err := req.RequireString("task")
	if err != nil || ref == "" {
		return nil, mcplib.NewToolResultError("task is required")
	}
	t, err := s.deps.Commands.Resolve(ctx, ref)
	if err != nil {
		return nil, toolError("failed to find task", err)
	}
	return t, nil
}

// toolError renders err with its wire code so agents can branch on it.
func toolError(msg string, err error) *mcplib.CallToolResult {
	return mcplib.NewToolResultError(fmt.Sprintf("%s [%s]: %v", msg, domain.CodeOf(err), err))
}

func marshalResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func optString(args map[string]any, key string) *string {
	v, ok := args[key].(string)
	if !ok {
		return nil
	}
	return &v
}
