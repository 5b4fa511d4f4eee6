package mcp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Strob0t/taskdeck/internal/adapter/filestore"
	tdmcp "github.com/Strob0t/taskdeck/internal/adapter/mcp"
	"github.com/Strob0t/taskdeck/internal/domain/task"
	"github.com/Strob0t/taskdeck/internal/sandbox"
	"github.com/Strob0t/taskdeck/internal/service"
)

func newTestServer(t *testing.T, apiKey string) (*tdmcp.Server, *service.TaskService) {
	t.Helper()
	sb, err := sandbox.New(t.TempDir())
	if err != nil {
		t.Fatalf("sandbox: %v", err)
	}
	tasks := service.NewTaskService(filestore.New(sb), nil, nil, nil)
	cmds := service.NewCommandService(tasks, nil)
	s := tdmcp.NewServer(tdmcp.ServerConfig{
		Name:    "taskdeck-test",
		Version: "0.1.0",
		Path:    "/mcp",
		APIKey:  apiKey,
	}, tdmcp.ServerDeps{Tasks: tasks, Commands: cmds})
	return s, tasks
}

func callTool(t *testing.T, s *tdmcp.Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	tool, ok := s.MCPServer().ListTools()[name]
	if !ok {
		t.Fatalf("tool %q not registered", name)
	}
	res, err := tool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("%s returned error: %v", name, err)
	}
	return res
}

func textOf(t *testing.T, res *mcplib.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty content")
	}
	tc, ok := res.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestRegisteredTools(t *testing.T) {
	s, _ := newTestServer(t, "")
	tools := s.MCPServer().ListTools()
	for _, name := range []string{"list_tasks", "get_task", "create_task", "update_task", "delete_task", "run_task_command"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing tool %q", name)
		}
	}
	if len(tools) != 6 {
		t.Errorf("got %d tools, want 6", len(tools))
	}
}

func TestCreateGetUpdateDelete(t *testing.T) {
	s, _ := newTestServer(t, "")

	res := callTool(t, s, "create_task", map[string]any{"title": "Write docs", "project": "web"})
	if res.IsError {
		t.Fatalf("create: %s", textOf(t, res))
	}
	var created task.Task
	if err := json.Unmarshal([]byte(textOf(t, res)), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Slug != "write-docs" || created.Project != "web" || created.Status != task.StatusTodo {
		t.Fatalf("unexpected task: %+v", created)
	}

	// lookup by slug
	res = callTool(t, s, "get_task", map[string]any{"task": "write-docs"})
	if res.IsError || !strings.Contains(textOf(t, res), created.ID) {
		t.Fatalf("get by slug: %s", textOf(t, res))
	}

	res = callTool(t, s, "update_task", map[string]any{"task": created.ID, "status": "done"})
	if res.IsError {
		t.Fatalf("update: %s", textOf(t, res))
	}
	var updated task.Task
	if err := json.Unmarshal([]byte(textOf(t, res)), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Status != task.StatusDone || updated.Title != "Write docs" {
		t.Errorf("unexpected update: %+v", updated)
	}

	res = callTool(t, s, "delete_task", map[string]any{"task": created.ID})
	if res.IsError {
		t.Fatalf("delete: %s", textOf(t, res))
	}

	res = callTool(t, s, "get_task", map[string]any{"task": created.ID})
	if !res.IsError {
		t.Fatal("expected error after delete")
	}
	if !strings.Contains(textOf(t, res), "TASK_NOT_FOUND") {
		t.Errorf("error should carry code: %s", textOf(t, res))
	}
}

func TestToolValidationErrors(t *testing.T) {
	s, _ := newTestServer(t, "")

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"missing title", "create_task", map[string]any{}, "title is required"},
		{"bad status", "create_task", map[string]any{"title": "x", "status": "blocked"}, "VALIDATION_ERROR"},
		{"missing ref", "get_task", map[string]any{}, "task is required"},
		{"empty update", "update_task", map[string]any{"task": "nope"}, "TASK_NOT_FOUND"},
		{"missing message", "run_task_command", map[string]any{}, "message is required"},
		{"bad list status", "list_tasks", map[string]any{"status": "blocked"}, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, s, tt.tool, tt.args)
			if !res.IsError {
				t.Fatalf("expected error result, got %s", textOf(t, res))
			}
			if got := textOf(t, res); !strings.Contains(got, tt.want) {
				t.Errorf("error %q does not contain %q", got, tt.want)
			}
		})
	}
}

func TestListTasksFilters(t *testing.T) {
	s, tasks := newTestServer(t, "")
	ctx := context.Background()
	for _, title := range []string{"a", "b", "c"} {
		if _, err := tasks.Create(ctx, task.CreateRequest{Title: title}); err != nil {
			t.Fatal(err)
		}
	}
	done := task.StatusDone
	if _, err := tasks.Create(ctx, task.CreateRequest{Title: "d", Status: &done}); err != nil {
		t.Fatal(err)
	}

	res := callTool(t, s, "list_tasks", map[string]any{"status": "todo", "limit": float64(2)})
	if res.IsError {
		t.Fatalf("list: %s", textOf(t, res))
	}
	var out task.ListResult
	if err := json.Unmarshal([]byte(textOf(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Tasks) != 2 || out.Pagination.Total != 3 || !out.Pagination.HasNextPage {
		t.Errorf("unexpected page: %+v", out.Pagination)
	}
}

func TestRunTaskCommand(t *testing.T) {
	s, _ := newTestServer(t, "")

	res := callTool(t, s, "run_task_command", map[string]any{"message": `create task: "Ship it"`})
	if res.IsError || !strings.Contains(textOf(t, res), "Ship it") {
		t.Fatalf("create command: %s", textOf(t, res))
	}

	res = callTool(t, s, "run_task_command", map[string]any{"message": "dance"})
	if !res.IsError {
		t.Error("unknown command should be an error result")
	}
	if !strings.Contains(textOf(t, res), "Available commands") {
		t.Errorf("expected help text, got %s", textOf(t, res))
	}
}

func TestNilDeps(t *testing.T) {
	s := tdmcp.NewServer(tdmcp.ServerConfig{Name: "t", Version: "0"}, tdmcp.ServerDeps{})
	res := callTool(t, s, "list_tasks", nil)
	if !res.IsError {
		t.Error("expected error without task service")
	}
}

func TestTasksResource(t *testing.T) {
	s, tasks := newTestServer(t, "")
	if _, err := tasks.Create(context.Background(), task.CreateRequest{Title: "Resource probe"}); err != nil {
		t.Fatal(err)
	}

	msg := `{"jsonrpc":"2.0","id":1,"method":"resources/read","params":{"uri":"taskdeck://tasks"}}`
	out := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(msg))
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Resource probe") {
		t.Errorf("resource does not list the task: %s", data)
	}
}

func TestHandlerAuth(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"t","version":"1"}}}`

	tests := []struct {
		name string
		auth string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusForbidden},
		{"bearer", "Bearer secret", http.StatusOK},
		{"lowercase scheme", "bearer secret", http.StatusOK},
		{"bare key", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.want == http.StatusUnauthorized && resp.Header.Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate challenge")
			}
		})
	}
}
