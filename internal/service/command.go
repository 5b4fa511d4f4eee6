package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	cfotel "github.com/Strob0t/taskdeck/internal/adapter/otel"
	"github.com/Strob0t/taskdeck/internal/domain"
	"github.com/Strob0t/taskdeck/internal/domain/task"
	"github.com/Strob0t/taskdeck/internal/port/messagequeue"
)

// CommandHelp lists the phrases CommandService understands.
const CommandHelp = `Available commands:
- create task: "<title>" [in project <project>]
- list tasks [in project <project>] [with status <todo|in-progress|done>]
- show task <id|slug>
- update task <id|slug> status to <todo|in-progress|done>
- update task <id|slug> title to "<new title>"
- delete task <id|slug>`

// CommandResult is the outcome of one natural-language command.
type CommandResult struct {
	Success bool        `json:"success"`
	Action  string      `json:"action"`
	Message string      `json:"message"`
	Task    *task.Task  `json:"task,omitempty"`
	Tasks   []task.Task `json:"tasks,omitempty"`
	Count   int         `json:"count,omitempty"`
	Help    string      `json:"help,omitempty"`
}

var (
	reCreateQuoted = regexp.MustCompile(`(?i)^\s*create task[:\s]+(?:"([^"]+)"|'([^']+)')(?:\s+in\s+project\s+(\S+))?\s*$`)
	reCreate       = regexp.MustCompile(`(?i)^\s*create task[:\s]+(.+?)(?:\s+in\s+project\s+(\S+))?\s*$`)
	reList         = regexp.MustCompile(`(?i)^\s*list tasks(?:\s+in\s+project\s+(\S+))?(?:\s+with\s+status\s+(todo|in-progress|done))?\s*$`)
	reShow         = regexp.MustCompile(`(?i)^\s*(?:show|get) task\s+(\S+)\s*$`)
	reSetStatus    = regexp.MustCompile(`(?i)^\s*update task\s+(\S+)\s+status\s+to\s+(todo|in-progress|done)\s*$`)
	reSetTitle     = regexp.MustCompile(`(?i)^\s*update task\s+(\S+)\s+title\s+to\s+["']([^"']+)["']\s*$`)
	reDelete       = regexp.MustCompile(`(?i)^\s*delete task\s+(\S+)\s*$`)
)

// CommandService maps short natural-language commands onto TaskService calls.
type CommandService struct {
	tasks *TaskService
	queue messagequeue.Queue
}

// NewCommandService creates a CommandService. queue is only needed for StartSubscriber.
func NewCommandService(tasks *TaskService, queue messagequeue.Queue) *CommandService {
	return &CommandService{tasks: tasks, queue: queue}
}

// Execute parses message and runs the matching operation. Unrecognised input
// yields an unsuccessful result carrying the help text, not an error.
func (s *CommandService) Execute(ctx context.Context, message string) (*CommandResult, error) {
	verb := strings.ToLower(firstWord(message))
	ctx, span := cfotel.StartCommandSpan(ctx, verb)
	res, err := s.execute(ctx, message)
	cfotel.EndSpan(span, err)
	return res, err
}

func (s *CommandService) execute(ctx context.Context, message string) (*CommandResult, error) {
	if m := reCreateQuoted.FindStringSubmatch(message); m != nil {
		return s.create(ctx, m[1]+m[2], m[3])
	}
	if m := reCreate.FindStringSubmatch(message); m != nil {
		return s.create(ctx, m[1], m[2])
	}
	if m := reList.FindStringSubmatch(message); m != nil {
		return s.list(ctx, m[1], m[2])
	}
	if m := reShow.FindStringSubmatch(message); m != nil {
		t, err := s.Resolve(ctx, m[1])
		if err != nil {
			return nil, err
		}
		return &CommandResult{Success: true, Action: "show", Message: t.Title, Task: t}, nil
	}
	if m := reSetStatus.FindStringSubmatch(message); m != nil {
		st := task.Status(strings.ToLower(m[2]))
		return s.update(ctx, m[1], task.UpdateRequest{Status: &st})
	}
	if m := reSetTitle.FindStringSubmatch(message); m != nil {
		title := strings.TrimSpace(m[2])
		return s.update(ctx, m[1], task.UpdateRequest{Title: &title})
	}
	if m := reDelete.FindStringSubmatch(message); m != nil {
		return s.delete(ctx, m[1])
	}

	return &CommandResult{
		Success: false,
		Action:  "help",
		Message: "Unknown command",
		Help:    CommandHelp,
	}, nil
}

func (s *CommandService) create(ctx context.Context, title, project string) (*CommandResult, error) {
	req := task.CreateRequest{Title: strings.TrimSpace(title)}
	if project != "" {
		req.Project = &project
	}
	t, err := s.tasks.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	return &CommandResult{
		Success: true,
		Action:  "create",
		Message: fmt.Sprintf("Created task %q (%s)", t.Title, t.ID),
		Task:    t,
	}, nil
}

func (s *CommandService) list(ctx context.Context, project, status string) (*CommandResult, error) {
	q := task.ListQuery{Project: project, Status: task.Status(strings.ToLower(status))}
	tasks, err := s.tasks.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	return &CommandResult{
		Success: true,
		Action:  "list",
		Message: fmt.Sprintf("%d task(s)", len(tasks)),
		Tasks:   tasks,
		Count:   len(tasks),
	}, nil
}

func (s *CommandService) update(ctx context.Context, ref string, req task.UpdateRequest) (*CommandResult, error) {
	cur, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	t, err := s.tasks.Update(ctx, cur.ID, req)
	if err != nil {
		return nil, err
	}
	return &CommandResult{
		Success: true,
		Action:  "update",
		Message: fmt.Sprintf("Updated task %q", t.Title),
		Task:    t,
	}, nil
}

func (s *CommandService) delete(ctx context.Context, ref string) (*CommandResult, error) {
	cur, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.Delete(ctx, cur.ID); err != nil {
		return nil, err
	}
	return &CommandResult{
		Success: true,
		Action:  "delete",
		Message: fmt.Sprintf("Deleted task %q", cur.Title),
		Task:    cur,
	}, nil
}

// Resolve finds a task by UUID or, failing that, by slug. When several tasks
// share a slug the most recently updated one wins.
func (s *CommandService) Resolve(ctx context.Context, ref string) (*task.Task, error) {
	if id := strings.ToLower(ref); task.IsValidID(id) {
		return s.tasks.Get(ctx, id)
	}

	all, err := s.tasks.Find(ctx, task.ListQuery{})
	if err != nil {
		return nil, err
	}
	slug := strings.ToLower(ref)
	for i := range all {
		if all[i].Slug == slug {
			return &all[i], nil
		}
	}
	return nil, domain.NewError(domain.ErrNotFound, domain.CodeNotFound, "service.Resolve", "task not found: "+ref)
}

// StartSubscriber executes commands arriving on tasks.commands and replies on
// tasks.commands.result. The returned function stops the subscription.
func (s *CommandService) StartSubscriber(ctx context.Context) (func(), error) {
	return s.queue.Subscribe(ctx, messagequeue.SubjectCommand, s.HandleMessage)
}

// HandleMessage is the queue handler for one command. Failures go into the
// reply and are never returned: a redelivered create would run twice.
func (s *CommandService) HandleMessage(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.CommandPayload
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Warn("discarding malformed command", "error", err)
		return nil
	}

	reply := messagequeue.CommandResultPayload{CommandID: p.CommandID}
	res, err := s.Execute(ctx, p.Text)
	switch {
	case err != nil:
		reply.Message = err.Error()
		reply.Code = domain.CodeOf(err)
	case !res.Success:
		reply.Message = res.Message
		reply.Code = domain.CodeCommandNotHandled
	default:
		reply.Success = true
		reply.Message = res.Message
		if res.Task != nil {
			reply.TaskID = res.Task.ID
		}
	}

	out, err := json.Marshal(reply)
	if err != nil {
		slog.Error("marshal command result", "command_id", p.CommandID, "error", err)
		return nil
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectCommandResult, out); err != nil {
		slog.Error("publish command result", "command_id", p.CommandID, "error", err)
	}
	return nil
}

func firstWord(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}
