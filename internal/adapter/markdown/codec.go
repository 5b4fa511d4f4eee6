// Package markdown encodes tasks as markdown files with a YAML frontmatter
// header and decodes them back.
//
// On disk a record looks like:
//
//	---
//	id: "550e8400-e29b-41d4-a716-446655440000"
//	slug: "write-tests"
//	title: "Write tests"
//	status: todo
//	project: "default"
//	created: "2025-01-01T10:00:00.000Z"
//	updated: "2025-01-01T10:00:00.000Z"
//	---
//
//	free-form markdown body
package markdown

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/taskdeck/internal/domain"
	"github.com/Strob0t/taskdeck/internal/domain/task"
)

const fence = "---"

// Encode renders t as a frontmatter document. Header keys are emitted in a
// fixed order with string values double-quoted and the status plain.
func Encode(t *task.Task) ([]byte, error) {
	header := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key, value string, style yaml.Style) {
		header.Content = append(header.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value, Style: style},
		)
	}
	add("id", t.ID, yaml.DoubleQuotedStyle)
	add("slug", t.Slug, yaml.DoubleQuotedStyle)
	add("title", t.Title, yaml.DoubleQuotedStyle)
	add("status", string(t.Status), 0)
	add("project", t.Project, yaml.DoubleQuotedStyle)
	add("created", task.FormatTime(t.Created), yaml.DoubleQuotedStyle)
	add("updated", task.FormatTime(t.Updated), yaml.DoubleQuotedStyle)

	var hdr bytes.Buffer
	enc := yaml.NewEncoder(&hdr)
	enc.SetIndent(2)
	if err := enc.Encode(header); err != nil {
		return nil, fmt.Errorf("markdown: encode header: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("markdown: encode header: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(hdr.Len() + len(t.Content) + 16)
	buf.WriteString(fence + "\n")
	buf.Write(hdr.Bytes())
	buf.WriteString(fence + "\n\n")
	buf.WriteString(t.Content)
	return buf.Bytes(), nil
}

// Decode parses a frontmatter document. source names the file in errors.
//
// Documents without the fence structure fail with INVALID_TASK_FORMAT and
// documents without a valid UUID v4 id with INVALID_TASK_ID. Missing or
// unknown statuses decode as todo, a missing project as "default", and
// missing timestamps fall back to each other and then to now.
func Decode(data []byte, source string) (task.Task, error) {
	const op = "markdown.Decode"

	header, body, ok := split(data)
	if !ok {
		return task.Task{}, domain.NewError(domain.ErrInvalidFormat, domain.CodeInvalidFormat, op,
			"invalid task file format: "+source)
	}

	fields, err := parseHeader(header)
	if err != nil {
		fields = parseLenient(header)
	}

	id := fields["id"]
	if !task.IsValidID(id) {
		return task.Task{}, &domain.Error{
			Kind:    domain.ErrInvalidFormat,
			Code:    domain.CodeInvalidTaskID,
			Op:      op,
			Message: "invalid UUID in task file: " + source,
			Err:     domain.ErrInvalidIdentifier,
		}
	}

	t := task.Task{
		ID:      strings.ToLower(id),
		Slug:    fields["slug"],
		Title:   fields["title"],
		Status:  task.Status(fields["status"]),
		Project: fields["project"],
		Content: strings.TrimSpace(body),
	}
	if !t.Status.Valid() {
		t.Status = task.StatusTodo
	}
	if t.Project == "" {
		t.Project = task.DefaultProject
	}
	t.Created, t.Updated = timestamps(fields["created"], fields["updated"])
	return t, nil
}

// split separates header and body. The header runs from the opening fence to
// the first line consisting of the closing fence.
func split(data []byte) (header, body string, ok bool) {
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasPrefix(s, fence+"\n") {
		return "", "", false
	}
	rest := s[len(fence)+1:]
	idx := strings.Index(rest, "\n"+fence+"\n")
	if idx < 0 {
		if strings.HasSuffix(rest, "\n"+fence) {
			return rest[:len(rest)-len(fence)-1], "", true
		}
		return "", "", false
	}
	return rest[:idx], rest[idx+len(fence)+2:], true
}

// parseHeader reads scalar values from a well-formed YAML mapping.
func parseHeader(header string) (map[string]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(header), &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return map[string]string{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("frontmatter is not a mapping")
	}
	out := make(map[string]string, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if v.Kind == yaml.ScalarNode {
			out[k.Value] = v.Value
		}
	}
	return out, nil
}

// parseLenient handles hand-edited headers that are not valid YAML, such as a
// title containing unescaped quotes. Each "key: value" line is taken
// literally with one pair of surrounding quotes removed.
func parseLenient(header string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(header, "\n") {
		i := strings.IndexByte(line, ':')
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		val := strings.TrimSpace(line[i+1:])
		if len(val) >= 2 {
			if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
				val = val[1 : len(val)-1]
			}
		}
		out[key] = val
	}
	return out
}

func timestamps(createdRaw, updatedRaw string) (created, updated time.Time) {
	created, cErr := task.ParseTime(createdRaw)
	updated, uErr := task.ParseTime(updatedRaw)
	switch {
	case cErr != nil && uErr != nil:
		now := task.Now()
		return now, now
	case cErr != nil:
		return updated, updated
	case uErr != nil || updated.Before(created):
		return created, created
	}
	return created, updated
}
