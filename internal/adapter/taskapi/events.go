package taskapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/coder/websocket"

	"github.com/Strob0t/taskdeck/internal/adapter/ws"
	"github.com/Strob0t/taskdeck/internal/domain/event"
)

// maxEventBytes bounds a single change-feed frame. Events can embed a full
// record, so this sits above the server's record cap.
const maxEventBytes = 12 << 20

// Events connects to the change feed and calls fn for every task event until
// ctx is done or the connection drops. A cancelled ctx returns nil.
func (c *Client) Events(ctx context.Context, fn func(event.TaskEvent)) error {
	conn, _, err := websocket.Dial(ctx, c.baseURL+"/ws", nil)
	if err != nil {
		return fmt.Errorf("dial change feed: %w", err)
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(maxEventBytes)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read change feed: %w", err)
		}

		var msg ws.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("discarding malformed change feed frame", "error", err)
			continue
		}
		var ev event.TaskEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			slog.Warn("discarding undecodable task event", "type", msg.Type, "error", err)
			continue
		}
		if ev.Type == "" {
			ev.Type = event.Type(msg.Type)
		}
		fn(ev)
	}
}
