// Package broadcast defines the port the task service uses to push change
// notices to live clients.
package broadcast

import "context"

// Broadcaster fans a typed event out to every connected client. It never
// blocks on a slow client and reports no error: delivery is best effort and
// clients recover by refreshing.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
