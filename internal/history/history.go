package history

import (
	"context"
	"time"
)

// Event is the audit record of one completed lifecycle operation.
type Event struct {
	Op         string    `json:"op"`          // install, start, stop, restart, reinstall
	OK         bool      `json:"ok"`          // whether the operation succeeded
	Error      string    `json:"error"`       // failure message, empty on success
	Phase      string    `json:"phase"`       // resulting status phase
	StartedAt  time.Time `json:"started_at"`  // operation begin
	FinishedAt time.Time `json:"finished_at"` // operation end
}

// Duration is the wall-clock time the operation took.
func (e Event) Duration() time.Duration { return e.FinishedAt.Sub(e.StartedAt) }

// Sink is a destination for operation audit events. Implementations must
// be safe for concurrent use. Send failures are swallowed by the caller:
// an operation never fails because auditing is down.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
