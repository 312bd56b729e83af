// log.go — Persistent Log contract (§4.3): the per-project append-only
// record the Event Store dual-writes to. Writes are best-effort from the
// Event Store's perspective (§5, §7): a failure here is logged and never
// raised to the caller of EventStore.addEvent.
package persist

import (
	"context"

	"github.com/devradar/devradar/internal/types"
)

// Log is the Persistent Log collaborator contract.
type Log interface {
	AddEvent(ctx context.Context, event types.RuntimeEvent, project string) error
	SaveSession(ctx context.Context, project string, info types.SessionInfo) error
	UpdateSessionDisconnected(ctx context.Context, sessionID string, disconnectedAt int64) error
	SaveSessionMetrics(ctx context.Context, sessionID, project string, metrics types.SessionMetrics) error

	GetEvents(ctx context.Context, filter types.LogFilter) ([]types.RuntimeEvent, error)
	GetEventCount(ctx context.Context, filter types.LogFilter) (int, error)
	GetSessions(ctx context.Context, project string, limit int) ([]types.SessionInfo, error)
	GetSessionMetrics(ctx context.Context, sessionID, project string) (*types.SessionMetrics, bool, error)

	Close() error
}
