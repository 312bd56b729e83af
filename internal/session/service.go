// service.go — wires ComputeMetrics/CompareSessions to the Event Store and
// Persistent Log. `compareSessions` needs a session's metrics even after its
// raw events have scrolled out of the ring, so this reads `session_metrics`
// from the Persistent Log whenever the live ring no longer holds them.
package session

import (
	"context"
	"fmt"

	"github.com/devradar/devradar/internal/persist"
	"github.com/devradar/devradar/internal/types"
)

// Store is the subset of the Event Store the Manager depends on.
type Store interface {
	GetEventTimeline(filter types.EventFilter) []types.RuntimeEvent
	GetSession(sessionID string) (types.SessionInfo, bool)
}

// Manager computes and persists per-session metrics, and answers
// cross-session comparisons by falling back to the Persistent Log for
// sessions whose raw events are no longer in the ring.
type Manager struct {
	store   Store
	log     persist.Log // nil disables history fallback and persistence
	project string
}

// NewManager constructs a Manager. log may be nil.
func NewManager(store Store, log persist.Log, project string) *Manager {
	return &Manager{store: store, log: log, project: project}
}

// ComputeAndSave computes sessionID's current metrics from the live ring and
// persists them through the Persistent Log (best-effort: a persist failure
// is swallowed, matching the rest of the core's dual-write contract).
func (m *Manager) ComputeAndSave(ctx context.Context, sessionID string) types.SessionMetrics {
	events := m.store.GetEventTimeline(types.EventFilter{SessionID: sessionID})
	metrics := ComputeMetrics(sessionID, events)
	if m.log != nil {
		_ = m.log.SaveSessionMetrics(ctx, sessionID, m.project, metrics)
	}
	return metrics
}

// Metrics resolves a session's metrics, preferring the live ring and falling
// back to the Persistent Log's saved snapshot when the ring holds nothing
// for that session (it has evicted or the session predates this process).
func (m *Manager) Metrics(ctx context.Context, sessionID string) (types.SessionMetrics, error) {
	events := m.store.GetEventTimeline(types.EventFilter{SessionID: sessionID})
	if len(events) > 0 {
		return ComputeMetrics(sessionID, events), nil
	}
	if m.log == nil {
		return types.SessionMetrics{SessionID: sessionID}, nil
	}
	saved, found, err := m.log.GetSessionMetrics(ctx, sessionID, m.project)
	if err != nil {
		return types.SessionMetrics{}, fmt.Errorf("load historical session metrics: %w", err)
	}
	if !found {
		return types.SessionMetrics{SessionID: sessionID}, nil
	}
	return *saved, nil
}

// Compare resolves both sessions' metrics (live or historical) and returns
// their comparison.
func (m *Manager) Compare(ctx context.Context, sessionA, sessionB string) (types.SessionComparison, error) {
	a, err := m.Metrics(ctx, sessionA)
	if err != nil {
		return types.SessionComparison{}, fmt.Errorf("session %s: %w", sessionA, err)
	}
	b, err := m.Metrics(ctx, sessionB)
	if err != nil {
		return types.SessionComparison{}, fmt.Errorf("session %s: %w", sessionB, err)
	}
	return CompareSessions(sessionA, sessionB, a, b), nil
}
