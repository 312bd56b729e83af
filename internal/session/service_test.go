package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devradar/devradar/internal/types"
)

type fakeStore struct {
	bySession map[string][]types.RuntimeEvent
}

func (f *fakeStore) GetEventTimeline(filter types.EventFilter) []types.RuntimeEvent {
	return f.bySession[filter.SessionID]
}
func (f *fakeStore) GetSession(sessionID string) (types.SessionInfo, bool) { return types.SessionInfo{}, false }

type fakeLog struct {
	saved map[string]types.SessionMetrics
}

func newFakeLog() *fakeLog { return &fakeLog{saved: map[string]types.SessionMetrics{}} }

func (f *fakeLog) AddEvent(ctx context.Context, e types.RuntimeEvent, project string) error { return nil }
func (f *fakeLog) SaveSession(ctx context.Context, project string, info types.SessionInfo) error {
	return nil
}
func (f *fakeLog) UpdateSessionDisconnected(ctx context.Context, sessionID string, ts int64) error {
	return nil
}
func (f *fakeLog) SaveSessionMetrics(ctx context.Context, sessionID, project string, m types.SessionMetrics) error {
	f.saved[sessionID] = m
	return nil
}
func (f *fakeLog) GetEvents(ctx context.Context, filter types.LogFilter) ([]types.RuntimeEvent, error) {
	return nil, nil
}
func (f *fakeLog) GetEventCount(ctx context.Context, filter types.LogFilter) (int, error) { return 0, nil }
func (f *fakeLog) GetSessions(ctx context.Context, project string, limit int) ([]types.SessionInfo, error) {
	return nil, nil
}
func (f *fakeLog) GetSessionMetrics(ctx context.Context, sessionID, project string) (*types.SessionMetrics, bool, error) {
	m, ok := f.saved[sessionID]
	if !ok {
		return nil, false, nil
	}
	return &m, true, nil
}
func (f *fakeLog) Close() error { return nil }

func TestManager_ComputeAndSave_Persists(t *testing.T) {
	store := &fakeStore{bySession: map[string][]types.RuntimeEvent{
		"s1": {{EventID: "1", SessionID: "s1", Timestamp: 100, EventType: types.EventConsole,
			Console: &types.ConsoleEvent{Level: types.ConsoleLog, Message: "hi"}}},
	}}
	log := newFakeLog()
	mgr := NewManager(store, log, "proj")

	metrics := mgr.ComputeAndSave(context.Background(), "s1")
	require.Equal(t, 1, metrics.TotalEvents)
	require.Contains(t, log.saved, "s1")
}

func TestManager_Metrics_FallsBackToHistoryWhenRingEmpty(t *testing.T) {
	store := &fakeStore{bySession: map[string][]types.RuntimeEvent{}}
	log := newFakeLog()
	log.saved["s1"] = types.SessionMetrics{SessionID: "s1", TotalEvents: 42}
	mgr := NewManager(store, log, "proj")

	metrics, err := mgr.Metrics(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, 42, metrics.TotalEvents)
}

func TestManager_Metrics_PrefersLiveRingOverHistory(t *testing.T) {
	store := &fakeStore{bySession: map[string][]types.RuntimeEvent{
		"s1": {{EventID: "1", SessionID: "s1", Timestamp: 100, EventType: types.EventConsole,
			Console: &types.ConsoleEvent{Level: types.ConsoleLog, Message: "hi"}}},
	}}
	log := newFakeLog()
	log.saved["s1"] = types.SessionMetrics{SessionID: "s1", TotalEvents: 999}
	mgr := NewManager(store, log, "proj")

	metrics, err := mgr.Metrics(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, 1, metrics.TotalEvents, "live ring data must win over historical snapshot")
}

func TestManager_Compare(t *testing.T) {
	store := &fakeStore{bySession: map[string][]types.RuntimeEvent{
		"a": {{EventID: "1", SessionID: "a", Timestamp: 100, EventType: types.EventNetwork,
			Network: &types.NetworkEvent{URL: "/x", Method: "GET", Status: 200, Duration: 100}}},
		"b": {{EventID: "2", SessionID: "b", Timestamp: 100, EventType: types.EventNetwork,
			Network: &types.NetworkEvent{URL: "/x", Method: "GET", Status: 200, Duration: 200}}},
	}}
	mgr := NewManager(store, nil, "proj")
	comparison, err := mgr.Compare(context.Background(), "a", "b")
	require.NoError(t, err)
	require.Equal(t, "a", comparison.SessionA)
	require.Equal(t, "b", comparison.SessionB)
	require.Len(t, comparison.Deltas, 1)
	require.Equal(t, types.ClassRegression, comparison.Deltas[0].Classification)
}
