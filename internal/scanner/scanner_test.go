package scanner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devradar/devradar/internal/analysis"
	"github.com/devradar/devradar/internal/types"
)

type fakeScanStore struct {
	mu        sync.Mutex
	sessions  []types.SessionInfo
	events    map[string][]types.RuntimeEvent
	notified  []types.RuntimeEvent
}

func (f *fakeScanStore) GetSessions() []types.SessionInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

func (f *fakeScanStore) GetEventTimeline(filter types.EventFilter) []types.RuntimeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[filter.SessionID]
}

func (f *fakeScanStore) Notify(e types.RuntimeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, e)
}

func (f *fakeScanStore) snapshotNotified() []types.RuntimeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.RuntimeEvent, len(f.notified))
	copy(out, f.notified)
	return out
}

func TestPeriodicScanner_RunsOnScheduleAndNotifiesPerSession(t *testing.T) {
	store := &fakeScanStore{
		sessions: []types.SessionInfo{{SessionID: "s1"}, {SessionID: "s2"}},
		events: map[string][]types.RuntimeEvent{
			"s1": {{EventID: "1", SessionID: "s1", Timestamp: 1, EventType: types.EventNetwork,
				Network: &types.NetworkEvent{URL: "/a", Method: "GET", Status: 500}}},
			"s2": {},
		},
	}
	scanner := New(store, analysis.NewEngine(), "@every 20ms", nil)
	scanner.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(store.snapshotNotified()) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, scanner.Stop(context.Background()))

	notified := store.snapshotNotified()
	require.Equal(t, types.EventScanResult, notified[0].EventType)
	require.NotNil(t, notified[0].Opaque)
}

func TestPeriodicScanner_ScanResultIncludesDetectedIssues(t *testing.T) {
	store := &fakeScanStore{
		sessions: []types.SessionInfo{{SessionID: "s1"}},
		events: map[string][]types.RuntimeEvent{
			"s1": {
				{EventID: "1", SessionID: "s1", Timestamp: 1, EventType: types.EventNetwork,
					Network: &types.NetworkEvent{URL: "/a", Method: "GET", Status: 500}},
			},
		},
	}
	scanner := New(store, analysis.NewEngine(), "@every 20ms", nil)
	scanner.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(store.snapshotNotified()) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, scanner.Stop(context.Background()))

	body := store.snapshotNotified()[0].Opaque.Body
	issues, ok := body["issues"].([]types.DetectedIssue)
	require.True(t, ok)
	require.NotEmpty(t, issues)
}

func TestPeriodicScanner_InvalidSpecFallsBackToDefault(t *testing.T) {
	store := &fakeScanStore{}
	scanner := New(store, analysis.NewEngine(), "not a valid spec", nil)
	require.NotNil(t, scanner)
}
