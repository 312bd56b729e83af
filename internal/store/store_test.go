package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devradar/devradar/internal/types"
)

type fakeLog struct {
	events          []types.RuntimeEvent
	failAt          int // fail on the N-th AddEvent call (0 = never)
	calls           int
	savedSessions   []types.SessionInfo
	disconnectedIDs []string
	failSaveSession bool
	failDisconnect  bool
}

func (f *fakeLog) AddEvent(ctx context.Context, e types.RuntimeEvent, project string) error {
	f.calls++
	if f.failAt != 0 && f.calls == f.failAt {
		return errors.New("disk full")
	}
	f.events = append(f.events, e)
	return nil
}
func (f *fakeLog) SaveSession(ctx context.Context, project string, info types.SessionInfo) error {
	if f.failSaveSession {
		return errors.New("disk full")
	}
	f.savedSessions = append(f.savedSessions, info)
	return nil
}
func (f *fakeLog) UpdateSessionDisconnected(ctx context.Context, sessionID string, ts int64) error {
	if f.failDisconnect {
		return errors.New("disk full")
	}
	f.disconnectedIDs = append(f.disconnectedIDs, sessionID)
	return nil
}
func (f *fakeLog) SaveSessionMetrics(ctx context.Context, sessionID, project string, m types.SessionMetrics) error {
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
	return nil, false, nil
}
func (f *fakeLog) Close() error { return nil }

func consoleEvent(id, sessionID string, ts int64, level types.ConsoleLevel, msg string) types.RuntimeEvent {
	return types.RuntimeEvent{
		EventID: id, SessionID: sessionID, Timestamp: ts, EventType: types.EventConsole,
		Console: &types.ConsoleEvent{Level: level, Message: msg},
	}
}

func TestStore_AddEvent_DualWritesAndFansOut(t *testing.T) {
	log := &fakeLog{}
	s := New(100, log, "proj", nil)

	var seen []types.RuntimeEvent
	s.OnEvent(EventListenerFunc(func(e types.RuntimeEvent) { seen = append(seen, e) }))

	evt := consoleEvent("e1", "s1", 100, types.ConsoleError, "boom")
	s.AddEvent(context.Background(), evt)

	require.Len(t, log.events, 1)
	require.Len(t, seen, 1)
	require.Equal(t, "e1", seen[0].EventID)
}

func TestStore_AddEvent_ListenerFailureDoesNotBlockOthers(t *testing.T) {
	s := New(10, nil, "proj", nil)

	var secondCalled bool
	s.OnEvent(EventListenerFunc(func(e types.RuntimeEvent) { panic("boom") }))
	s.OnEvent(EventListenerFunc(func(e types.RuntimeEvent) { secondCalled = true }))

	require.NotPanics(t, func() {
		s.AddEvent(context.Background(), consoleEvent("e1", "s1", 100, types.ConsoleLog, "hi"))
	})
	require.True(t, secondCalled)
}

func TestStore_AddEvent_PersistFailureNeverSurfaces(t *testing.T) {
	log := &fakeLog{failAt: 1}
	s := New(10, log, "proj", nil)
	require.NotPanics(t, func() {
		s.AddEvent(context.Background(), consoleEvent("e1", "s1", 100, types.ConsoleLog, "hi"))
	})
}

func TestStore_RegisterSession_PreservesEventCountOnReRegister(t *testing.T) {
	s := New(10, nil, "proj", nil)
	s.RegisterSession(types.SessionInfo{SessionID: "s1", AppName: "demo", EventCount: 5})

	s.AddEvent(context.Background(), consoleEvent("e1", "s1", 100, types.ConsoleLog, "hi"))
	info, ok := s.GetSession("s1")
	require.True(t, ok)
	require.EqualValues(t, 6, info.EventCount)

	s.RegisterSession(types.SessionInfo{SessionID: "s1", AppName: "demo"})
	info, ok = s.GetSession("s1")
	require.True(t, ok)
	require.EqualValues(t, 6, info.EventCount, "re-registering must preserve eventCount")
}

func TestStore_MarkDisconnected(t *testing.T) {
	s := New(10, nil, "proj", nil)
	s.RegisterSession(types.SessionInfo{SessionID: "s1"})
	s.MarkDisconnected("s1")
	info, ok := s.GetSession("s1")
	require.True(t, ok)
	require.False(t, info.IsConnected)
}

func TestStore_RegisterSession_DualWritesToPersistentLog(t *testing.T) {
	log := &fakeLog{}
	s := New(10, log, "proj", nil)
	s.RegisterSession(types.SessionInfo{SessionID: "s1", AppName: "demo"})

	require.Len(t, log.savedSessions, 1)
	require.Equal(t, "s1", log.savedSessions[0].SessionID)
	require.Equal(t, "demo", log.savedSessions[0].AppName)
}

func TestStore_MarkDisconnected_DualWritesToPersistentLog(t *testing.T) {
	log := &fakeLog{}
	s := New(10, log, "proj", nil)
	s.RegisterSession(types.SessionInfo{SessionID: "s1"})
	s.MarkDisconnected("s1")

	require.Equal(t, []string{"s1"}, log.disconnectedIDs)
}

func TestStore_RegisterSessionAndMarkDisconnected_PersistFailureNeverSurfaces(t *testing.T) {
	log := &fakeLog{failSaveSession: true, failDisconnect: true}
	s := New(10, log, "proj", nil)
	require.NotPanics(t, func() {
		s.RegisterSession(types.SessionInfo{SessionID: "s1"})
		s.MarkDisconnected("s1")
	})
	info, ok := s.GetSession("s1")
	require.True(t, ok, "in-memory state still updates even when the dual-write fails")
	require.False(t, info.IsConnected)
}

func TestStore_GetConsoleMessages_FiltersByLevelAndSearch(t *testing.T) {
	s := New(10, nil, "proj", nil)
	s.AddEvent(context.Background(), consoleEvent("e1", "s1", 100, types.ConsoleLog, "hello world"))
	s.AddEvent(context.Background(), consoleEvent("e2", "s1", 200, types.ConsoleError, "boom failure"))
	s.AddEvent(context.Background(), consoleEvent("e3", "s1", 300, types.ConsoleError, "another boom"))

	errs := s.GetConsoleMessages(types.EventFilter{Level: "error"})
	require.Len(t, errs, 2)
	require.Equal(t, "another boom", errs[0].Message, "newest-first")

	matches := s.GetConsoleMessages(types.EventFilter{Search: "HELLO"})
	require.Len(t, matches, 1)
}

func TestStore_GetNetworkRequests_FiltersByStatusMethodAndDuration(t *testing.T) {
	s := New(10, nil, "proj", nil)
	s.AddEvent(context.Background(), types.RuntimeEvent{
		EventID: "n1", SessionID: "s1", Timestamp: 100, EventType: types.EventNetwork,
		Network: &types.NetworkEvent{URL: "https://api.example.com/users/1", Method: "GET", Status: 200, Duration: 50},
	})
	s.AddEvent(context.Background(), types.RuntimeEvent{
		EventID: "n2", SessionID: "s1", Timestamp: 200, EventType: types.EventNetwork,
		Network: &types.NetworkEvent{URL: "https://api.example.com/orders", Method: "POST", Status: 500, Duration: 4000},
	})

	failed := s.GetNetworkRequests(types.EventFilter{Status: 500})
	require.Len(t, failed, 1)
	require.Equal(t, "POST", failed[0].Method)

	slow := s.GetNetworkRequests(types.EventFilter{MinDurationMs: 1000})
	require.Len(t, slow, 1)
	require.Equal(t, "POST", slow[0].Method)

	getOnly := s.GetNetworkRequests(types.EventFilter{Method: "get"})
	require.Len(t, getOnly, 1)
}

func TestStore_GetEventTimeline_OldestFirstAndKnownVariantsOnly(t *testing.T) {
	s := New(10, nil, "proj", nil)
	s.AddEvent(context.Background(), consoleEvent("e1", "s1", 100, types.ConsoleLog, "a"))
	s.AddEvent(context.Background(), types.RuntimeEvent{
		EventID: "e2", SessionID: "s1", Timestamp: 200, EventType: "dom_snapshot",
		Opaque: &types.OpaquePayload{Url: "https://x"},
	})
	s.AddEvent(context.Background(), consoleEvent("e3", "s1", 300, types.ConsoleLog, "b"))

	timeline := s.GetEventTimeline(types.EventFilter{})
	require.Len(t, timeline, 2)
	require.Equal(t, "e1", timeline[0].EventID)
	require.Equal(t, "e3", timeline[1].EventID)

	all := s.GetAllEvents(types.EventFilter{})
	require.Len(t, all, 3)
}

func TestStore_Clear_ReturnsClearedCount(t *testing.T) {
	s := New(10, nil, "proj", nil)
	s.AddEvent(context.Background(), consoleEvent("e1", "s1", 100, types.ConsoleLog, "a"))
	s.RegisterSession(types.SessionInfo{SessionID: "s1"})
	cleared := s.Clear()
	require.Equal(t, 1, cleared)
	require.Equal(t, 0, s.EventCount())
	_, ok := s.GetSession("s1")
	require.False(t, ok)
}

func TestStore_RemoveEventListener(t *testing.T) {
	s := New(10, nil, "proj", nil)
	var count int
	listener := EventListenerFunc(func(e types.RuntimeEvent) { count++ })
	s.OnEvent(listener)
	s.AddEvent(context.Background(), consoleEvent("e1", "s1", 100, types.ConsoleLog, "a"))
	s.RemoveEventListener(listener)
	s.AddEvent(context.Background(), consoleEvent("e2", "s1", 200, types.ConsoleLog, "b"))
	require.Equal(t, 1, count)
}

func TestStore_GetLatestOpaque_ReturnsMostRecent(t *testing.T) {
	s := New(10, nil, "proj", nil)
	s.AddEvent(context.Background(), types.RuntimeEvent{
		EventID: "r1", SessionID: "s1", Timestamp: 100, EventType: "recon_computed_styles",
		Opaque: &types.OpaquePayload{Url: "https://x/1"},
	})
	s.AddEvent(context.Background(), types.RuntimeEvent{
		EventID: "r2", SessionID: "s1", Timestamp: 200, EventType: "recon_computed_styles",
		Opaque: &types.OpaquePayload{Url: "https://x/2"},
	})
	latest, ok := s.GetLatestOpaque("recon_computed_styles", types.EventFilter{})
	require.True(t, ok)
	require.Equal(t, "r2", latest.EventID)

	_, ok = s.GetLatestOpaque("recon_layout_tree", types.EventFilter{})
	require.False(t, ok)
}
