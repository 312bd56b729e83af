// store.go — Event Store: Ring<RuntimeEvent> + sessions map + optional
// Persistent Log handle + listener fan-out. Mutex-guarded in-memory
// session/connection tracking, one parent mutex across hot-path writes,
// replacing capture-extension state with RuntimeEvent ingestion.
package store

import (
	"context"
	"strings"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/devradar/devradar/internal/buffers"
	"github.com/devradar/devradar/internal/metrics"
	"github.com/devradar/devradar/internal/persist"
	"github.com/devradar/devradar/internal/types"
)

// Store is the Event Store: an in-memory ring of events, a session index,
// and best-effort dual-write to a Persistent Log. All exported operations
// are linearized with respect to addEvent via mu; query results are
// snapshots the caller may hold onto without the store lock.
type Store struct {
	mu sync.Mutex

	ring     *buffers.RingBuffer[types.RuntimeEvent]
	sessions map[string]*types.SessionInfo
	log      persist.Log // nil when persistence is disabled
	project  string

	listeners []EventListener

	logger *zap.Logger
}

// New constructs a Store with the given ring capacity. log may be nil to
// disable the Persistent Log dual-write entirely.
func New(capacity int, log persist.Log, project string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		ring:     buffers.NewRingBuffer[types.RuntimeEvent](capacity),
		sessions: make(map[string]*types.SessionInfo),
		log:      log,
		project:  project,
		logger:   logger,
	}
}

// AddEvent pushes e onto the ring, updates session bookkeeping, dual-writes
// to the Persistent Log (best-effort), and fans out to every listener in
// registration order. A listener failure is recovered and logged; it never
// prevents the remaining listeners from running and is never surfaced here.
func (s *Store) AddEvent(ctx context.Context, e types.RuntimeEvent) {
	s.mu.Lock()
	s.ring.Push(e)

	if e.EventType == types.EventSession && e.Session != nil {
		existing, ok := s.sessions[e.SessionID]
		info := &types.SessionInfo{
			SessionID:   e.SessionID,
			AppName:     e.Session.AppName,
			ConnectedAt: e.Session.ConnectedAt,
			SDKVersion:  e.Session.SDKVersion,
			BuildMeta:   e.Session.BuildMeta,
			IsConnected: true,
		}
		if ok {
			info.EventCount = existing.EventCount
		}
		s.sessions[e.SessionID] = info
	} else if info, ok := s.sessions[e.SessionID]; ok {
		info.EventCount++
	}

	listeners := make([]EventListener, len(s.listeners))
	copy(listeners, s.listeners)
	occupancy := s.ring.Count()
	s.mu.Unlock()

	metrics.EventsIngestedTotal.WithLabelValues(string(e.EventType)).Inc()
	metrics.RingBufferOccupancy.Set(float64(occupancy))

	s.dualWrite(ctx, e)
	s.notifyListeners(e, listeners)
}

// Notify fans e out to every registered listener without touching the ring
// or the Persistent Log. Used for synthetic, in-process-only notifications
// (e.g. the Periodic Scanner's scan_result) that must never be replayed from
// history or written to the wire protocol.
func (s *Store) Notify(e types.RuntimeEvent) {
	s.mu.Lock()
	listeners := make([]EventListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()
	s.notifyListeners(e, listeners)
}

func (s *Store) dualWrite(ctx context.Context, e types.RuntimeEvent) {
	if s.log == nil {
		return
	}
	if err := s.log.AddEvent(ctx, e, s.project); err != nil {
		metrics.PersistLogWriteFailuresTotal.Inc()
		s.logger.Warn("persistent log dual-write failed",
			zap.String("sessionId", e.SessionID), zap.String("eventType", string(e.EventType)), zap.Error(err))
	}
}

func (s *Store) notifyListeners(e types.RuntimeEvent, listeners []EventListener) {
	for _, l := range listeners {
		s.invokeListener(l, e)
	}
}

func (s *Store) invokeListener(l EventListener, e types.RuntimeEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("event listener panicked", zap.Any("recover", r))
		}
	}()
	l.OnEvent(e)
}

// OnEvent registers a listener; it is invoked for every subsequent AddEvent
// in registration order relative to other listeners.
func (s *Store) OnEvent(l EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// RemoveEventListener removes l by identity; no-op if not registered.
func (s *Store) RemoveEventListener(l EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lf, lIsFunc := l.(EventListenerFunc)
	for i, existing := range s.listeners {
		ef, eIsFunc := existing.(EventListenerFunc)
		var same bool
		if lIsFunc || eIsFunc {
			// Func values are not comparable with ==; compare the function
			// values the two adapters hold by address instead.
			same = lIsFunc && eIsFunc &&
				*(*unsafe.Pointer)(unsafe.Pointer(&ef)) == *(*unsafe.Pointer)(unsafe.Pointer(&lf))
		} else {
			same = existing == l
		}
		if same {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// RegisterSession creates or re-registers a session, preserving eventCount
// when the session already existed (handshake re-send, Transport §4.4), and
// dual-writes the session record to the Persistent Log (best-effort, same
// as AddEvent's dual-write: a failure here is logged and never raised to
// the handshake path).
func (s *Store) RegisterSession(info types.SessionInfo) {
	s.mu.Lock()
	if existing, ok := s.sessions[info.SessionID]; ok {
		info.EventCount = existing.EventCount
	}
	info.IsConnected = true
	s.sessions[info.SessionID] = &info
	s.mu.Unlock()

	if s.log == nil {
		return
	}
	if err := s.log.SaveSession(context.Background(), s.project, info); err != nil {
		metrics.PersistLogWriteFailuresTotal.Inc()
		s.logger.Warn("persistent log session save failed",
			zap.String("sessionId", info.SessionID), zap.Error(err))
	}
}

// MarkDisconnected sets isConnected=false for sessionID, if known, and
// dual-writes disconnectedAt to the Persistent Log (best-effort).
func (s *Store) MarkDisconnected(sessionID string) {
	s.mu.Lock()
	if info, ok := s.sessions[sessionID]; ok {
		info.IsConnected = false
	}
	s.mu.Unlock()

	if s.log == nil {
		return
	}
	disconnectedAt := time.Now().UnixMilli()
	if err := s.log.UpdateSessionDisconnected(context.Background(), sessionID, disconnectedAt); err != nil {
		metrics.PersistLogWriteFailuresTotal.Inc()
		s.logger.Warn("persistent log session disconnect failed",
			zap.String("sessionId", sessionID), zap.Error(err))
	}
}

// GetSession returns a copy of the session record, if known.
func (s *Store) GetSession(sessionID string) (types.SessionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.sessions[sessionID]
	if !ok {
		return types.SessionInfo{}, false
	}
	return *info, true
}

// GetSessions returns a snapshot of every known session.
func (s *Store) GetSessions() []types.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.SessionInfo, 0, len(s.sessions))
	for _, info := range s.sessions {
		out = append(out, *info)
	}
	return out
}

// Clear empties the ring and the session index, returning the number of
// events cleared.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := s.ring.Clear()
	s.sessions = make(map[string]*types.SessionInfo)
	return cleared
}

// EventCount returns the ring's current occupancy.
func (s *Store) EventCount() int {
	return s.ring.Count()
}

// --- Typed filtered queries (§4.2) ---

func sinceCutoff(filter types.EventFilter, now int64) int64 {
	if filter.SinceSeconds <= 0 {
		return 0
	}
	return now - int64(filter.SinceSeconds*1000)
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func matchHeader(e types.RuntimeEvent, filter types.EventFilter, now int64) bool {
	if cutoff := sinceCutoff(filter, now); cutoff > 0 && e.Timestamp < cutoff {
		return false
	}
	if filter.SessionID != "" && e.SessionID != filter.SessionID {
		return false
	}
	return true
}

// GetNetworkRequests returns network events matching filter, newest-first.
func (s *Store) GetNetworkRequests(filter types.EventFilter) []types.NetworkEvent {
	now := time.Now().UnixMilli()
	raw := s.ring.Query(func(e types.RuntimeEvent) bool {
		if e.EventType != types.EventNetwork || e.Network == nil {
			return false
		}
		if !matchHeader(e, filter, now) {
			return false
		}
		n := e.Network
		if !containsFold(n.URL, filter.URLPattern) {
			return false
		}
		if filter.Status != 0 && n.Status != filter.Status {
			return false
		}
		if filter.Method != "" && !strings.EqualFold(n.Method, filter.Method) {
			return false
		}
		if filter.MinDurationMs > 0 && n.Duration < filter.MinDurationMs {
			return false
		}
		return true
	})
	out := make([]types.NetworkEvent, len(raw))
	for i, e := range raw {
		out[i] = *e.Network
	}
	return applyLimit(out, filter.Limit)
}

// GetConsoleMessages returns console events matching filter, newest-first.
func (s *Store) GetConsoleMessages(filter types.EventFilter) []types.ConsoleEvent {
	now := time.Now().UnixMilli()
	raw := s.ring.Query(func(e types.RuntimeEvent) bool {
		if e.EventType != types.EventConsole || e.Console == nil {
			return false
		}
		if !matchHeader(e, filter, now) {
			return false
		}
		c := e.Console
		if filter.Level != "" && string(c.Level) != filter.Level {
			return false
		}
		if !containsFold(c.Message, filter.Search) {
			return false
		}
		return true
	})
	out := make([]types.ConsoleEvent, len(raw))
	for i, e := range raw {
		out[i] = *e.Console
	}
	return applyLimit(out, filter.Limit)
}

// GetStateEvents returns state events matching filter, newest-first.
func (s *Store) GetStateEvents(filter types.EventFilter) []types.StateEvent {
	now := time.Now().UnixMilli()
	raw := s.ring.Query(func(e types.RuntimeEvent) bool {
		if e.EventType != types.EventState || e.State == nil {
			return false
		}
		if !matchHeader(e, filter, now) {
			return false
		}
		if filter.StoreID != "" && e.State.StoreID != filter.StoreID {
			return false
		}
		return true
	})
	out := make([]types.StateEvent, len(raw))
	for i, e := range raw {
		out[i] = *e.State
	}
	return applyLimit(out, filter.Limit)
}

// GetRenderEvents returns render events matching filter, newest-first.
func (s *Store) GetRenderEvents(filter types.EventFilter) []types.RenderEvent {
	now := time.Now().UnixMilli()
	raw := s.ring.Query(func(e types.RuntimeEvent) bool {
		if e.EventType != types.EventRender || e.Render == nil {
			return false
		}
		if !matchHeader(e, filter, now) {
			return false
		}
		if filter.ComponentName == "" {
			return true
		}
		for _, p := range e.Render.Profiles {
			if containsFold(p.ComponentName, filter.ComponentName) {
				return true
			}
		}
		return false
	})
	out := make([]types.RenderEvent, len(raw))
	for i, e := range raw {
		out[i] = *e.Render
	}
	return applyLimit(out, filter.Limit)
}

// GetPerformanceMetrics returns performance events matching filter, newest-first.
func (s *Store) GetPerformanceMetrics(filter types.EventFilter) []types.PerformanceEvent {
	now := time.Now().UnixMilli()
	raw := s.ring.Query(func(e types.RuntimeEvent) bool {
		if e.EventType != types.EventPerformance || e.Performance == nil {
			return false
		}
		if !matchHeader(e, filter, now) {
			return false
		}
		if filter.MetricName != "" && e.Performance.MetricName != filter.MetricName {
			return false
		}
		return true
	})
	out := make([]types.PerformanceEvent, len(raw))
	for i, e := range raw {
		out[i] = *e.Performance
	}
	return applyLimit(out, filter.Limit)
}

// GetDatabaseEvents returns database events matching filter, newest-first.
func (s *Store) GetDatabaseEvents(filter types.EventFilter) []types.DatabaseEvent {
	now := time.Now().UnixMilli()
	raw := s.ring.Query(func(e types.RuntimeEvent) bool {
		if e.EventType != types.EventDatabase || e.Database == nil {
			return false
		}
		if !matchHeader(e, filter, now) {
			return false
		}
		d := e.Database
		if filter.Table != "" {
			found := false
			for _, t := range d.TablesAccessed {
				if containsFold(t, filter.Table) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		if filter.Operation != "" && string(d.Operation) != filter.Operation {
			return false
		}
		if filter.Source != "" && string(d.Source) != filter.Source {
			return false
		}
		if filter.MinDurationMs > 0 && d.Duration < filter.MinDurationMs {
			return false
		}
		return true
	})
	out := make([]types.DatabaseEvent, len(raw))
	for i, e := range raw {
		out[i] = *e.Database
	}
	return applyLimit(out, filter.Limit)
}

// GetEventTimeline returns every known-variant event matching filter,
// oldest-first (§4.2: getEventTimeline/getAllEvents are the two exceptions
// to the ring's otherwise newest-first query convention).
func (s *Store) GetEventTimeline(filter types.EventFilter) []types.RuntimeEvent {
	return s.allOldestFirst(filter, true)
}

// GetAllEvents returns every event (including opaque variants) matching
// filter, oldest-first.
func (s *Store) GetAllEvents(filter types.EventFilter) []types.RuntimeEvent {
	return s.allOldestFirst(filter, false)
}

func (s *Store) allOldestFirst(filter types.EventFilter, knownOnly bool) []types.RuntimeEvent {
	now := time.Now().UnixMilli()
	all := s.ring.ToArray()
	out := make([]types.RuntimeEvent, 0, len(all))
	for _, e := range all {
		if knownOnly && !e.EventType.KnownVariant() {
			continue
		}
		if !matchHeader(e, filter, now) {
			continue
		}
		out = append(out, e)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

// GetLatestOpaque returns the most recent event of the given opaque type
// (dom_snapshot, recon_computed_styles, recon_element_snapshot,
// recon_layout_tree — the singleton recon categories §4.2 "recon event
// queries"), or ok=false if none exists.
func (s *Store) GetLatestOpaque(eventType types.EventType, filter types.EventFilter) (types.RuntimeEvent, bool) {
	now := time.Now().UnixMilli()
	matches := s.ring.Query(func(e types.RuntimeEvent) bool {
		if e.EventType != eventType {
			return false
		}
		if !matchHeader(e, filter, now) {
			return false
		}
		if filter.URLPattern != "" && !containsFold(e.Url(), filter.URLPattern) {
			return false
		}
		return true
	})
	if len(matches) == 0 {
		return types.RuntimeEvent{}, false
	}
	return matches[0], true
}

// GetOpaqueEvents returns all matching opaque events newest-first (the
// plural recon categories, e.g. recon_scan history).
func (s *Store) GetOpaqueEvents(eventType types.EventType, filter types.EventFilter) []types.RuntimeEvent {
	now := time.Now().UnixMilli()
	out := s.ring.Query(func(e types.RuntimeEvent) bool {
		if e.EventType != eventType {
			return false
		}
		if !matchHeader(e, filter, now) {
			return false
		}
		if filter.URLPattern != "" && !containsFold(e.Url(), filter.URLPattern) {
			return false
		}
		return true
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func applyLimit[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
