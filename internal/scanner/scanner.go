// scanner.go — Periodic Scanner, grounded on r3e-network-service_layer's
// robfig/cron usage: a cadence-driven rescan that keeps background issue
// detection and the API catalog's refinement cache warm between tool calls,
// instead of computing everything purely on demand.
package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/devradar/devradar/internal/analysis"
	"github.com/devradar/devradar/internal/types"
)

// DefaultSpec runs the scan every 30 seconds.
const DefaultSpec = "@every 30s"

// Store is the subset of the Event Store the scanner reads from and
// publishes synthetic notifications through.
type Store interface {
	GetSessions() []types.SessionInfo
	GetEventTimeline(filter types.EventFilter) []types.RuntimeEvent
	Notify(e types.RuntimeEvent)
}

// ScanResult is the payload of a synthetic scan_result notification.
type ScanResult struct {
	SessionID  string                `json:"sessionId"`
	Issues     []types.DetectedIssue `json:"issues"`
	EndpointCount int                `json:"endpointCount"`
	ScannedAt  int64                 `json:"scannedAt"`
}

// PeriodicScanner runs a cron job that rescans the ring timeline of every
// session the store reports (connected or not) for issues and primes the API Discovery Engine's
// refinement cache. Results are pushed through the Event Store's listener
// fan-out only (in-process) — they are never written to the wire protocol
// or the Persistent Log, and this release has no subscriber.
type PeriodicScanner struct {
	store  Store
	engine *analysis.Engine
	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex
	running sync.WaitGroup
}

// New constructs a scanner with the given cron spec (DefaultSpec if empty).
func New(store Store, engine *analysis.Engine, spec string, logger *zap.Logger) *PeriodicScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if spec == "" {
		spec = DefaultSpec
	}
	s := &PeriodicScanner{
		store:  store,
		engine: engine,
		cron:   cron.New(),
		logger: logger,
	}
	_, err := s.cron.AddFunc(spec, s.runOnce)
	if err != nil {
		logger.Error("invalid scanner cron spec, falling back to default", zap.String("spec", spec), zap.Error(err))
		_, _ = s.cron.AddFunc(DefaultSpec, s.runOnce)
	}
	return s
}

// Start begins the cron schedule. One scanner per daemon instance; there is
// no cross-process coordination of scan cadence.
func (s *PeriodicScanner) Start(ctx context.Context) {
	s.cron.Start()
	go func() {
		<-ctx.Done()
		_ = s.Stop(context.Background())
	}()
}

// Stop drains the currently-running scan (if any) before returning.
func (s *PeriodicScanner) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.running.Wait()
	return nil
}

func (s *PeriodicScanner) runOnce() {
	s.mu.Lock()
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	sessions := s.store.GetSessions()
	for _, session := range sessions {
		events := s.store.GetEventTimeline(types.EventFilter{SessionID: session.SessionID})
		issues := analysis.DetectIssues(events)

		watermark := int64(len(events))
		catalog := s.engine.GetCatalog(events, "", watermark)

		result := ScanResult{
			SessionID:     session.SessionID,
			Issues:        issues,
			EndpointCount: len(catalog),
			ScannedAt:     time.Now().UnixMilli(),
		}
		s.store.Notify(types.RuntimeEvent{
			SessionID: session.SessionID,
			Timestamp: result.ScannedAt,
			EventType: types.EventScanResult,
			Opaque: &types.OpaquePayload{
				Body: map[string]any{
					"sessionId":     result.SessionID,
					"issues":        result.Issues,
					"endpointCount": result.EndpointCount,
					"scannedAt":     result.ScannedAt,
				},
			},
		})
	}
}
