// manager.go — Session Manager (§4.8): computeMetrics aggregates one
// session's events into a SessionMetrics snapshot. Grounded on the
// teacher's thirdparty_summary.go per-entity aggregation style.
package session

import (
	"time"

	"github.com/devradar/devradar/internal/types"
)

// ComputeMetrics aggregates events (already scoped to sessionID) into a
// SessionMetrics snapshot (§4.8 "computeMetrics").
func ComputeMetrics(sessionID string, events []types.RuntimeEvent) types.SessionMetrics {
	metrics := types.SessionMetrics{
		SessionID:  sessionID,
		Endpoints:  map[string]types.EndpointMetrics{},
		Components: map[string]types.ComponentMetrics{},
		Stores:     map[string]types.StoreMetrics{},
		WebVitals:  map[string]types.WebVitalMetrics{},
		Queries:    map[string]types.QueryMetrics{},
	}

	type endpointAccum struct {
		durations []float64
		errors    int
	}
	endpointAccs := map[string]*endpointAccum{}

	type queryAccum struct {
		durations []float64
	}
	queryAccs := map[string]*queryAccum{}

	var minTS, maxTS int64
	haveTS := false

	for _, e := range events {
		if !haveTS || e.Timestamp < minTS {
			minTS = e.Timestamp
		}
		if !haveTS || e.Timestamp > maxTS {
			maxTS = e.Timestamp
		}
		haveTS = true

		metrics.TotalEvents++

		switch e.EventType {
		case types.EventNetwork:
			if e.Network == nil {
				continue
			}
			key := e.Network.Method + " " + e.Network.URL
			acc, ok := endpointAccs[key]
			if !ok {
				acc = &endpointAccum{}
				endpointAccs[key] = acc
			}
			acc.durations = append(acc.durations, e.Network.Duration)
			if e.Network.Status >= 400 {
				acc.errors++
				metrics.ErrorCount++
			}
		case types.EventConsole:
			if e.Console != nil && e.Console.Level == types.ConsoleError {
				metrics.ErrorCount++
			}
		case types.EventRender:
			if e.Render == nil {
				continue
			}
			for _, p := range e.Render.Profiles {
				mergeComponentProfile(metrics.Components, p)
			}
		case types.EventState:
			if e.State == nil {
				continue
			}
			sm := metrics.Stores[e.State.StoreID]
			sm.UpdateCount++
			metrics.Stores[e.State.StoreID] = sm
		case types.EventPerformance:
			if e.Performance == nil || e.Performance.Rating == "" {
				continue
			}
			metrics.WebVitals[e.Performance.MetricName] = types.WebVitalMetrics{
				Value: e.Performance.Value, Rating: e.Performance.Rating,
			}
		case types.EventDatabase:
			if e.Database == nil {
				continue
			}
			acc, ok := queryAccs[e.Database.NormalizedQuery]
			if !ok {
				acc = &queryAccum{}
				queryAccs[e.Database.NormalizedQuery] = acc
			}
			acc.durations = append(acc.durations, e.Database.Duration)
		}
	}

	for key, acc := range endpointAccs {
		metrics.Endpoints[key] = types.EndpointMetrics{
			AvgLatency: mean(acc.durations),
			ErrorRate:  float64(acc.errors) / float64(len(acc.durations)),
			CallCount:  len(acc.durations),
		}
	}
	for key, acc := range queryAccs {
		metrics.Queries[key] = types.QueryMetrics{
			AvgDuration: mean(acc.durations),
			CallCount:   len(acc.durations),
		}
	}

	now := time.Now().UnixMilli()
	if haveTS {
		metrics.ConnectedAt = minTS
		metrics.DisconnectedAt = maxTS
	} else {
		metrics.ConnectedAt = now
		metrics.DisconnectedAt = now
	}

	return metrics
}

// mergeComponentProfile folds one observed RenderComponentProfile into the
// running per-component aggregate. §9's Design Notes records the source's
// averaging as `(existingAvg + newAvg)/2` rather than a true weighted mean
// and flags it as possibly unintended; this implementation keeps the
// observed behavior verbatim (decision recorded in DESIGN.md).
func mergeComponentProfile(components map[string]types.ComponentMetrics, p types.RenderComponentProfile) {
	existing, ok := components[p.ComponentName]
	if !ok {
		components[p.ComponentName] = types.ComponentMetrics{
			RenderCount: p.RenderCount,
			AvgDuration: p.AvgDuration,
		}
		return
	}
	components[p.ComponentName] = types.ComponentMetrics{
		RenderCount: existing.RenderCount + p.RenderCount,
		AvgDuration: (existing.AvgDuration + p.AvgDuration) / 2,
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
