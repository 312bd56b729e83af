// differ.go — Session Differ (§4.8): compareSessions classifies per-category
// metric deltas between two SessionMetrics snapshots.
package session

import (
	"sort"

	"github.com/devradar/devradar/internal/types"
)

// ChangeThreshold is the ±10% boundary classifying a delta as a regression,
// improvement, or unchanged (§4.8 CHANGE_THRESHOLD).
const ChangeThreshold = 0.10

// CompareSessions classifies every metric delta between a (before) and b
// (after), filtering out "unchanged" classifications, plus the overall
// error-count and total-event deltas (§4.8 "compareSessions").
func CompareSessions(sessionA, sessionB string, a, b types.SessionMetrics) types.SessionComparison {
	before := map[string]float64{}
	after := map[string]float64{}

	for key, m := range a.Endpoints {
		before["endpoints:"+key] = m.AvgLatency
	}
	for key, m := range b.Endpoints {
		after["endpoints:"+key] = m.AvgLatency
	}
	for key, m := range a.Components {
		before["components:"+key] = float64(m.RenderCount)
	}
	for key, m := range b.Components {
		after["components:"+key] = float64(m.RenderCount)
	}
	for key, m := range a.Stores {
		before["stores:"+key] = float64(m.UpdateCount)
	}
	for key, m := range b.Stores {
		after["stores:"+key] = float64(m.UpdateCount)
	}
	for key, m := range a.WebVitals {
		before["webVitals:"+key] = m.Value
	}
	for key, m := range b.WebVitals {
		after["webVitals:"+key] = m.Value
	}
	for key, m := range a.Queries {
		before["queries:"+key] = m.AvgDuration
	}
	for key, m := range b.Queries {
		after["queries:"+key] = m.AvgDuration
	}

	keys := map[string]bool{}
	for k := range before {
		keys[k] = true
	}
	for k := range after {
		keys[k] = true
	}

	var deltas []types.MetricDelta
	for key := range keys {
		bVal := before[key]
		aVal := after[key]
		delta := aVal - bVal

		var percentChange float64
		switch {
		case bVal != 0:
			percentChange = delta / bVal
		case aVal != 0:
			percentChange = 1
		default:
			percentChange = 0
		}

		class := types.ClassUnchanged
		switch {
		case percentChange > ChangeThreshold:
			class = types.ClassRegression
		case percentChange < -ChangeThreshold:
			class = types.ClassImprovement
		}
		if class == types.ClassUnchanged {
			continue
		}

		deltas = append(deltas, types.MetricDelta{
			Key: key, Before: bVal, After: aVal, Delta: delta,
			PercentChange: percentChange, Classification: class,
		})
	}
	sort.SliceStable(deltas, func(i, j int) bool { return deltas[i].Key < deltas[j].Key })

	return types.SessionComparison{
		SessionA:         sessionA,
		SessionB:         sessionB,
		Deltas:           deltas,
		ErrorCountDelta:  b.ErrorCount - a.ErrorCount,
		TotalEventsDelta: b.TotalEvents - a.TotalEvents,
	}
}
