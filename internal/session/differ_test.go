package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devradar/devradar/internal/types"
)

func TestCompareSessions_ClassifiesRegressionImprovementAndFiltersUnchanged(t *testing.T) {
	a := types.SessionMetrics{
		ErrorCount:  2,
		TotalEvents: 10,
		Endpoints: map[string]types.EndpointMetrics{
			"GET /a": {AvgLatency: 100}, // -> regresses by +50%
			"GET /b": {AvgLatency: 200}, // -> improves by -50%
			"GET /c": {AvgLatency: 100}, // -> unchanged (+5%), filtered out
		},
	}
	b := types.SessionMetrics{
		ErrorCount:  5,
		TotalEvents: 20,
		Endpoints: map[string]types.EndpointMetrics{
			"GET /a": {AvgLatency: 150},
			"GET /b": {AvgLatency: 100},
			"GET /c": {AvgLatency: 105},
		},
	}

	comparison := CompareSessions("s1", "s2", a, b)
	require.Equal(t, 3, comparison.ErrorCountDelta)
	require.Equal(t, 10, comparison.TotalEventsDelta)

	byKey := map[string]types.MetricDelta{}
	for _, d := range comparison.Deltas {
		byKey[d.Key] = d
	}
	require.Len(t, byKey, 2, "the +5% unchanged endpoint must be filtered out")
	require.Equal(t, types.ClassRegression, byKey["endpoints:GET /a"].Classification)
	require.Equal(t, types.ClassImprovement, byKey["endpoints:GET /b"].Classification)
	require.NotContains(t, byKey, "endpoints:GET /c")
}

func TestCompareSessions_ZeroBeforeValueTreatedAsFullChangeWhenAfterNonzero(t *testing.T) {
	a := types.SessionMetrics{Stores: map[string]types.StoreMetrics{}}
	b := types.SessionMetrics{Stores: map[string]types.StoreMetrics{"cart": {UpdateCount: 3}}}

	comparison := CompareSessions("s1", "s2", a, b)
	require.Len(t, comparison.Deltas, 1)
	require.Equal(t, types.ClassRegression, comparison.Deltas[0].Classification)
	require.InDelta(t, 1, comparison.Deltas[0].PercentChange, 0.001)
}

func TestCompareSessions_BothZeroIsUnchanged(t *testing.T) {
	a := types.SessionMetrics{Queries: map[string]types.QueryMetrics{"q": {AvgDuration: 0}}}
	b := types.SessionMetrics{Queries: map[string]types.QueryMetrics{"q": {AvgDuration: 0}}}
	comparison := CompareSessions("s1", "s2", a, b)
	require.Empty(t, comparison.Deltas)
}
