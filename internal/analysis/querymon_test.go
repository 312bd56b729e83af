package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devradar/devradar/internal/types"
)

func dbEvent(id string, ts int64, query, normalized string, duration float64, op types.DatabaseOperation, tables []string, rows *int) types.RuntimeEvent {
	return types.RuntimeEvent{
		EventID: id, SessionID: "s1", Timestamp: ts, EventType: types.EventDatabase,
		Database: &types.DatabaseEvent{
			Query: query, NormalizedQuery: normalized, Duration: duration,
			Operation: op, TablesAccessed: tables, RowsReturned: rows,
		},
	}
}

func intPtr(v int) *int { return &v }

func TestAggregateQueryStats_GroupsByNormalizedQuerySortedByTotalDuration(t *testing.T) {
	events := []types.RuntimeEvent{
		dbEvent("1", 100, "SELECT * FROM users WHERE id = 1", "SELECT * FROM users WHERE id = ?", 100, types.DBSelect, []string{"users"}, intPtr(1)),
		dbEvent("2", 200, "SELECT * FROM users WHERE id = 2", "SELECT * FROM users WHERE id = ?", 50, types.DBSelect, []string{"users"}, intPtr(1)),
		dbEvent("3", 300, "SELECT * FROM orders", "SELECT * FROM orders", 500, types.DBSelect, []string{"orders"}, intPtr(5)),
	}
	stats := AggregateQueryStats(events)
	require.Len(t, stats, 2)
	require.Equal(t, "SELECT * FROM orders", stats[0].NormalizedQuery, "higher totalDuration sorts first")
	require.Equal(t, 2, stats[1].CallCount)
	require.InDelta(t, 75, stats[1].AvgDuration, 0.001)
}

func TestDetectN1Queries_SlidingWindowAdvancesPastTriggeredWindow(t *testing.T) {
	var events []types.RuntimeEvent
	for i := 0; i < 12; i++ {
		events = append(events, dbEvent("q", int64(i*100), "SELECT * FROM users WHERE id = ?", "SELECT * FROM users WHERE id = ?", 10, types.DBSelect, []string{"users"}, nil))
	}
	issues := DetectN1Queries(events)
	require.NotEmpty(t, issues)
	require.Equal(t, "n1_queries", issues[0].Pattern)
	require.Equal(t, types.SeverityHigh, issues[0].Severity)
}

func TestDetectSlowQueries_SeverityByDurationThreshold(t *testing.T) {
	events := []types.RuntimeEvent{
		dbEvent("1", 100, "q1", "q1", 600, types.DBSelect, nil, nil),
		dbEvent("2", 200, "q2", "q2", 2500, types.DBSelect, nil, nil),
	}
	issues := DetectSlowQueries(events, 500)
	require.Len(t, issues, 2)
	bySeverity := map[string]types.Severity{}
	for _, i := range issues {
		bySeverity[i.ID] = i.Severity
	}
	require.Equal(t, types.SeverityMedium, bySeverity["slow_queries:q1"])
	require.Equal(t, types.SeverityHigh, bySeverity["slow_queries:q2"])
}

func TestSuggestIndexes_ExtractsWhereAndOrderByColumns(t *testing.T) {
	events := []types.RuntimeEvent{
		dbEvent("1", 100, `SELECT * FROM users WHERE email = 'x' ORDER BY "created_at"`, "norm", 1500, types.DBSelect, []string{"users"}, nil),
	}
	suggestions := SuggestIndexes(events)
	require.Len(t, suggestions, 1)
	require.Equal(t, "users", suggestions[0].Table)
	require.ElementsMatch(t, []string{"email", "created_at"}, suggestions[0].Columns)
	require.Equal(t, "high", suggestions[0].EstimatedImpact)
}

func TestDetectOverfetching_RequiresSelectStarAndRowThreshold(t *testing.T) {
	events := []types.RuntimeEvent{
		dbEvent("1", 100, "SELECT * FROM users", "SELECT * FROM users", 10, types.DBSelect, []string{"users"}, intPtr(1500)),
		dbEvent("2", 200, "SELECT id FROM users", "SELECT id FROM users", 10, types.DBSelect, []string{"users"}, intPtr(500)),
	}
	issues := DetectOverfetching(events)
	require.Len(t, issues, 1)
	require.Equal(t, types.SeverityHigh, issues[0].Severity)
}
