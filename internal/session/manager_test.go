package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devradar/devradar/internal/types"
)

func TestComputeMetrics_AggregatesEndpointsAndErrorCount(t *testing.T) {
	events := []types.RuntimeEvent{
		{EventID: "1", SessionID: "s1", Timestamp: 100, EventType: types.EventNetwork,
			Network: &types.NetworkEvent{URL: "/a", Method: "GET", Status: 200, Duration: 100}},
		{EventID: "2", SessionID: "s1", Timestamp: 200, EventType: types.EventNetwork,
			Network: &types.NetworkEvent{URL: "/a", Method: "GET", Status: 500, Duration: 300}},
		{EventID: "3", SessionID: "s1", Timestamp: 300, EventType: types.EventConsole,
			Console: &types.ConsoleEvent{Level: types.ConsoleError, Message: "x"}},
	}
	metrics := ComputeMetrics("s1", events)
	require.Equal(t, 3, metrics.TotalEvents)
	require.Equal(t, 2, metrics.ErrorCount) // 1 network 500 + 1 console error
	ep := metrics.Endpoints["GET /a"]
	require.Equal(t, 2, ep.CallCount)
	require.InDelta(t, 200, ep.AvgLatency, 0.001)
	require.InDelta(t, 0.5, ep.ErrorRate, 0.001)
	require.Equal(t, int64(100), metrics.ConnectedAt)
	require.Equal(t, int64(300), metrics.DisconnectedAt)
}

func TestComputeMetrics_ComponentAveragingMatchesObservedBehavior(t *testing.T) {
	events := []types.RuntimeEvent{
		{EventID: "1", SessionID: "s1", Timestamp: 100, EventType: types.EventRender,
			Render: &types.RenderEvent{Profiles: []types.RenderComponentProfile{
				{ComponentName: "Widget", RenderCount: 2, AvgDuration: 10},
			}}},
		{EventID: "2", SessionID: "s1", Timestamp: 200, EventType: types.EventRender,
			Render: &types.RenderEvent{Profiles: []types.RenderComponentProfile{
				{ComponentName: "Widget", RenderCount: 4, AvgDuration: 20},
			}}},
	}
	metrics := ComputeMetrics("s1", events)
	comp := metrics.Components["Widget"]
	require.Equal(t, 6, comp.RenderCount)
	require.InDelta(t, 15, comp.AvgDuration, 0.001, "(10+20)/2 per the observed (non-weighted) averaging behavior")
}

func TestComputeMetrics_WebVitalsKeepLastObservedValue(t *testing.T) {
	events := []types.RuntimeEvent{
		{EventID: "1", SessionID: "s1", Timestamp: 100, EventType: types.EventPerformance,
			Performance: &types.PerformanceEvent{MetricName: "LCP", Value: 3000, Rating: types.RatingPoor}},
		{EventID: "2", SessionID: "s1", Timestamp: 200, EventType: types.EventPerformance,
			Performance: &types.PerformanceEvent{MetricName: "LCP", Value: 1500, Rating: types.RatingGood}},
	}
	metrics := ComputeMetrics("s1", events)
	require.Equal(t, types.RatingGood, metrics.WebVitals["LCP"].Rating)
	require.InDelta(t, 1500, metrics.WebVitals["LCP"].Value, 0.001)
}

func TestComputeMetrics_EmptyEventsDefaultsTimestampsToNow(t *testing.T) {
	metrics := ComputeMetrics("s1", nil)
	require.Equal(t, metrics.ConnectedAt, metrics.DisconnectedAt)
	require.Greater(t, metrics.ConnectedAt, int64(0))
}
