package tooladapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devradar/devradar/internal/analysis"
	"github.com/devradar/devradar/internal/session"
	"github.com/devradar/devradar/internal/types"
)

type fakeAdapterStore struct {
	bySession map[string][]types.RuntimeEvent
}

func (f *fakeAdapterStore) GetNetworkRequests(filter types.EventFilter) []types.NetworkEvent {
	var out []types.NetworkEvent
	for _, e := range f.bySession[filter.SessionID] {
		if e.Network != nil {
			out = append(out, *e.Network)
		}
	}
	return out
}

func (f *fakeAdapterStore) GetEventTimeline(filter types.EventFilter) []types.RuntimeEvent {
	return f.bySession[filter.SessionID]
}

func (f *fakeAdapterStore) GetSession(sessionID string) (types.SessionInfo, bool) {
	return types.SessionInfo{}, false
}

func newFixtureStore() *fakeAdapterStore {
	return &fakeAdapterStore{bySession: map[string][]types.RuntimeEvent{
		"s1": {
			{EventID: "1", SessionID: "s1", Timestamp: 100, EventType: types.EventNetwork,
				Network: &types.NetworkEvent{URL: "/a", Method: "GET", Status: 500}},
			{EventID: "2", SessionID: "s1", Timestamp: 200, EventType: types.EventNetwork,
				Network: &types.NetworkEvent{URL: "/b", Method: "GET", Status: 200}},
		},
	}}
}

func TestNetworkRequests_WrapsMatchingRequestsInEnvelope(t *testing.T) {
	store := newFixtureStore()
	env := NetworkRequests(store, types.EventFilter{SessionID: "s1"})
	require.Equal(t, "2 network request(s) matched the filter", env.Summary)
	require.Len(t, env.Data, 2)
	require.Equal(t, 2, env.Metadata.EventCount)
	require.Equal(t, "s1", *env.Metadata.SessionID)
}

func TestDetectIssues_SurfacesIssuesAsStrings(t *testing.T) {
	store := newFixtureStore()
	env := DetectIssues(store, "s1")
	require.NotEmpty(t, env.Issues)
	require.Contains(t, env.Issues[0], "failed_requests")
}

func TestApiCatalog_BuildsCatalogFromTimeline(t *testing.T) {
	store := newFixtureStore()
	engine := analysis.NewEngine()
	env := ApiCatalog(store, engine, "s1", 1)
	require.Equal(t, "2 endpoint(s) in the catalog", env.Summary)
}

func TestCompareSessions_DelegatesToSessionManager(t *testing.T) {
	store := newFixtureStore()
	store.bySession["s2"] = []types.RuntimeEvent{
		{EventID: "3", SessionID: "s2", Timestamp: 100, EventType: types.EventNetwork,
			Network: &types.NetworkEvent{URL: "/a", Method: "GET", Status: 200, Duration: 400}},
	}
	mgr := session.NewManager(store, nil, "proj")
	env, err := CompareSessions(context.Background(), mgr, "s1", "s2")
	require.NoError(t, err)
	require.Contains(t, env.Summary, "s1")
	require.Contains(t, env.Summary, "s2")
}
