package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devradar/devradar/internal/types"
)

func TestNormalizeURL_RulesInOrder(t *testing.T) {
	baseUrl, path := normalizeURL("https://api.example.com/users/550e8400-e29b-41d4-a716-446655440000")
	require.Equal(t, "https://api.example.com", baseUrl)
	require.Equal(t, "/users/:id", path)

	_, path = normalizeURL("https://api.example.com/users/12345")
	require.Equal(t, "/users/:id", path)

	_, path = normalizeURL("https://api.example.com/posts/507f1f77bcf86cd799439011")
	require.Equal(t, "/posts/:id", path)

	_, path = normalizeURL("https://api.example.com/orders/deadbeefcafe")
	require.Equal(t, "/orders/:id", path)

	_, path = normalizeURL("https://api.example.com/sessions/abcdefghijklmnopqrstuvwxyz12")
	require.Equal(t, "/sessions/:id", path)

	_, path = normalizeURL("https://api.example.com/static/about")
	require.Equal(t, "/static/about", path)

	baseUrl, path = normalizeURL("::not a url::")
	require.Equal(t, "unknown", baseUrl)
	require.Equal(t, "::not a url::", path)
}

func TestDetectService_KnownHostsAndFallback(t *testing.T) {
	require.Equal(t, "Supabase", detectService("project.supabase.co"))
	require.Equal(t, "Your API", detectService("localhost"))
	require.Equal(t, "example.com", detectService("www.example.com"))
}

func TestDetectAuth_SchemePrecedence(t *testing.T) {
	require.Equal(t, types.AuthShape{Type: "bearer"}, detectAuth(map[string]string{"Authorization": "Bearer abc"}))
	require.Equal(t, types.AuthShape{Type: "basic"}, detectAuth(map[string]string{"authorization": "Basic abc"}))
	require.Equal(t, "api_key", detectAuth(map[string]string{"X-Api-Key": "k"}).Type)
	require.Equal(t, "cookie", detectAuth(map[string]string{"Cookie": "a=b"}).Type)
	require.Equal(t, "none", detectAuth(map[string]string{}).Type)
}

func networkCallEvent(ts int64, method, url string, status int, headers map[string]string, respBody string) types.RuntimeEvent {
	return types.RuntimeEvent{
		EventID: "n", SessionID: "s1", Timestamp: ts, EventType: types.EventNetwork,
		Network: &types.NetworkEvent{URL: url, Method: method, Status: status, RequestHeaders: headers, ResponseBody: respBody, Duration: 50},
	}
}

func TestEngine_GetCatalog_SortsByCallCountDesc(t *testing.T) {
	eng := NewEngine()
	events := []types.RuntimeEvent{
		networkCallEvent(100, "GET", "https://api.x/a", 200, nil, ""),
		networkCallEvent(200, "GET", "https://api.x/b", 200, nil, ""),
		networkCallEvent(300, "GET", "https://api.x/b", 200, nil, ""),
	}
	catalog := eng.GetCatalog(events, "", 3)
	require.Len(t, catalog, 2)
	require.Equal(t, "/b", catalog[0].NormalizedPath)
	require.Equal(t, 2, catalog[0].CallCount)
}

func TestEngine_InferContract_WalksObjectAndArrayBodies(t *testing.T) {
	eng := NewEngine()
	events := []types.RuntimeEvent{
		networkCallEvent(100, "GET", "https://api.x/users", 200, nil, `{"id":1,"name":"a","tags":["x"]}`),
		networkCallEvent(200, "GET", "https://api.x/users", 200, nil, `{"id":2,"name":null,"tags":["y"]}`),
	}
	catalog := eng.GetCatalog(events, "", 1)
	require.Len(t, catalog, 1)
	var nameField *types.ContractField
	for i := range catalog[0].Contract {
		if catalog[0].Contract[i].Path == "name" {
			nameField = &catalog[0].Contract[i]
		}
	}
	require.NotNil(t, nameField)
	require.True(t, nameField.Nullable)
	require.Contains(t, nameField.Type, "string")
	require.Contains(t, nameField.Type, "null")
}

func TestEngine_DetectEngineIssues_ApiDegradationAndHighLatency(t *testing.T) {
	eng := NewEngine()
	var events []types.RuntimeEvent
	for i := 0; i < 4; i++ {
		events = append(events, networkCallEvent(int64(i*100), "GET", "https://api.x/flaky", 500, nil, ""))
	}
	issues := eng.DetectEngineIssues(events)
	require.NotEmpty(t, issues)
	require.Equal(t, "api_degradation", issues[0].Pattern)
}

func TestEngine_GetCatalog_DistinctSessionsWithEqualLengthTimelinesDoNotCollide(t *testing.T) {
	eng := NewEngine()
	sessionA := []types.RuntimeEvent{
		networkCallEvent(100, "GET", "https://api.x/widgets", 200, nil, ""),
		networkCallEvent(200, "GET", "https://api.x/widgets", 200, nil, ""),
	}
	sessionB := []types.RuntimeEvent{
		networkCallEvent(100, "GET", "https://api.x/gadgets", 200, nil, ""),
		networkCallEvent(200, "POST", "https://api.x/gadgets", 200, nil, ""),
	}

	// Same watermark (both timelines have 2 events) but different endpoints;
	// a bare-watermark cache key would serve sessionB sessionA's catalog.
	catalogA := eng.GetCatalog(sessionA, "", 2)
	catalogB := eng.GetCatalog(sessionB, "", 2)

	require.Len(t, catalogA, 1)
	require.Equal(t, "/widgets", catalogA[0].NormalizedPath)
	require.Len(t, catalogB, 2)
	for _, e := range catalogB {
		require.Equal(t, "/gadgets", e.NormalizedPath)
	}
}

func TestEngine_GetApiChanges_ClassifiesAddedRemovedModified(t *testing.T) {
	eng := NewEngine()
	before := []types.RuntimeEvent{
		networkCallEvent(100, "GET", "https://api.x/users", 200, nil, `{"id":1}`),
		networkCallEvent(100, "GET", "https://api.x/removed", 200, nil, ""),
	}
	after := []types.RuntimeEvent{
		networkCallEvent(200, "GET", "https://api.x/users", 200, nil, `{"id":"abc"}`),
		networkCallEvent(200, "GET", "https://api.x/added", 200, nil, ""),
	}
	changes := eng.GetApiChanges(before, after)
	var kinds []string
	for _, c := range changes {
		kinds = append(kinds, c.Change)
	}
	require.Contains(t, kinds, "added")
	require.Contains(t, kinds, "removed")
	require.Contains(t, kinds, "modified")
}
