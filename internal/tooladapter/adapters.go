// adapters.go — the four example Tool Adapter functions named in SPEC_FULL.md:
// network_requests, detect_issues, api_catalog, compare_sessions. Each calls
// straight into the engine below it and formats the result as an Envelope.
package tooladapter

import (
	"context"
	"fmt"

	"github.com/devradar/devradar/internal/analysis"
	"github.com/devradar/devradar/internal/session"
	"github.com/devradar/devradar/internal/types"
)

// Store is the subset of the Event Store the adapters read from.
type Store interface {
	GetNetworkRequests(filter types.EventFilter) []types.NetworkEvent
	GetEventTimeline(filter types.EventFilter) []types.RuntimeEvent
}

// NetworkRequests adapts Store.GetNetworkRequests to the tool envelope.
func NetworkRequests(store Store, filter types.EventFilter) Envelope {
	requests := store.GetNetworkRequests(filter)
	events := make([]types.RuntimeEvent, len(requests))
	for i, n := range requests {
		network := n
		events[i] = types.RuntimeEvent{SessionID: filter.SessionID, EventType: types.EventNetwork, Network: &network}
	}
	return Envelope{
		Summary:  fmt.Sprintf("%d network request(s) matched the filter", len(requests)),
		Data:     requests,
		Issues:   nil,
		Metadata: newMetadata(events, filter.SessionID),
	}
}

// DetectIssues adapts the Issue Detector over sessionID's recent timeline.
func DetectIssues(store Store, sessionID string) Envelope {
	events := store.GetEventTimeline(types.EventFilter{SessionID: sessionID})
	issues := analysis.DetectIssues(events)
	return Envelope{
		Summary:  fmt.Sprintf("%d issue(s) detected", len(issues)),
		Data:     issues,
		Issues:   issueStrings(issues),
		Metadata: newMetadata(events, sessionID),
	}
}

// ApiCatalog adapts the API Discovery Engine's catalog for sessionID.
func ApiCatalog(store Store, engine *analysis.Engine, sessionID string, watermark int64) Envelope {
	events := store.GetEventTimeline(types.EventFilter{SessionID: sessionID})
	catalog := engine.GetCatalog(events, "", watermark)
	engineIssues := engine.DetectEngineIssues(events)
	return Envelope{
		Summary:  fmt.Sprintf("%d endpoint(s) in the catalog", len(catalog)),
		Data:     catalog,
		Issues:   issueStrings(engineIssues),
		Metadata: newMetadata(events, sessionID),
	}
}

// CompareSessions adapts the Session Manager's cross-session comparison.
func CompareSessions(ctx context.Context, manager *session.Manager, sessionA, sessionB string) (Envelope, error) {
	comparison, err := manager.Compare(ctx, sessionA, sessionB)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Summary: fmt.Sprintf("%d metric(s) changed beyond the %.0f%% threshold between %s and %s",
			len(comparison.Deltas), session.ChangeThreshold*100, sessionA, sessionB),
		Data:   comparison,
		Issues: nil,
		Metadata: Metadata{
			EventCount: comparison.TotalEventsDelta,
			SessionID:  &sessionB,
		},
	}, nil
}
