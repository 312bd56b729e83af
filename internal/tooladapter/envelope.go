// envelope.go — Tool Adapter envelope (§6.2, collaborator): every example
// adapter wraps its engine result in the uniform {summary, data, issues,
// metadata} shape. This is intentionally thin: no JSON-RPC dispatch, tool
// registry, or MCP wire handling lives here.
package tooladapter

import (
	"fmt"

	"github.com/devradar/devradar/internal/types"
)

// TimeRange is the metadata window an adapter result covers.
type TimeRange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Metadata accompanies every Envelope.
type Metadata struct {
	TimeRange  TimeRange `json:"timeRange"`
	EventCount int       `json:"eventCount"`
	SessionID  *string   `json:"sessionId"`
}

// Envelope is the uniform tool-response shape (§6.2).
type Envelope struct {
	Summary  string   `json:"summary"`
	Data     any      `json:"data"`
	Issues   []string `json:"issues"`
	Metadata Metadata `json:"metadata"`
}

// newMetadata builds a Metadata covering events, scoped to sessionID when
// non-empty.
func newMetadata(events []types.RuntimeEvent, sessionID string) Metadata {
	md := Metadata{EventCount: len(events)}
	if sessionID != "" {
		md.SessionID = &sessionID
	}
	if len(events) == 0 {
		return md
	}
	from, to := events[0].Timestamp, events[0].Timestamp
	for _, e := range events {
		if e.Timestamp < from {
			from = e.Timestamp
		}
		if e.Timestamp > to {
			to = e.Timestamp
		}
	}
	md.TimeRange = TimeRange{From: from, To: to}
	return md
}

// issueStrings renders DetectedIssues as the adapter envelope's flat string
// list (§6.2 "issues": ["<string>", ...]).
func issueStrings(issues []types.DetectedIssue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = fmt.Sprintf("[%s] %s: %s", issue.Severity, issue.Pattern, issue.Suggestion)
	}
	return out
}
