// issues.go — Issue Detector (§4.5): a pure function over a slice of
// RuntimeEvent producing DetectedIssue values, severity-sorted. Grounded on
// clustering.go's grouping idioms, adapted from third-party reputation
// clustering to ten fixed detector patterns.
package analysis

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/devradar/devradar/internal/types"
)

// detectorOrder fixes registration order for the within-severity tie-break
// (§4.5 "within a severity, registration order of detectors").
var detectorOrder = []func([]types.RuntimeEvent) []types.DetectedIssue{
	detectFailedRequests,
	detectSlowRequests,
	detectN1Requests,
	detectConsoleErrorSpam,
	detectHighErrorRate,
	detectExcessiveRerenders,
	detectLargeStateUpdate,
	detectPoorWebVital,
	detectSlowDBQueries,
	detectN1DBQueries,
}

// DetectIssues runs every detector over events and returns the combined
// findings sorted by severity (high < medium < low); within a severity,
// detectors run in their fixed registration order and each detector's own
// issues keep their emission order.
func DetectIssues(events []types.RuntimeEvent) []types.DetectedIssue {
	var all []types.DetectedIssue
	for _, detect := range detectorOrder {
		all = append(all, detect(events)...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return types.SeverityRank(all[i].Severity) < types.SeverityRank(all[j].Severity)
	})
	return all
}

func networkEvents(events []types.RuntimeEvent) []*types.NetworkEvent {
	var out []*types.NetworkEvent
	for _, e := range events {
		if e.EventType == types.EventNetwork && e.Network != nil {
			out = append(out, e.Network)
		}
	}
	return out
}

func consoleEvents(events []types.RuntimeEvent) []*types.ConsoleEvent {
	var out []*types.ConsoleEvent
	for _, e := range events {
		if e.EventType == types.EventConsole && e.Console != nil {
			out = append(out, e.Console)
		}
	}
	return out
}

// detectFailedRequests: status>=400, grouped by "status method url"; one
// issue per group, evidence = first 3 events; high if status>=500 else medium.
func detectFailedRequests(events []types.RuntimeEvent) []types.DetectedIssue {
	type group struct {
		key      string
		status   int
		method   string
		url      string
		evidence []any
	}
	order := []string{}
	groups := map[string]*group{}
	for _, e := range events {
		if e.EventType != types.EventNetwork || e.Network == nil || e.Network.Status < 400 {
			continue
		}
		n := e.Network
		key := fmt.Sprintf("%d %s %s", n.Status, n.Method, n.URL)
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, status: n.Status, method: n.Method, url: n.URL}
			groups[key] = g
			order = append(order, key)
		}
		if len(g.evidence) < 3 {
			g.evidence = append(g.evidence, n)
		}
	}
	var issues []types.DetectedIssue
	for _, key := range order {
		g := groups[key]
		severity := types.SeverityMedium
		if g.status >= 500 {
			severity = types.SeverityHigh
		}
		issues = append(issues, types.DetectedIssue{
			ID:          "failed_requests:" + g.key,
			Pattern:     "failed_requests",
			Severity:    severity,
			Title:       fmt.Sprintf("%s %s failing with %d", g.method, g.url, g.status),
			Description: fmt.Sprintf("%s %s returned status %d", g.method, g.url, g.status),
			Evidence:    g.evidence,
			Suggestion:  "Inspect the handler and upstream dependency for this endpoint.",
		})
	}
	return issues
}

// detectSlowRequests: any network duration > 3000ms; single aggregated
// issue, top-5 evidence sorted by duration desc.
func detectSlowRequests(events []types.RuntimeEvent) []types.DetectedIssue {
	var slow []*types.NetworkEvent
	for _, n := range networkEvents(events) {
		if n.Duration > 3000 {
			slow = append(slow, n)
		}
	}
	if len(slow) == 0 {
		return nil
	}
	sort.SliceStable(slow, func(i, j int) bool { return slow[i].Duration > slow[j].Duration })
	evidence := make([]any, 0, 5)
	for i := 0; i < len(slow) && i < 5; i++ {
		evidence = append(evidence, slow[i])
	}
	return []types.DetectedIssue{{
		ID:          "slow_requests",
		Pattern:     "slow_requests",
		Severity:    types.SeverityMedium,
		Title:       fmt.Sprintf("%d requests slower than 3s", len(slow)),
		Description: fmt.Sprintf("%d network calls took longer than %s", len(slow), humanize.Comma(3000)+"ms"),
		Evidence:    evidence,
		Suggestion:  "Profile the slowest endpoints and consider caching or pagination.",
	}}
}

// detectN1Requests: group by "method url"; group size>5 AND a 2-second
// sliding window within the group exceeds 5.
func detectN1Requests(events []types.RuntimeEvent) []types.DetectedIssue {
	type entry struct {
		ts int64
		n  *types.NetworkEvent
	}
	order := []string{}
	groups := map[string][]entry{}
	for _, e := range events {
		if e.EventType != types.EventNetwork || e.Network == nil {
			continue
		}
		key := e.Network.Method + " " + e.Network.URL
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], entry{ts: e.Timestamp, n: e.Network})
	}

	var issues []types.DetectedIssue
	for _, key := range order {
		g := groups[key]
		if len(g) <= 5 {
			continue
		}
		sort.SliceStable(g, func(i, j int) bool { return g[i].ts < g[j].ts })
		timestamps := make([]int64, len(g))
		for i, entry := range g {
			timestamps[i] = entry.ts
		}
		if slidingWindowTriggers(timestamps, 5) < 0 {
			continue
		}
		evidence := make([]any, 0, 3)
		for i := 0; i < len(g) && i < 3; i++ {
			evidence = append(evidence, g[i].n)
		}
		issues = append(issues, types.DetectedIssue{
			ID:          "n1_requests:" + key,
			Pattern:     "n1_requests",
			Severity:    types.SeverityMedium,
			Title:       fmt.Sprintf("Possible N+1 requests to %s", key),
			Description: fmt.Sprintf("%d calls to %s within a short window", len(g), key),
			Evidence:    evidence,
			Suggestion:  "Batch these calls or add a join/dataloader to avoid repeated round-trips.",
		})
	}
	return issues
}

// detectConsoleErrorSpam: error-level console events grouped by the first
// 200 chars of their message; count>5 AND time span<=10000ms.
func detectConsoleErrorSpam(events []types.RuntimeEvent) []types.DetectedIssue {
	type entry struct {
		ts int64
		c  *types.ConsoleEvent
	}
	order := []string{}
	groups := map[string][]entry{}
	for _, e := range events {
		if e.EventType != types.EventConsole || e.Console == nil || e.Console.Level != types.ConsoleError {
			continue
		}
		msg := e.Console.Message
		if len(msg) > 200 {
			msg = msg[:200]
		}
		if _, ok := groups[msg]; !ok {
			order = append(order, msg)
		}
		groups[msg] = append(groups[msg], entry{ts: e.Timestamp, c: e.Console})
	}

	var issues []types.DetectedIssue
	for _, key := range order {
		g := groups[key]
		if len(g) <= 5 {
			continue
		}
		sort.SliceStable(g, func(i, j int) bool { return g[i].ts < g[j].ts })
		span := g[len(g)-1].ts - g[0].ts
		if span > 10000 {
			continue
		}
		evidence := make([]any, 0, 3)
		for i := 0; i < len(g) && i < 3; i++ {
			evidence = append(evidence, g[i].c)
		}
		issues = append(issues, types.DetectedIssue{
			ID:          "console_error_spam:" + key,
			Pattern:     "console_error_spam",
			Severity:    types.SeverityMedium,
			Title:       "Repeated console error",
			Description: fmt.Sprintf("%q logged %d times within %dms", key, len(g), span),
			Evidence:    evidence,
			Suggestion:  "Deduplicate this error at the source or fix the underlying failure.",
		})
	}
	return issues
}

// detectHighErrorRate: total console events>=10 AND errors/total>0.30.
func detectHighErrorRate(events []types.RuntimeEvent) []types.DetectedIssue {
	all := consoleEvents(events)
	if len(all) < 10 {
		return nil
	}
	var errs int
	var evidence []any
	for _, c := range all {
		if c.Level == types.ConsoleError {
			errs++
			if len(evidence) < 3 {
				evidence = append(evidence, c)
			}
		}
	}
	rate := float64(errs) / float64(len(all))
	if rate <= 0.30 {
		return nil
	}
	return []types.DetectedIssue{{
		ID:          "high_error_rate",
		Pattern:     "high_error_rate",
		Severity:    types.SeverityHigh,
		Title:       "High console error rate",
		Description: fmt.Sprintf("%d of %d console events are errors (%.0f%%)", errs, len(all), rate*100),
		Evidence:    evidence,
		Suggestion:  "Investigate the dominant error sources before they reach production.",
	}}
}

// detectExcessiveRerenders: render profiles with Suspicious==true, deduped
// by componentName; suggestion varies by lastRenderCause.
func detectExcessiveRerenders(events []types.RuntimeEvent) []types.DetectedIssue {
	seen := map[string]bool{}
	order := []string{}
	profiles := map[string]types.RenderComponentProfile{}
	for _, e := range events {
		if e.EventType != types.EventRender || e.Render == nil {
			continue
		}
		for _, p := range e.Render.Profiles {
			if !p.Suspicious || seen[p.ComponentName] {
				continue
			}
			seen[p.ComponentName] = true
			order = append(order, p.ComponentName)
			profiles[p.ComponentName] = p
		}
	}
	var issues []types.DetectedIssue
	for _, name := range order {
		p := profiles[name]
		issues = append(issues, types.DetectedIssue{
			ID:          "excessive_rerenders:" + name,
			Pattern:     "excessive_rerenders",
			Severity:    types.SeverityMedium,
			Title:       fmt.Sprintf("%s re-renders excessively", name),
			Description: fmt.Sprintf("%s rendered %d times (%.1f/s), last cause %s", name, p.RenderCount, p.RenderVelocity, p.LastRenderCause),
			Evidence:    []any{p},
			Suggestion:  rerenderSuggestion(p.LastRenderCause),
		})
	}
	return issues
}

func rerenderSuggestion(cause types.RenderCause) string {
	switch cause {
	case types.CauseProps:
		return "Memoize this component or the props passed into it."
	case types.CauseState:
		return "Narrow the state selector so unrelated updates don't trigger a render."
	case types.CauseContext:
		return "Split the context provider so unrelated consumers aren't re-rendered."
	case types.CauseParent:
		return "Memoize this component so parent re-renders don't cascade into it."
	default:
		return "Profile the render to find its trigger."
	}
}

// detectLargeStateUpdate: state phase==update where the serialized state
// exceeds 100KiB, deduped by storeId.
func detectLargeStateUpdate(events []types.RuntimeEvent) []types.DetectedIssue {
	const threshold = 100 * 1024
	seen := map[string]bool{}
	order := []string{}
	chosen := map[string]struct {
		event *types.StateEvent
		size  int
	}{}
	for _, e := range events {
		if e.EventType != types.EventState || e.State == nil || e.State.Phase != types.StateUpdate {
			continue
		}
		if seen[e.State.StoreID] {
			continue
		}
		raw, err := json.Marshal(e.State.State)
		if err != nil || len(raw) <= threshold {
			continue
		}
		seen[e.State.StoreID] = true
		order = append(order, e.State.StoreID)
		chosen[e.State.StoreID] = struct {
			event *types.StateEvent
			size  int
		}{event: e.State, size: len(raw)}
	}
	var issues []types.DetectedIssue
	for _, storeID := range order {
		c := chosen[storeID]
		issues = append(issues, types.DetectedIssue{
			ID:          "large_state_update:" + storeID,
			Pattern:     "large_state_update",
			Severity:    types.SeverityMedium,
			Title:       fmt.Sprintf("Large state update on %s", storeID),
			Description: fmt.Sprintf("Store %s emitted a %s update", storeID, humanize.Bytes(uint64(c.size))),
			Evidence:    []any{c.event},
			Suggestion:  "Split this store or normalize its shape to avoid serializing large payloads per update.",
		})
	}
	return issues
}

// detectPoorWebVital: performance events with rating==poor, deduped by
// metricName; high for LCP/CLS, otherwise medium.
func detectPoorWebVital(events []types.RuntimeEvent) []types.DetectedIssue {
	seen := map[string]bool{}
	order := []string{}
	chosen := map[string]*types.PerformanceEvent{}
	for _, e := range events {
		if e.EventType != types.EventPerformance || e.Performance == nil || e.Performance.Rating != types.RatingPoor {
			continue
		}
		if seen[e.Performance.MetricName] {
			continue
		}
		seen[e.Performance.MetricName] = true
		order = append(order, e.Performance.MetricName)
		chosen[e.Performance.MetricName] = e.Performance
	}
	var issues []types.DetectedIssue
	for _, name := range order {
		p := chosen[name]
		severity := types.SeverityMedium
		if name == "LCP" || name == "CLS" {
			severity = types.SeverityHigh
		}
		issues = append(issues, types.DetectedIssue{
			ID:          "poor_web_vital:" + name,
			Pattern:     "poor_web_vital",
			Severity:    severity,
			Title:       fmt.Sprintf("Poor %s", name),
			Description: fmt.Sprintf("%s rated poor at %.2f%s", name, p.Value, p.Unit),
			Evidence:    []any{p},
			Suggestion:  "See web.dev guidance for improving " + name + ".",
		})
	}
	return issues
}

// detectSlowDBQueries: any database duration>500ms; single aggregated
// issue sorted by duration desc, top-5 evidence.
func detectSlowDBQueries(events []types.RuntimeEvent) []types.DetectedIssue {
	var slow []*types.DatabaseEvent
	for _, e := range events {
		if e.EventType == types.EventDatabase && e.Database != nil && e.Database.Duration > 500 {
			slow = append(slow, e.Database)
		}
	}
	if len(slow) == 0 {
		return nil
	}
	sort.SliceStable(slow, func(i, j int) bool { return slow[i].Duration > slow[j].Duration })
	evidence := make([]any, 0, 5)
	for i := 0; i < len(slow) && i < 5; i++ {
		evidence = append(evidence, slow[i])
	}
	return []types.DetectedIssue{{
		ID:          "slow_db_queries",
		Pattern:     "slow_db_queries",
		Severity:    types.SeverityMedium,
		Title:       fmt.Sprintf("%d slow database queries", len(slow)),
		Description: fmt.Sprintf("%d queries exceeded %sms", len(slow), humanize.Comma(500)),
		Evidence:    evidence,
		Suggestion:  "Add an index or rewrite the slowest queries; see suggestIndexes for candidates.",
	}}
}

// detectN1DBQueries: SELECT events grouped by tablesAccessed[0]; count>5
// AND a 2-second sliding window exceeds 5. Severity high.
func detectN1DBQueries(events []types.RuntimeEvent) []types.DetectedIssue {
	type entry struct {
		ts int64
		d  *types.DatabaseEvent
	}
	order := []string{}
	groups := map[string][]entry{}
	for _, e := range events {
		if e.EventType != types.EventDatabase || e.Database == nil || e.Database.Operation != types.DBSelect {
			continue
		}
		if len(e.Database.TablesAccessed) == 0 {
			continue
		}
		table := e.Database.TablesAccessed[0]
		if _, ok := groups[table]; !ok {
			order = append(order, table)
		}
		groups[table] = append(groups[table], entry{ts: e.Timestamp, d: e.Database})
	}

	var issues []types.DetectedIssue
	for _, table := range order {
		g := groups[table]
		if len(g) <= 5 {
			continue
		}
		sort.SliceStable(g, func(i, j int) bool { return g[i].ts < g[j].ts })
		timestamps := make([]int64, len(g))
		for i, entry := range g {
			timestamps[i] = entry.ts
		}
		if slidingWindowTriggers(timestamps, 5) < 0 {
			continue
		}
		evidence := make([]any, 0, 3)
		for i := 0; i < len(g) && i < 3; i++ {
			evidence = append(evidence, g[i].d)
		}
		issues = append(issues, types.DetectedIssue{
			ID:          "n1_db_queries:" + table,
			Pattern:     "n1_db_queries",
			Severity:    types.SeverityHigh,
			Title:       fmt.Sprintf("Possible N+1 query against %s", table),
			Description: fmt.Sprintf("%d SELECTs against %s within a short window", len(g), table),
			Evidence:    evidence,
			Suggestion:  "Use a join or dataloader to batch these reads.",
		})
	}
	return issues
}
