// querymon.go — Query Monitor (§4.7): pure functions over database events
// for aggregate stats, N+1 detection, slow-query detection, index
// suggestions, and overfetch detection. Grounded on
// thirdparty_reputation.go's grouping style, adapted from reputation
// scoring to SQL statement analysis.
package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/devradar/devradar/internal/types"
)

var (
	whereColumnPattern   = regexp.MustCompile("(?i)WHERE\\s+.*?[\"'`]?(\\w+)[\"'`]?\\s*(=|>|<|>=|<=|!=|LIKE|IN|IS)\\s")
	orderByColumnPattern = regexp.MustCompile("(?i)ORDER\\s+BY\\s+[\"'`]?(\\w+)[\"'`]?")
	selectStarPattern    = regexp.MustCompile(`(?i)SELECT\s+\*`)
)

func databaseEvents(events []types.RuntimeEvent) []*types.DatabaseEvent {
	var out []*types.DatabaseEvent
	for _, e := range events {
		if e.EventType == types.EventDatabase && e.Database != nil {
			out = append(out, e.Database)
		}
	}
	return out
}

// AggregateQueryStats groups database events by normalizedQuery, sorted by
// totalDuration desc.
func AggregateQueryStats(events []types.RuntimeEvent) []types.NormalizedQueryStats {
	order := []string{}
	type accum struct {
		tables      map[string]bool
		operation   types.DatabaseOperation
		durations   []float64
		rowsSum     float64
		rowsCount   int
	}
	accs := map[string]*accum{}
	for _, d := range databaseEvents(events) {
		a, ok := accs[d.NormalizedQuery]
		if !ok {
			a = &accum{tables: map[string]bool{}, operation: d.Operation}
			accs[d.NormalizedQuery] = a
			order = append(order, d.NormalizedQuery)
		}
		for _, t := range d.TablesAccessed {
			a.tables[t] = true
		}
		a.durations = append(a.durations, d.Duration)
		if d.RowsReturned != nil {
			a.rowsSum += float64(*d.RowsReturned)
			a.rowsCount++
		}
	}

	out := make([]types.NormalizedQueryStats, 0, len(order))
	for _, q := range order {
		a := accs[q]
		tables := make([]string, 0, len(a.tables))
		for t := range a.tables {
			tables = append(tables, t)
		}
		sort.Strings(tables)
		sorted := sortedFloats(a.durations)
		avgRows := 0.0
		if a.rowsCount > 0 {
			avgRows = a.rowsSum / float64(a.rowsCount)
		}
		out = append(out, types.NormalizedQueryStats{
			NormalizedQuery: q,
			Tables:          tables,
			Operation:       a.operation,
			CallCount:       len(a.durations),
			AvgDuration:     mean(a.durations),
			MaxDuration:     maxFloat(a.durations),
			P95Duration:     percentile(sorted, 95),
			TotalDuration:   totalFloat(a.durations),
			AvgRowsReturned: avgRows,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalDuration > out[j].TotalDuration })
	return out
}

// DetectN1Queries groups SELECT events by each accessed table, applies the
// 2-second sliding window with a >5 threshold, and advances past each
// triggering window to avoid overlapping duplicate issues (§4.7). Grouping
// reads timestamps off the owning RuntimeEvent, since DatabaseEvent itself
// carries none.
func DetectN1Queries(events []types.RuntimeEvent) []types.DetectedIssue {
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
		for _, table := range e.Database.TablesAccessed {
			if _, ok := groups[table]; !ok {
				order = append(order, table)
			}
			groups[table] = append(groups[table], entry{ts: e.Timestamp, d: e.Database})
		}
	}

	var issues []types.DetectedIssue
	for _, table := range order {
		g := groups[table]
		sort.SliceStable(g, func(i, j int) bool { return g[i].ts < g[j].ts })

		start := 0
		for start < len(g) {
			remaining := g[start:]
			if len(remaining) <= 5 {
				break
			}
			timestamps := make([]int64, len(remaining))
			for i, entry := range remaining {
				timestamps[i] = entry.ts
			}
			triggerOffset := slidingWindowTriggers(timestamps, 5)
			if triggerOffset < 0 {
				break
			}
			evidence := make([]any, 0, 3)
			for i := 0; i < triggerOffset && i < 3; i++ {
				evidence = append(evidence, remaining[i].d)
			}
			issues = append(issues, types.DetectedIssue{
				ID:          fmt.Sprintf("n1_queries:%s:%d", table, start),
				Pattern:     "n1_queries",
				Severity:    types.SeverityHigh,
				Title:       fmt.Sprintf("Possible N+1 query against %s", table),
				Description: fmt.Sprintf("%d SELECTs against %s within a 2-second window", triggerOffset, table),
				Evidence:    evidence,
				Suggestion:  "Use a join or dataloader to batch these reads.",
			})
			start += triggerOffset
		}
	}
	return issues
}

// DetectSlowQueries emits one issue per unique normalizedQuery among events
// with duration >= threshold; severity high if duration>2000 else medium.
func DetectSlowQueries(events []types.RuntimeEvent, threshold float64) []types.DetectedIssue {
	seen := map[string]bool{}
	order := []string{}
	slowest := map[string]*types.DatabaseEvent{}
	for _, d := range databaseEvents(events) {
		if d.Duration < threshold {
			continue
		}
		if seen[d.NormalizedQuery] {
			if d.Duration > slowest[d.NormalizedQuery].Duration {
				slowest[d.NormalizedQuery] = d
			}
			continue
		}
		seen[d.NormalizedQuery] = true
		order = append(order, d.NormalizedQuery)
		slowest[d.NormalizedQuery] = d
	}

	var issues []types.DetectedIssue
	for _, q := range order {
		d := slowest[q]
		severity := types.SeverityMedium
		if d.Duration > 2000 {
			severity = types.SeverityHigh
		}
		issues = append(issues, types.DetectedIssue{
			ID:          "slow_queries:" + q,
			Pattern:     "slow_queries",
			Severity:    severity,
			Title:       "Slow database query",
			Description: fmt.Sprintf("%s took %.0fms", q, d.Duration),
			Evidence:    []any{d},
			Suggestion:  "See suggestIndexes for candidate indexes on this query's WHERE/ORDER BY columns.",
		})
	}
	return issues
}

// IndexSuggestion is one suggestIndexes output (§4.7).
type IndexSuggestion struct {
	Table            string   `json:"table"`
	Columns          []string `json:"columns"`
	EstimatedImpact  string   `json:"estimatedImpact"` // high | medium | low
	SampleQuery      string   `json:"sampleQuery"`
}

// SuggestIndexes extracts WHERE/ORDER BY column candidates from events with
// duration>=100ms and proposes one suggestion per (table, sorted columns).
func SuggestIndexes(events []types.RuntimeEvent) []IndexSuggestion {
	order := []string{}
	seen := map[string]bool{}
	samples := map[string]string{}
	impacts := map[string]string{}
	columnsByKey := map[string][]string{}

	for _, d := range databaseEvents(events) {
		if d.Duration < 100 {
			continue
		}
		columns := extractColumns(d.Query)
		if len(columns) == 0 {
			continue
		}
		impact := "low"
		switch {
		case d.Duration > 1000:
			impact = "high"
		case d.Duration > 300:
			impact = "medium"
		}
		for _, table := range d.TablesAccessed {
			sorted := append([]string(nil), columns...)
			sort.Strings(sorted)
			key := table + ":" + strings.Join(sorted, ",")
			if seen[key] {
				continue
			}
			seen[key] = true
			order = append(order, key)
			columnsByKey[key] = sorted
			samples[key] = d.Query
			impacts[key] = impact
		}
	}

	out := make([]IndexSuggestion, 0, len(order))
	for _, key := range order {
		table := key[:strings.Index(key, ":")]
		out = append(out, IndexSuggestion{
			Table:           table,
			Columns:         columnsByKey[key],
			EstimatedImpact: impacts[key],
			SampleQuery:     samples[key],
		})
	}
	return out
}

func extractColumns(query string) []string {
	seen := map[string]bool{}
	var columns []string
	for _, m := range whereColumnPattern.FindAllStringSubmatch(query, -1) {
		col := m[1]
		if !seen[col] {
			seen[col] = true
			columns = append(columns, col)
		}
	}
	for _, m := range orderByColumnPattern.FindAllStringSubmatch(query, -1) {
		col := m[1]
		if !seen[col] {
			seen[col] = true
			columns = append(columns, col)
		}
	}
	return columns
}

// DetectOverfetching finds SELECT * queries returning more than 100 rows,
// deduped by normalizedQuery; severity high if rows>1000 else medium.
func DetectOverfetching(events []types.RuntimeEvent) []types.DetectedIssue {
	seen := map[string]bool{}
	order := []string{}
	worst := map[string]*types.DatabaseEvent{}
	for _, d := range databaseEvents(events) {
		if d.Operation != types.DBSelect || !selectStarPattern.MatchString(d.Query) {
			continue
		}
		if d.RowsReturned == nil || *d.RowsReturned <= 100 {
			continue
		}
		if seen[d.NormalizedQuery] {
			if *d.RowsReturned > *worst[d.NormalizedQuery].RowsReturned {
				worst[d.NormalizedQuery] = d
			}
			continue
		}
		seen[d.NormalizedQuery] = true
		order = append(order, d.NormalizedQuery)
		worst[d.NormalizedQuery] = d
	}

	var issues []types.DetectedIssue
	for _, q := range order {
		d := worst[q]
		severity := types.SeverityMedium
		if *d.RowsReturned > 1000 {
			severity = types.SeverityHigh
		}
		issues = append(issues, types.DetectedIssue{
			ID:          "overfetching:" + q,
			Pattern:     "overfetching",
			Severity:    severity,
			Title:       "Overfetching with SELECT *",
			Description: fmt.Sprintf("%s returned %d rows", q, *d.RowsReturned),
			Evidence:    []any{d},
			Suggestion:  "Select only the columns this code path actually uses.",
		})
	}
	return issues
}
