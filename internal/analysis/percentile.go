// percentile.go — Shared statistics helpers for the Issue Detector, API
// Discovery Engine, and Query Monitor (§4.5, §4.6, §4.7). Grounded on
// api_schema_builder.go's percentile helper, diverged to a nearest-rank
// formula (see DESIGN.md: the source version interpolates between ranks,
// which these detectors deliberately do not do).
package analysis

import "sort"

// percentile returns sorted[max(0, ceil(n*p/100)-1)], the nearest-rank value
// at percentile p (0-100). Returns 0 for empty input and for p<=0: the
// nearest-rank formula itself yields sorted[0] at p=0, which conflicts with
// the boundary case that percentile(sorted, 0) is 0 regardless of contents;
// the boundary case wins here. sorted must already be ascending.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 || p <= 0 {
		return 0
	}
	idx := int(ceilDiv(float64(n)*p, 100))
	idx--
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

func ceilDiv(numerator, denominator float64) float64 {
	q := numerator / denominator
	if q == float64(int64(q)) {
		return q
	}
	if q > 0 {
		return float64(int64(q)) + 1
	}
	return float64(int64(q))
}

func sortedFloats(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func maxFloat(values []float64) float64 {
	var m float64
	for i, v := range values {
		if i == 0 || v > m {
			m = v
		}
	}
	return m
}

func totalFloat(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// slidingWindowTriggers applies the 2-second sliding-window rule shared by
// the Issue Detector's n1_requests/n1_db_queries and the Query Monitor's
// detectN1Queries (§4.5 "Sliding-window rule", §4.7). timestamps must already
// be sorted ascending. Returns the index just past the triggering window
// (so callers may "advance past the window to avoid overlapping duplicates"
// per §4.7), or -1 if no window ever exceeds threshold.
func slidingWindowTriggers(timestamps []int64, threshold int) int {
	if len(timestamps) == 0 {
		return -1
	}
	windowStart := timestamps[0]
	windowCount := 1
	for i := 1; i < len(timestamps); i++ {
		if timestamps[i]-windowStart <= 2000 {
			windowCount++
		} else {
			windowStart = timestamps[i]
			windowCount = 1
		}
		if windowCount > threshold {
			return i + 1
		}
	}
	return -1
}
