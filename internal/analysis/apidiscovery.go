// apidiscovery.go — API Discovery Engine (§4.6): URL normalization, service
// detection, auth detection, catalog refinement, contract inference, health,
// service map, and change detection. Grounded on api_contract.go's
// normalizeEndpoint (adapted from a 3-rule {id} normalizer to a 7-rule
// cascade) and api_schema_builder.go's auth/coverage builders.
package analysis

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tidwall/gjson"

	"github.com/devradar/devradar/internal/types"
	"github.com/devradar/devradar/internal/util"
)

var (
	uuidPattern     = regexp.MustCompile(`^(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	digitsPattern   = regexp.MustCompile(`^\d+$`)
	mongoIDPattern  = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
	hexPattern      = regexp.MustCompile(`^[0-9a-fA-F]{8,}$`)
	idLikePattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{20,}$`)
	tokenLikePattern = regexp.MustCompile(`^[A-Za-z0-9+/=_-]{16,}$`)
)

// normalizeSegment rewrites one path segment per §4.6's 7-rule cascade,
// applying the first matching rule.
func normalizeSegment(segment string) string {
	switch {
	case uuidPattern.MatchString(segment):
		return ":id"
	case digitsPattern.MatchString(segment):
		return ":id"
	case mongoIDPattern.MatchString(segment):
		return ":id"
	case hexPattern.MatchString(segment):
		return ":id"
	case idLikePattern.MatchString(segment):
		return ":id"
	case tokenLikePattern.MatchString(segment):
		return ":token"
	default:
		return segment
	}
}

// normalizeURL splits rawURL's path on "/" and normalizes each segment,
// returning (baseUrl, normalizedPath). A parse failure yields
// baseUrl="unknown" and the original url as the path, per §4.6.
func normalizeURL(rawURL string) (baseUrl, normalizedPath string) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "unknown", rawURL
	}
	segments := strings.Split(parsed.Path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		segments[i] = normalizeSegment(seg)
	}
	origin := util.ExtractOrigin(rawURL)
	if origin == "" {
		origin = parsed.Scheme + "://" + parsed.Host
	}
	return origin, strings.Join(segments, "/")
}

var serviceHostPatterns = []struct {
	pattern *regexp.Regexp
	name    string
}{
	{regexp.MustCompile(`(?i)supabase\.co$`), "Supabase"},
	{regexp.MustCompile(`(?i)workers\.dev$`), "Cloudflare Workers"},
	{regexp.MustCompile(`(?i)vercel\.app$`), "Vercel"},
	{regexp.MustCompile(`(?i)stripe\.com$`), "Stripe"},
	{regexp.MustCompile(`(?i)railway\.app$`), "Railway"},
	{regexp.MustCompile(`(?i)netlify\.app$`), "Netlify"},
	{regexp.MustCompile(`(?i)fly\.dev$`), "Fly.io"},
	{regexp.MustCompile(`(?i)onrender\.com$`), "Render"},
	{regexp.MustCompile(`(?i)github\.com$`), "GitHub"},
	{regexp.MustCompile(`(?i)openai\.com$`), "OpenAI"},
	{regexp.MustCompile(`(?i)anthropic\.com$`), "Anthropic"},
	{regexp.MustCompile(`(?i)clerk\.(com|dev|accounts\.dev)$`), "Clerk"},
	{regexp.MustCompile(`(?i)auth0\.com$`), "Auth0"},
	{regexp.MustCompile(`(?i)firebaseio\.com$|(?i)firebase(app|database)\.com$`), "Firebase"},
	{regexp.MustCompile(`(?i)amazonaws\.com$`), "AWS"},
	{regexp.MustCompile(`(?i)googleapis\.com$`), "Google APIs"},
	{regexp.MustCompile(`^(localhost|127\.0\.0\.1)$`), "Your API"},
}

// detectService maps a hostname to a human-readable service name (§4.6
// "Service detection").
func detectService(host string) string {
	host = strings.ToLower(host)
	for _, candidate := range serviceHostPatterns {
		if candidate.pattern.MatchString(host) {
			return candidate.name
		}
	}
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return strings.Join(parts[len(parts)-2:], ".")
	}
	return host
}

// detectAuth inspects requestHeaders for the authentication scheme in use
// (§4.6 "Auth detection"). Header name comparisons are case-insensitive.
func detectAuth(headers map[string]string) types.AuthShape {
	lower := make(map[string]string, len(headers))
	original := make(map[string]string, len(headers))
	for k, v := range headers {
		lk := strings.ToLower(k)
		lower[lk] = v
		original[lk] = k
	}

	if auth, ok := lower["authorization"]; ok {
		switch {
		case strings.HasPrefix(auth, "Bearer ") || strings.HasPrefix(strings.ToLower(auth), "bearer "):
			return types.AuthShape{Type: "bearer"}
		case strings.HasPrefix(strings.ToLower(auth), "basic "):
			return types.AuthShape{Type: "basic"}
		default:
			return types.AuthShape{Type: "api_key", HeaderName: original["authorization"]}
		}
	}
	for lk, orig := range original {
		if lk == "x-api-key" || strings.Contains(lk, "api-key") || strings.Contains(lk, "apikey") {
			return types.AuthShape{Type: "api_key", HeaderName: orig}
		}
	}
	if _, ok := lower["cookie"]; ok {
		return types.AuthShape{Type: "cookie"}
	}
	return types.AuthShape{Type: "none"}
}

// endpointAccum is the engine's mutable per-key accumulator, rebuilt fresh
// from the Event Store on every read (§3.3: "derived structures are
// ephemeral, rebuilt from the store on each query").
type endpointAccum struct {
	key              types.EndpointKey
	service          string
	callCount        int
	firstSeen        int64
	lastSeen         int64
	auth             types.AuthShape
	graphqlOperation *types.GraphQLOperation
	durations        []float64
	errorCount       int
	statusCodes      map[int]int
	recentBodies     []string // up to last 10 parseable JSON response bodies
}

// Engine is the API Discovery Engine: stateless over its inputs except for
// the refinement-pass memoization cache (§4.6 "Refinement pass
// memoization", §9).
type Engine struct {
	refinementCache *cache.Cache
}

// NewEngine constructs an Engine with a refinement cache that never expires
// entries on its own; callers invalidate explicitly on every network-event
// ingest by bumping the watermark they pass to GetCatalog.
func NewEngine() *Engine {
	return &Engine{refinementCache: cache.New(cache.NoExpiration, 10*time.Minute)}
}

func buildAccumulators(events []types.RuntimeEvent) map[types.EndpointKey]*endpointAccum {
	accs := map[types.EndpointKey]*endpointAccum{}
	for _, e := range events {
		if e.EventType != types.EventNetwork || e.Network == nil {
			continue
		}
		n := e.Network
		baseUrl, normalizedPath := normalizeURL(n.URL)
		key := types.EndpointKey{Method: strings.ToUpper(n.Method), NormalizedPath: normalizedPath, BaseUrl: baseUrl}
		a, ok := accs[key]
		if !ok {
			host := "unknown"
			if parsed, err := url.Parse(n.URL); err == nil {
				host = parsed.Host
			}
			a = &endpointAccum{
				key:         key,
				service:     detectService(host),
				firstSeen:   e.Timestamp,
				lastSeen:    e.Timestamp,
				auth:        detectAuth(n.RequestHeaders),
				statusCodes: map[int]int{},
			}
			accs[key] = a
		}
		a.callCount++
		a.lastSeen = e.Timestamp
		if e.Timestamp < a.firstSeen {
			a.firstSeen = e.Timestamp
		}
		a.durations = append(a.durations, n.Duration)
		a.statusCodes[n.Status]++
		if n.Status >= 400 {
			a.errorCount++
		}
		if n.GraphQLOperation != nil {
			a.graphqlOperation = n.GraphQLOperation
		}
		if n.ResponseBody != "" && gjson.Valid(n.ResponseBody) && len(a.recentBodies) < 10 {
			a.recentBodies = append(a.recentBodies, n.ResponseBody)
		}
	}
	return accs
}

// refine applies §4.6's refinement pass: within groups of >5 endpoints
// sharing (method, baseUrl, segmentCount), any segment position with >5
// distinct values across the group is rewritten to ":id", then duplicates
// created by the rewrite are merged.
func refine(accs map[types.EndpointKey]*endpointAccum) map[types.EndpointKey]*endpointAccum {
	type groupKey struct {
		method       string
		baseUrl      string
		segmentCount int
	}
	groups := map[groupKey][]*endpointAccum{}
	for _, a := range accs {
		segs := strings.Split(a.key.NormalizedPath, "/")
		gk := groupKey{method: a.key.Method, baseUrl: a.key.BaseUrl, segmentCount: len(segs)}
		groups[gk] = append(groups[gk], a)
	}

	rewritten := map[types.EndpointKey]*endpointAccum{}
	for gk, members := range groups {
		if len(members) <= 5 {
			for _, a := range members {
				rewritten[a.key] = a
			}
			continue
		}

		segmentValues := make([]map[string]bool, gk.segmentCount)
		for i := range segmentValues {
			segmentValues[i] = map[string]bool{}
		}
		splitPaths := make([][]string, len(members))
		for i, a := range members {
			splitPaths[i] = strings.Split(a.key.NormalizedPath, "/")
			for pos, seg := range splitPaths[i] {
				segmentValues[pos][seg] = true
			}
		}
		dynamicPositions := map[int]bool{}
		for pos, values := range segmentValues {
			if len(values) > 5 {
				dynamicPositions[pos] = true
			}
		}

		for i, a := range members {
			segs := append([]string(nil), splitPaths[i]...)
			for pos := range dynamicPositions {
				segs[pos] = ":id"
			}
			newKey := types.EndpointKey{Method: a.key.Method, BaseUrl: a.key.BaseUrl, NormalizedPath: strings.Join(segs, "/")}
			if existing, ok := rewritten[newKey]; ok {
				mergeAccum(existing, a)
			} else {
				a.key = newKey
				rewritten[newKey] = a
			}
		}
	}
	return rewritten
}

func mergeAccum(dst, src *endpointAccum) {
	dst.callCount += src.callCount
	if src.firstSeen < dst.firstSeen {
		dst.firstSeen = src.firstSeen
	}
	if src.lastSeen > dst.lastSeen {
		dst.lastSeen = src.lastSeen
	}
	dst.errorCount += src.errorCount
	dst.durations = append(dst.durations, src.durations...)
	for status, n := range src.statusCodes {
		dst.statusCodes[status] += n
	}
	if dst.graphqlOperation == nil {
		dst.graphqlOperation = src.graphqlOperation
	}
	remaining := 10 - len(dst.recentBodies)
	if remaining > 0 {
		if remaining > len(src.recentBodies) {
			remaining = len(src.recentBodies)
		}
		dst.recentBodies = append(dst.recentBodies, src.recentBodies[:remaining]...)
	}
}

// GetCatalog rebuilds the endpoint catalog from events, applies the
// refinement pass, and returns endpoints sorted by callCount desc.
// watermark identifies the event-count snapshot events was built from; the
// refined (unfiltered) catalog is memoized under (watermark, hash of the
// event set's method-path pairs) so repeated catalog, health, and
// service-map reads between ingests skip the refinement pass (§4.6
// "Refinement pass memoization", §9). The Engine is shared across sessions,
// so the hash is required, not optional: watermark alone collides whenever
// two sessions' timelines happen to share a length. Callers bump watermark
// on every addEvent of a network event.
func (eng *Engine) GetCatalog(events []types.RuntimeEvent, urlFilter string, watermark int64) []types.ApiEndpoint {
	full := eng.refinedCatalog(events, watermark)
	if urlFilter == "" {
		return full
	}
	out := make([]types.ApiEndpoint, 0, len(full))
	for _, e := range full {
		if strings.Contains(strings.ToLower(e.NormalizedPath), strings.ToLower(urlFilter)) {
			out = append(out, e)
		}
	}
	return out
}

// methodPathSetHash hashes the (method, url) pairs of every network event in
// events into a single uint64, order-independent. The Engine is a shared
// singleton across sessions (§9), so the watermark alone is not a unique
// cache key: two sessions whose timelines happen to be the same length would
// otherwise collide and one would be served the other's catalog. Folding in
// this hash makes the key unique to the actual event set, not just its size.
func methodPathSetHash(events []types.RuntimeEvent) uint64 {
	var sum uint64
	h := fnv.New64a()
	for _, e := range events {
		if e.EventType != types.EventNetwork || e.Network == nil {
			continue
		}
		h.Reset()
		_, _ = h.Write([]byte(strings.ToUpper(e.Network.Method)))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(e.Network.URL))
		sum += h.Sum64()
	}
	return sum
}

func (eng *Engine) refinedCatalog(events []types.RuntimeEvent, watermark int64) []types.ApiEndpoint {
	cacheKey := fmt.Sprintf("%d:%x", watermark, methodPathSetHash(events))
	if cached, ok := eng.refinementCache.Get(cacheKey); ok {
		return cached.([]types.ApiEndpoint)
	}

	accs := refine(buildAccumulators(events))
	out := make([]types.ApiEndpoint, 0, len(accs))
	for _, a := range accs {
		out = append(out, types.ApiEndpoint{
			Method:           a.key.Method,
			NormalizedPath:   a.key.NormalizedPath,
			BaseUrl:          a.key.BaseUrl,
			Service:          a.service,
			CallCount:        a.callCount,
			FirstSeen:        a.firstSeen,
			LastSeen:         a.lastSeen,
			Auth:             a.auth,
			Contract:         inferContract(a.recentBodies),
			GraphQLOperation: a.graphqlOperation,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CallCount > out[j].CallCount })

	eng.refinementCache.Set(cacheKey, out, cache.DefaultExpiration)
	return out
}

// inferContract walks up to the last 10 parseable JSON response bodies with
// gjson, recording path -> {types, nullable, example} (§4.6 "Contract
// inference").
func inferContract(bodies []string) []types.ContractField {
	if len(bodies) == 0 {
		return nil
	}
	type fieldAccum struct {
		types    map[string]bool
		nullable bool
		example  any
		order    int
	}
	fields := map[string]*fieldAccum{}
	order := 0

	var walk func(prefix string, value gjson.Result)
	walk = func(prefix string, value gjson.Result) {
		typeName, nullable := gjsonType(value)
		f, ok := fields[prefix]
		if !ok {
			order++
			f = &fieldAccum{types: map[string]bool{}, order: order}
			fields[prefix] = f
		}
		f.types[typeName] = true
		if nullable {
			f.nullable = true
		}
		if f.example == nil {
			f.example = value.Value()
		}

		switch {
		case value.IsArray():
			f.example = fmt.Sprintf("[%d items]", len(value.Array()))
			if elems := value.Array(); len(elems) > 0 && elems[0].IsObject() {
				elems[0].ForEach(func(key, v gjson.Result) bool {
					walk(prefix+".0."+key.String(), v)
					return true
				})
			}
		case value.IsObject():
			value.ForEach(func(key, v gjson.Result) bool {
				childPrefix := key.String()
				if prefix != "" {
					childPrefix = prefix + "." + key.String()
				}
				walk(childPrefix, v)
				return true
			})
		}
	}

	for _, body := range bodies {
		root := gjson.Parse(body)
		if root.IsObject() {
			root.ForEach(func(key, v gjson.Result) bool {
				walk(key.String(), v)
				return true
			})
		} else {
			walk("", root)
		}
	}

	paths := make([]string, 0, len(fields))
	for path := range fields {
		paths = append(paths, path)
	}
	sort.SliceStable(paths, func(i, j int) bool { return fields[paths[i]].order < fields[paths[j]].order })

	out := make([]types.ContractField, 0, len(paths))
	for _, path := range paths {
		f := fields[path]
		typeNames := make([]string, 0, len(f.types))
		for t := range f.types {
			typeNames = append(typeNames, t)
		}
		sort.Strings(typeNames)
		out = append(out, types.ContractField{
			Path:     path,
			Type:     strings.Join(typeNames, " | "),
			Nullable: f.nullable,
			Example:  f.example,
		})
	}
	return out
}

func gjsonType(v gjson.Result) (typeName string, nullable bool) {
	switch v.Type {
	case gjson.Null:
		return "null", true
	case gjson.False, gjson.True:
		return "boolean", false
	case gjson.Number:
		return "number", false
	case gjson.String:
		return "string", false
	default:
		if v.IsArray() {
			return "array", false
		}
		if v.IsObject() {
			return "object", false
		}
		return "unknown", false
	}
}

// EndpointHealth is the per-endpoint health snapshot (§4.6 "Health").
type EndpointHealth struct {
	Key         types.EndpointKey `json:"key"`
	CallCount   int               `json:"callCount"`
	SuccessRate float64           `json:"successRate"`
	ErrorRate   float64           `json:"errorRate"`
	AvgLatency  float64           `json:"avgLatency"`
	P50Latency  float64           `json:"p50Latency"`
	P95Latency  float64           `json:"p95Latency"`
	ErrorCodes  map[int]int       `json:"errorCodes"`
}

// GetHealth computes per-endpoint health across events.
func (eng *Engine) GetHealth(events []types.RuntimeEvent) []EndpointHealth {
	accs := refine(buildAccumulators(events))
	out := make([]EndpointHealth, 0, len(accs))
	for _, a := range accs {
		sorted := sortedFloats(a.durations)
		errorCodes := map[int]int{}
		for status, n := range a.statusCodes {
			if status >= 400 {
				errorCodes[status] = n
			}
		}
		errorRate := 0.0
		if a.callCount > 0 {
			errorRate = float64(a.errorCount) / float64(a.callCount)
		}
		out = append(out, EndpointHealth{
			Key:         a.key,
			CallCount:   a.callCount,
			SuccessRate: 1 - errorRate,
			ErrorRate:   errorRate,
			AvgLatency:  mean(a.durations),
			P50Latency:  percentile(sorted, 50),
			P95Latency:  percentile(sorted, 95),
			ErrorCodes:  errorCodes,
		})
	}
	return out
}

// ServiceSummary aggregates endpoints belonging to the same detected service
// (§4.6 "Service map").
type ServiceSummary struct {
	Service      string   `json:"service"`
	EndpointKeys []string `json:"endpointKeys"`
	TotalCalls   int      `json:"totalCalls"`
	TotalErrors  int      `json:"totalErrors"`
	TotalLatency float64  `json:"totalLatency"`
	Auth         types.AuthShape `json:"auth"`
}

// GetServiceMap aggregates the catalog by detected service.
func (eng *Engine) GetServiceMap(events []types.RuntimeEvent) []ServiceSummary {
	accs := refine(buildAccumulators(events))
	order := []string{}
	summaries := map[string]*ServiceSummary{}
	for _, a := range accs {
		s, ok := summaries[a.service]
		if !ok {
			s = &ServiceSummary{Service: a.service, Auth: a.auth}
			summaries[a.service] = s
			order = append(order, a.service)
		}
		s.EndpointKeys = append(s.EndpointKeys, endpointKeyString(a.key))
		s.TotalCalls += a.callCount
		s.TotalErrors += a.errorCount
		s.TotalLatency += totalFloat(a.durations)
	}
	out := make([]ServiceSummary, 0, len(order))
	for _, name := range order {
		out = append(out, *summaries[name])
	}
	return out
}

func endpointKeyString(k types.EndpointKey) string {
	return fmt.Sprintf("%s %s%s", k.Method, k.BaseUrl, k.NormalizedPath)
}

// FieldChange is one field-shape change detected between two sessions'
// catalogs (§4.6 "Change detection").
type FieldChange struct {
	Path    string `json:"path"`
	Change  string `json:"change"` // added | removed | type_changed
	OldType string `json:"oldType,omitempty"`
	NewType string `json:"newType,omitempty"`
}

// EndpointChange is one catalog-key classification between sessionA and
// sessionB (§4.6 "Change detection").
type EndpointChange struct {
	Key          types.EndpointKey `json:"key"`
	Change       string            `json:"change"` // added | removed | modified
	FieldChanges []FieldChange     `json:"fieldChanges,omitempty"`
}

// GetApiChanges classifies every endpoint key seen in eventsA or eventsB.
func (eng *Engine) GetApiChanges(eventsA, eventsB []types.RuntimeEvent) []EndpointChange {
	a := eng.GetCatalog(eventsA, "", int64(len(eventsA)))
	b := eng.GetCatalog(eventsB, "", int64(len(eventsB)))
	byKeyA := map[types.EndpointKey]types.ApiEndpoint{}
	byKeyB := map[types.EndpointKey]types.ApiEndpoint{}
	for _, e := range a {
		byKeyA[types.EndpointKey{Method: e.Method, NormalizedPath: e.NormalizedPath, BaseUrl: e.BaseUrl}] = e
	}
	for _, e := range b {
		byKeyB[types.EndpointKey{Method: e.Method, NormalizedPath: e.NormalizedPath, BaseUrl: e.BaseUrl}] = e
	}

	keys := map[types.EndpointKey]bool{}
	for k := range byKeyA {
		keys[k] = true
	}
	for k := range byKeyB {
		keys[k] = true
	}

	var out []EndpointChange
	for k := range keys {
		before, inA := byKeyA[k]
		after, inB := byKeyB[k]
		switch {
		case inA && !inB:
			out = append(out, EndpointChange{Key: k, Change: "removed"})
		case !inA && inB:
			out = append(out, EndpointChange{Key: k, Change: "added"})
		default:
			if fieldChanges := diffContracts(before.Contract, after.Contract); len(fieldChanges) > 0 {
				out = append(out, EndpointChange{Key: k, Change: "modified", FieldChanges: fieldChanges})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return endpointKeyString(out[i].Key) < endpointKeyString(out[j].Key) })
	return out
}

func diffContracts(before, after []types.ContractField) []FieldChange {
	beforeByPath := map[string]types.ContractField{}
	for _, f := range before {
		beforeByPath[f.Path] = f
	}
	afterByPath := map[string]types.ContractField{}
	for _, f := range after {
		afterByPath[f.Path] = f
	}

	var changes []FieldChange
	for path, b := range beforeByPath {
		a, ok := afterByPath[path]
		if !ok {
			changes = append(changes, FieldChange{Path: path, Change: "removed", OldType: b.Type})
			continue
		}
		if a.Type != b.Type {
			changes = append(changes, FieldChange{Path: path, Change: "type_changed", OldType: b.Type, NewType: a.Type})
		}
	}
	for path, a := range afterByPath {
		if _, ok := beforeByPath[path]; !ok {
			changes = append(changes, FieldChange{Path: path, Change: "added", NewType: a.Type})
		}
	}
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

// DetectEngineIssues produces the three engine-level issues §4.6 names
// (api_degradation, high_latency_endpoint, auth_inconsistency).
func (eng *Engine) DetectEngineIssues(events []types.RuntimeEvent) []types.DetectedIssue {
	health := eng.GetHealth(events)
	var issues []types.DetectedIssue
	for _, h := range health {
		if h.CallCount >= 3 && h.ErrorRate > 0.5 {
			issues = append(issues, types.DetectedIssue{
				ID:          "api_degradation:" + endpointKeyString(h.Key),
				Pattern:     "api_degradation",
				Severity:    types.SeverityMedium,
				Title:       fmt.Sprintf("%s is degraded", endpointKeyString(h.Key)),
				Description: fmt.Sprintf("error rate %.0f%% over %d calls", h.ErrorRate*100, h.CallCount),
				Evidence:    []any{h},
				Suggestion:  "Investigate the failing calls for this endpoint.",
			})
		}
		if h.CallCount >= 3 && h.P95Latency > 5000 {
			issues = append(issues, types.DetectedIssue{
				ID:          "high_latency_endpoint:" + endpointKeyString(h.Key),
				Pattern:     "high_latency_endpoint",
				Severity:    types.SeverityMedium,
				Title:       fmt.Sprintf("%s is slow", endpointKeyString(h.Key)),
				Description: fmt.Sprintf("p95 latency %.0fms over %d calls", h.P95Latency, h.CallCount),
				Evidence:    []any{h},
				Suggestion:  "Profile this endpoint's handler and upstream dependencies.",
			})
		}
	}

	serviceAuth := map[string]map[string]bool{}
	order := []string{}
	accs := refine(buildAccumulators(events))
	for _, a := range accs {
		set, ok := serviceAuth[a.service]
		if !ok {
			set = map[string]bool{}
			serviceAuth[a.service] = set
			order = append(order, a.service)
		}
		set[a.auth.Type] = true
	}
	for _, service := range order {
		set := serviceAuth[service]
		nonNone := map[string]bool{}
		for t := range set {
			if t != "none" {
				nonNone[t] = true
			}
		}
		if len(nonNone) >= 2 {
			issues = append(issues, types.DetectedIssue{
				ID:          "auth_inconsistency:" + service,
				Pattern:     "auth_inconsistency",
				Severity:    types.SeverityMedium,
				Title:       fmt.Sprintf("%s uses inconsistent auth", service),
				Description: fmt.Sprintf("%s calls use more than one authentication scheme", service),
				Suggestion:  "Standardize on a single auth mechanism for this service.",
			})
		}
	}
	return issues
}
