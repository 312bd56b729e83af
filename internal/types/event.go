// event.go — RuntimeEvent tagged union: the wire-and-store representation of
// everything an SDK reports (network calls, console lines, render profiles,
// store updates, web vitals, database queries, session handshakes).
// Zero dependencies - foundational layer used by store, transport, and analysis.
//
// JSON CONVENTION: all fields use the SDK's camelCase wire format; the Go
// struct names stay idiomatic Go regardless of the field tags.
package types

// EventType discriminates a RuntimeEvent's variant.
type EventType string

const (
	EventNetwork     EventType = "network"
	EventConsole     EventType = "console"
	EventSession     EventType = "session"
	EventState       EventType = "state"
	EventRender      EventType = "render"
	EventPerformance EventType = "performance"
	EventDatabase    EventType = "database"
	EventDOMSnapshot EventType = "dom_snapshot"

	// EventScanResult marks the Periodic Scanner's synthetic, in-process-only
	// notification (never written to the wire protocol or Persistent Log).
	EventScanResult EventType = "scan_result"
)

// isReconType reports whether t is one of the "recon_*" opaque variants that
// the store ingests and round-trips verbatim.
func isReconType(t EventType) bool {
	return len(t) > 6 && string(t)[:6] == "recon_"
}

// KnownVariant reports whether t is a closed-set variant with typed fields,
// as opposed to an opaque dom_snapshot/recon_* payload.
func (t EventType) KnownVariant() bool {
	switch t {
	case EventNetwork, EventConsole, EventSession, EventState, EventRender, EventPerformance, EventDatabase:
		return true
	default:
		return false
	}
}

// Opaque reports whether t is a dom_snapshot or recon_* variant the core
// ingests without interpreting beyond url-based filtering.
func (t EventType) Opaque() bool {
	return t == EventDOMSnapshot || isReconType(t)
}

// RuntimeEvent is the tagged variant over every event kind an SDK emits.
// Every event carries the four header fields; exactly one of the typed
// payload fields below is populated, selected by EventType.
type RuntimeEvent struct {
	EventID   string    `json:"eventId"`
	SessionID string    `json:"sessionId"`
	Timestamp int64     `json:"timestamp"` // milliseconds since epoch
	EventType EventType `json:"eventType"`

	Network     *NetworkEvent     `json:"network,omitempty"`
	Console     *ConsoleEvent     `json:"console,omitempty"`
	Session     *SessionEvent     `json:"session,omitempty"`
	State       *StateEvent       `json:"state,omitempty"`
	Render      *RenderEvent      `json:"render,omitempty"`
	Performance *PerformanceEvent `json:"performance,omitempty"`
	Database    *DatabaseEvent    `json:"database,omitempty"`

	// Opaque carries dom_snapshot and recon_* payloads verbatim: the core
	// never interprets their shape beyond the Url field used for filtering.
	Opaque *OpaquePayload `json:"payload,omitempty"`
}

// Url returns the filterable URL for an opaque payload, or "" if absent.
// Typed variants expose their own URL through their payload struct.
func (e *RuntimeEvent) Url() string {
	switch e.EventType {
	case EventNetwork:
		if e.Network != nil {
			return e.Network.URL
		}
	default:
		if e.Opaque != nil {
			return e.Opaque.Url
		}
	}
	return ""
}

// ErrorPhase enumerates a failed network call's phase.
type ErrorPhase string

const (
	ErrorPhaseError   ErrorPhase = "error"
	ErrorPhaseAbort   ErrorPhase = "abort"
	ErrorPhaseTimeout ErrorPhase = "timeout"
)

// NetworkSource enumerates the instrumentation point that captured a request.
type NetworkSource string

const (
	NetworkFetch      NetworkSource = "fetch"
	NetworkXHR        NetworkSource = "xhr"
	NetworkNodeHTTP   NetworkSource = "node-http"
	NetworkNodeHTTPS  NetworkSource = "node-https"
)

// GraphQLOperationType enumerates a GraphQL operation kind.
type GraphQLOperationType string

const (
	GraphQLQuery        GraphQLOperationType = "query"
	GraphQLMutation     GraphQLOperationType = "mutation"
	GraphQLSubscription GraphQLOperationType = "subscription"
)

// GraphQLOperation identifies the GraphQL operation a network call carried,
// when the SDK could parse the request body as GraphQL.
type GraphQLOperation struct {
	Type GraphQLOperationType `json:"type"`
	Name string                `json:"name"`
}

// NetworkEvent captures one outbound HTTP (or GraphQL-over-HTTP) call.
type NetworkEvent struct {
	URL             string               `json:"url"`
	Method          string               `json:"method"`
	Status          int                  `json:"status"`
	RequestHeaders  map[string]string    `json:"requestHeaders,omitempty"`
	ResponseHeaders map[string]string    `json:"responseHeaders,omitempty"`
	RequestBodySize int                  `json:"requestBodySize"`
	ResponseBodySize int                 `json:"responseBodySize"`
	Duration        float64              `json:"duration"`
	TTFB            float64              `json:"ttfb"`
	RequestBody     string               `json:"requestBody,omitempty"`
	ResponseBody    string               `json:"responseBody,omitempty"`
	ErrorPhase      ErrorPhase           `json:"errorPhase,omitempty"`
	ErrorMessage    string               `json:"errorMessage,omitempty"`
	Source          NetworkSource        `json:"source,omitempty"`
	GraphQLOperation *GraphQLOperation   `json:"graphqlOperation,omitempty"`
}

// ConsoleLevel enumerates a console event's severity.
type ConsoleLevel string

const (
	ConsoleLog   ConsoleLevel = "log"
	ConsoleWarn  ConsoleLevel = "warn"
	ConsoleError ConsoleLevel = "error"
	ConsoleInfo  ConsoleLevel = "info"
	ConsoleDebug ConsoleLevel = "debug"
	ConsoleTrace ConsoleLevel = "trace"
)

// ConsoleEvent captures one console.* call from the instrumented app.
type ConsoleEvent struct {
	Level      ConsoleLevel `json:"level"`
	Message    string       `json:"message"`
	Args       []any        `json:"args,omitempty"`
	StackTrace string       `json:"stackTrace,omitempty"`
	SourceFile string       `json:"sourceFile,omitempty"`
}

// BuildMeta carries deploy provenance attached to a session handshake.
type BuildMeta struct {
	GitCommit string `json:"gitCommit,omitempty"`
	GitBranch string `json:"gitBranch,omitempty"`
	BuildTime string `json:"buildTime,omitempty"`
	DeployID  string `json:"deployId,omitempty"`
}

// SessionEvent announces (or re-announces) an SDK connection.
type SessionEvent struct {
	AppName     string     `json:"appName"`
	ConnectedAt int64      `json:"connectedAt"`
	SDKVersion  string     `json:"sdkVersion"`
	BuildMeta   *BuildMeta `json:"buildMeta,omitempty"`
}

// StateLibrary enumerates the client-state library a state event came from.
type StateLibrary string

const (
	StateZustand StateLibrary = "zustand"
	StateRedux   StateLibrary = "redux"
	StateUnknown StateLibrary = "unknown"
)

// StatePhase enumerates whether a state event is the store's initial value
// or a subsequent update.
type StatePhase string

const (
	StateInit   StatePhase = "init"
	StateUpdate StatePhase = "update"
)

// StateFieldDiff describes one changed field between previous and new state.
type StateFieldDiff struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// StateAction describes the action (Redux-style) that produced a state update.
type StateAction struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// StateEvent captures one client-side store init or update.
type StateEvent struct {
	StoreID       string                     `json:"storeId"`
	Library       StateLibrary               `json:"library"`
	Phase         StatePhase                 `json:"phase"`
	State         any                        `json:"state"`
	PreviousState any                        `json:"previousState,omitempty"`
	Diff          map[string]StateFieldDiff  `json:"diff,omitempty"`
	Action        *StateAction               `json:"action,omitempty"`
	StackTrace    string                     `json:"stackTrace,omitempty"`
}

// RenderPhase enumerates a component's last observed render phase.
type RenderPhase string

const (
	RenderMount   RenderPhase = "mount"
	RenderUpdate  RenderPhase = "update"
	RenderUnmount RenderPhase = "unmount"
)

// RenderCause enumerates why a component last re-rendered.
type RenderCause string

const (
	CauseProps   RenderCause = "props"
	CauseState   RenderCause = "state"
	CauseContext RenderCause = "context"
	CauseParent  RenderCause = "parent"
	CauseUnknown RenderCause = "unknown"
)

// RenderComponentProfile summarizes one component's render activity within
// a render event's snapshot window.
type RenderComponentProfile struct {
	ComponentName   string      `json:"componentName"`
	RenderCount     int         `json:"renderCount"`
	TotalDuration   float64     `json:"totalDuration"`
	AvgDuration     float64     `json:"avgDuration"`
	LastRenderPhase RenderPhase `json:"lastRenderPhase"`
	LastRenderCause RenderCause `json:"lastRenderCause"`
	RenderVelocity  float64     `json:"renderVelocity"` // renders/sec
	Suspicious      bool        `json:"suspicious"`
}

// RenderEvent captures a batch of component render profiles sampled over a
// window of wall-clock time.
type RenderEvent struct {
	Profiles             []RenderComponentProfile `json:"profiles"`
	SnapshotWindowMs      int64                    `json:"snapshotWindowMs"`
	TotalRenders          int                      `json:"totalRenders"`
	SuspiciousComponents  []string                 `json:"suspiciousComponents,omitempty"`
}

// PerformanceRating enumerates a web-vital's rating bucket.
type PerformanceRating string

const (
	RatingGood               PerformanceRating = "good"
	RatingNeedsImprovement    PerformanceRating = "needs-improvement"
	RatingPoor                PerformanceRating = "poor"
)

// PerformanceEvent captures one browser web-vital or server runtime metric.
type PerformanceEvent struct {
	MetricName string             `json:"metricName"`
	Value      float64            `json:"value"`
	Rating     PerformanceRating  `json:"rating,omitempty"`
	Unit       string             `json:"unit,omitempty"`
	Element    string             `json:"element,omitempty"`
	Entries    any                `json:"entries,omitempty"`
}

// DatabaseOperation enumerates the SQL-ish operation a database event ran.
type DatabaseOperation string

const (
	DBSelect DatabaseOperation = "SELECT"
	DBInsert DatabaseOperation = "INSERT"
	DBUpdate DatabaseOperation = "UPDATE"
	DBDelete DatabaseOperation = "DELETE"
	DBOther  DatabaseOperation = "OTHER"
)

// DatabaseSource enumerates the driver/ORM that reported a database event.
type DatabaseSource string

const (
	DBSourcePrisma       DatabaseSource = "prisma"
	DBSourceDrizzle      DatabaseSource = "drizzle"
	DBSourceKnex         DatabaseSource = "knex"
	DBSourcePG           DatabaseSource = "pg"
	DBSourceMySQL2       DatabaseSource = "mysql2"
	DBSourceBetterSQLite DatabaseSource = "better-sqlite3"
	DBSourceGeneric      DatabaseSource = "generic"
)

// DatabaseEvent captures one executed database statement.
type DatabaseEvent struct {
	Query           string            `json:"query"`
	NormalizedQuery string            `json:"normalizedQuery"`
	Duration        float64           `json:"duration"`
	RowsReturned    *int              `json:"rowsReturned,omitempty"`
	RowsAffected    *int              `json:"rowsAffected,omitempty"`
	TablesAccessed  []string          `json:"tablesAccessed,omitempty"`
	Operation       DatabaseOperation `json:"operation"`
	Source          DatabaseSource    `json:"source,omitempty"`
	Error           string            `json:"error,omitempty"`
	Label           string            `json:"label,omitempty"`
	StackTrace      string            `json:"stackTrace,omitempty"`
	Params          any               `json:"params,omitempty"`
}

// OpaquePayload holds a dom_snapshot or recon_* event body the core ingests
// and replays verbatim; Url is the only field the core ever filters on.
type OpaquePayload struct {
	Url  string         `json:"url,omitempty"`
	Body map[string]any `json:"-"`
}
