// wire.go — RuntimeEvent wire codec: the SDK sends one flat JSON object per
// event (header fields and variant fields as siblings, not nested); this
// file implements the tagged-union Marshal/Unmarshal that maps that flat
// shape onto the typed RuntimeEvent in event.go.
package types

import "encoding/json"

type runtimeEventHeader struct {
	EventID   string    `json:"eventId"`
	SessionID string    `json:"sessionId"`
	Timestamp int64     `json:"timestamp"`
	EventType EventType `json:"eventType"`
}

// UnmarshalJSON decodes a flat wire event into the appropriate typed variant.
// Unknown eventType strings are accepted into Opaque rather than rejected,
// so the ring faithfully replays events to observers that understand newer
// variants (Design Notes §9).
func (e *RuntimeEvent) UnmarshalJSON(data []byte) error {
	var hdr runtimeEventHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return err
	}
	e.EventID = hdr.EventID
	e.SessionID = hdr.SessionID
	e.Timestamp = hdr.Timestamp
	e.EventType = hdr.EventType

	switch hdr.EventType {
	case EventNetwork:
		var v NetworkEvent
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		e.Network = &v
	case EventConsole:
		var v ConsoleEvent
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		e.Console = &v
	case EventSession:
		var v SessionEvent
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		e.Session = &v
	case EventState:
		var v StateEvent
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		e.State = &v
	case EventRender:
		var v RenderEvent
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		e.Render = &v
	case EventPerformance:
		var v PerformanceEvent
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		e.Performance = &v
	case EventDatabase:
		var v DatabaseEvent
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		e.Database = &v
	default:
		// dom_snapshot, recon_*, and anything else unknown: keep verbatim.
		var body map[string]any
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		url, _ := body["url"].(string)
		e.Opaque = &OpaquePayload{Url: url, Body: body}
	}
	return nil
}

// MarshalJSON re-flattens the typed variant back into a single wire object.
func (e RuntimeEvent) MarshalJSON() ([]byte, error) {
	merged := map[string]any{
		"eventId":   e.EventID,
		"sessionId": e.SessionID,
		"timestamp": e.Timestamp,
		"eventType": e.EventType,
	}

	var variant any
	switch {
	case e.Network != nil:
		variant = e.Network
	case e.Console != nil:
		variant = e.Console
	case e.Session != nil:
		variant = e.Session
	case e.State != nil:
		variant = e.State
	case e.Render != nil:
		variant = e.Render
	case e.Performance != nil:
		variant = e.Performance
	case e.Database != nil:
		variant = e.Database
	}

	if variant != nil {
		raw, err := json.Marshal(variant)
		if err != nil {
			return nil, err
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			merged[k] = v
		}
	} else if e.Opaque != nil {
		for k, v := range e.Opaque.Body {
			merged[k] = v
		}
	}

	return json.Marshal(merged)
}

// ============================================
// Envelope (§6.1)
// ============================================

// EnvelopeType discriminates a wire envelope's message kind.
type EnvelopeType string

const (
	EnvelopeHandshake        EnvelopeType = "handshake"
	EnvelopeEvent            EnvelopeType = "event"
	EnvelopeHeartbeat        EnvelopeType = "heartbeat"
	EnvelopeCommand          EnvelopeType = "command"
	EnvelopeCommandResponse  EnvelopeType = "command_response"
)

// Envelope is the single JSON object every WebSocket message carries.
type Envelope struct {
	Type      EnvelopeType    `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
	SessionID string          `json:"sessionId"`
}

// HandshakePayload is the payload of a "handshake" envelope.
type HandshakePayload struct {
	AppName    string `json:"appName"`
	SDKVersion string `json:"sdkVersion"`
	SessionID  string `json:"sessionId"`
}

// EventBatchPayload is the payload of an "event" envelope.
type EventBatchPayload struct {
	Events []RuntimeEvent `json:"events"`
}

// CommandPayload is the payload of a server->SDK "command" envelope.
type CommandPayload struct {
	Command   string          `json:"command"`
	RequestID string          `json:"requestId"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// CommandResponsePayload is the payload of an SDK->server "command_response".
// The command-defined result lives in Result; RequestID/Command duplicate the
// correlation fields so the envelope is self-describing to observers.
type CommandResponsePayload struct {
	RequestID string          `json:"requestId"`
	Command   string          `json:"command"`
	Result    json.RawMessage `json:"payload"`
}

// Recognized outbound command names (§6.1).
const (
	CmdCaptureDOMSnapshot        = "capture_dom_snapshot"
	CmdCapturePerformanceMetrics = "capture_performance_metrics"
	CmdClearRenders              = "clear_renders"
	CmdReconScan                 = "recon_scan"
	CmdReconComputedStyles       = "recon_computed_styles"
	CmdReconElementSnapshot      = "recon_element_snapshot"
	CmdReconLayoutTree           = "recon_layout_tree"
)
