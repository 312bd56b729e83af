// connection.go — per-client WebSocket connection: the inbound state machine
// of §4.4 (PRE-AUTH -> REGISTERED) and the serialized write side that keeps
// the core from ever interleaving partial JSON frames onto one socket.
package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/devradar/devradar/internal/types"
)

// connState is a client connection's handshake stage.
type connState int

const (
	statePreAuth connState = iota
	stateRegistered
)

// connection owns one WebSocket, its write serialization, and the session it
// has (or has not yet) registered.
type connection struct {
	ws     *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	state     connState
	sessionID string
	project   string
}

func newConnection(ws *websocket.Conn, logger *zap.Logger) *connection {
	return &connection{ws: ws, logger: logger, state: statePreAuth}
}

// send writes env as a single WebSocket text frame. Callers from multiple
// goroutines (the read pump and outbound sendCommand) are serialized here so
// a connection's write side never interleaves partial frames.
func (c *connection) send(env types.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *connection) registered() (sessionID string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID, c.state == stateRegistered
}

// register transitions PRE-AUTH -> REGISTERED. A second handshake on an
// already-registered connection is accepted and simply overwrites the
// session/project (§4.4: "undefined behavior; implementation may ignore" —
// devradar chooses to honor the re-handshake rather than ignore it).
func (c *connection) register(sessionID, project string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
	c.project = project
	c.state = stateRegistered
}

func nowMillis() int64 { return time.Now().UnixMilli() }
