package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport delivers events to one client. Implementations must tolerate
// concurrent Send calls.
type Transport interface {
	Send(event Event) error
	Close() error
}

// Metadata identifies a connected client.
type Metadata struct {
	PlayerID            string    `json:"playerId,omitempty"`
	IsGM                bool      `json:"isGM"`
	ControlledEntityIDs []string  `json:"controlledEntityIds"`
	ConnectedAt         time.Time `json:"connectedAt"`
}

// Conn is one attached client. The session loop owns all fields after
// attachment.
type Conn struct {
	ID        string
	Meta      Metadata
	transport Transport
}

func (c *Conn) send(event Event) error {
	return c.transport.Send(event)
}

func (c *Conn) controls(entityID string) bool {
	for _, id := range c.Meta.ControlledEntityIDs {
		if id == entityID {
			return true
		}
	}
	return false
}

// wsTransport adapts a gorilla websocket connection. Gorilla permits a
// single concurrent writer, so sends serialize on a mutex.
type wsTransport struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// writeWait bounds a single frame write.
const writeWait = 10 * time.Second

// NewWebsocketTransport wraps a websocket connection as a session transport.
func NewWebsocketTransport(ws *websocket.Conn) Transport {
	return &wsTransport{ws: ws}
}

func (t *wsTransport) Send(event Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := t.ws.WriteJSON(event); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	deadline := time.Now().Add(writeWait)
	_ = t.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return t.ws.Close()
}
