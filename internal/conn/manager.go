// Package conn owns the websocket session to the remote renderer: connect,
// send, receive, detect closure, and reconnect with backoff. Viewport and
// parameter state is replayed through the scheduler on every connect, so
// nothing needs to be queued while the link is down.
package conn

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fractal-desktop/internal/protocol"
	"fractal-desktop/internal/tiles"
)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

// Config contains connection settings.
type Config struct {
	URL              string
	TileSize         int
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Backoff          *Backoff
}

// Manager runs the reconnect loop and routes inbound messages. There is no
// terminal state while the session is alive: it always retries.
type Manager struct {
	cfg    Config
	dialer *websocket.Dialer

	mu     sync.Mutex
	state  State
	ws     *websocket.Conn
	frameW int // canvas dims of the last sent request, used to
	frameH int // interpret binary full-frame buffers

	onTile      func(*protocol.TileMessage)
	onFullFrame func(*protocol.FullFrame)
	onConnected func()
}

// New creates a connection manager for the given endpoint.
func New(cfg Config) *Manager {
	if cfg.TileSize <= 0 {
		cfg.TileSize = tiles.DefaultTileSize
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Backoff == nil {
		cfg.Backoff = DefaultBackoff()
	}
	return &Manager{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// SetOnTile registers the handler for decoded inbound tiles.
func (m *Manager) SetOnTile(f func(*protocol.TileMessage)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTile = f
}

// SetOnFullFrame registers the handler for inbound full-frame buffers.
func (m *Manager) SetOnFullFrame(f func(*protocol.FullFrame)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFullFrame = f
}

// SetOnConnected registers the hook invoked on every transition into
// Connected; the scheduler replays viewport and parameters from it.
func (m *Manager) SetOnConnected(f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = f
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Send writes a request to the renderer. While disconnected or connecting
// the request is silently dropped: the next Connected transition replays
// the then-current state, so queuing would only deliver stale work.
func (m *Manager) Send(req protocol.Request) error {
	m.mu.Lock()
	ws := m.ws
	state := m.state
	if state == StateConnected {
		m.frameW = req.Params.Width
		m.frameH = req.Params.Height
	}
	m.mu.Unlock()

	if state != StateConnected || ws == nil {
		log.Printf("[Conn] dropping request while %s", state)
		return nil
	}

	data, err := req.Encode()
	if err != nil {
		return err
	}

	ws.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		// Let the read loop observe the broken connection and reconnect.
		ws.Close()
		return err
	}
	return nil
}

// Run drives the connect/read/reconnect loop until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		m.setState(StateConnecting)
		ws, _, err := m.dialer.DialContext(ctx, m.cfg.URL, nil)
		if err != nil {
			m.setState(StateDisconnected)
			delay := m.cfg.Backoff.Next()
			log.Printf("[Conn] dial %s failed: %v (retrying in %v)", m.cfg.URL, err, delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		m.mu.Lock()
		m.ws = ws
		m.state = StateConnected
		connected := m.onConnected
		m.mu.Unlock()
		m.cfg.Backoff.Reset()
		log.Printf("[Conn] connected to %s", m.cfg.URL)

		if connected != nil {
			connected()
		}

		// Tear the socket down when the session context ends so the
		// read loop unblocks.
		connCtx, cancel := context.WithCancel(ctx)
		go func() {
			<-connCtx.Done()
			ws.Close()
		}()

		m.readLoop(ws)
		cancel()

		m.mu.Lock()
		m.ws = nil
		m.state = StateDisconnected
		m.mu.Unlock()

		delay := m.cfg.Backoff.Next()
		log.Printf("[Conn] connection lost (reconnecting in %v)", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// readLoop consumes inbound messages until the connection fails. Malformed
// messages are logged and dropped; they never close the connection.
func (m *Manager) readLoop(ws *websocket.Conn) {
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.TextMessage:
			msg, err := protocol.DecodeTileMessage(data, m.cfg.TileSize)
			if err != nil {
				log.Printf("[Conn] dropping malformed message: %v", err)
				continue
			}
			m.mu.Lock()
			handler := m.onTile
			m.mu.Unlock()
			if handler != nil {
				handler(msg)
			}

		case websocket.BinaryMessage:
			m.mu.Lock()
			w, h := m.frameW, m.frameH
			handler := m.onFullFrame
			m.mu.Unlock()
			frame, err := protocol.DecodeFullFrame(data, w, h)
			if err != nil {
				log.Printf("[Conn] dropping malformed frame: %v", err)
				continue
			}
			if handler != nil {
				handler(frame)
			}
		}
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}
