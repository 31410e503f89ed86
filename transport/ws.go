package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSConfig configures a websocket transport.
type WSConfig struct {
	URL string
	// Token is sent as a bearer Authorization header on dial.
	Token            string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	Logger           zerolog.Logger
}

// WS speaks the same call envelope over a persistent websocket, for
// self-hosted API gateways. Requests and replies are correlated by a
// numeric frame id; one reader goroutine routes replies to waiters.
type WS struct {
	url              string
	token            string
	handshakeTimeout time.Duration
	pingInterval     time.Duration
	logger           zerolog.Logger

	conn    *websocket.Conn
	connMu  sync.RWMutex
	writeMu sync.Mutex

	pending   map[int64]chan *wsReply
	pendingMu sync.Mutex
	reqID     int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type wsRequest struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params Params `json:"params,omitempty"`
}

type wsReply struct {
	ID            int64           `json:"id"`
	Response      json.RawMessage `json:"response,omitempty"`
	Error         *Error          `json:"error,omitempty"`
	ExecuteErrors []*Error        `json:"execute_errors,omitempty"`
}

// NewWS creates a websocket transport. Call Connect before Send.
func NewWS(cfg WSConfig) *WS {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WS{
		url:              cfg.URL,
		token:            cfg.Token,
		handshakeTimeout: cfg.HandshakeTimeout,
		pingInterval:     cfg.PingInterval,
		logger:           cfg.Logger.With().Str("component", "transport.ws").Logger(),
		pending:          make(map[int64]chan *wsReply),
		ctx:              ctx,
		cancel:           cancel,
	}
}

// Connect establishes the connection and starts the reader goroutine.
// Calling Connect on an already-connected transport is a no-op.
func (t *WS) Connect(ctx context.Context) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: t.handshakeTimeout}
	var header http.Header
	if t.token != "" {
		header = http.Header{"Authorization": []string{"Bearer " + t.token}}
	}
	conn, _, err := dialer.DialContext(ctx, t.url, header)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	t.conn = conn
	t.logger.Info().Str("url", t.url).Msg("connected")

	t.wg.Add(1)
	go t.readLoop(conn)
	if t.pingInterval > 0 {
		t.wg.Add(1)
		go t.pingLoop(conn)
	}
	return nil
}

// Connected reports whether the connection is established.
func (t *WS) Connected() bool {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.conn != nil
}

// Send writes one call frame and waits for its reply frame.
func (t *WS) Send(ctx context.Context, method string, params Params) (*Reply, error) {
	t.connMu.RLock()
	conn := t.conn
	t.connMu.RUnlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	t.pendingMu.Lock()
	t.reqID++
	id := t.reqID
	ch := make(chan *wsReply, 1)
	t.pending[id] = ch
	t.pendingMu.Unlock()

	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	frame := wsRequest{ID: id, Method: method, Params: params}
	t.writeMu.Lock()
	err := conn.WriteJSON(frame)
	t.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to write frame: %w", err)
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if reply.Error != nil {
			return nil, reply.Error
		}
		return &Reply{Response: reply.Response, Errors: reply.ExecuteErrors}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.ctx.Done():
		return nil, ErrClosed
	}
}

func (t *WS) readLoop(conn *websocket.Conn) {
	defer t.wg.Done()
	for {
		var reply wsReply
		if err := conn.ReadJSON(&reply); err != nil {
			if t.ctx.Err() == nil {
				t.logger.Warn().Err(err).Msg("read failed, dropping connection")
			}
			t.dropConnection(conn)
			return
		}

		t.pendingMu.Lock()
		ch := t.pending[reply.ID]
		t.pendingMu.Unlock()
		if ch == nil {
			t.logger.Debug().Int64("id", reply.ID).Msg("reply for unknown frame id")
			continue
		}
		ch <- &reply
	}
}

func (t *WS) pingLoop(conn *websocket.Conn) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			t.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// dropConnection clears the connection and fails every waiter.
func (t *WS) dropConnection(conn *websocket.Conn) {
	t.connMu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.connMu.Unlock()
	conn.Close()

	t.pendingMu.Lock()
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
	t.pendingMu.Unlock()
}

// Close tears down the connection and fails all pending sends.
func (t *WS) Close() {
	t.cancel()
	t.connMu.Lock()
	conn := t.conn
	t.conn = nil
	t.connMu.Unlock()
	if conn != nil {
		conn.Close()
	}
	t.wg.Wait()
	t.logger.Info().Msg("closed")
}
