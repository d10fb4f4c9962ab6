package bridge

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/park285/Cheese-ChessFront/pkg/framedto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type InputCallback func(in framedto.Input)

type StateCallback func(state WebSocketState)

// WebSocket keeps one connection to the bridge, re-dialling with backoff when
// reads or pings fail.
type WebSocket struct {
	wsURL   string
	headers HeaderProvider
	logger  *zap.Logger

	connM sync.Mutex
	conn  *websocket.Conn
	// writeM serialises writers; wsjson.Write is not safe for concurrent use.
	writeM sync.Mutex

	stateM sync.RWMutex
	state  WebSocketState

	cbM      sync.RWMutex
	inputCbs []InputCallback
	stateCbs []StateCallback

	maxReconnectAttempts int
	pingInterval         time.Duration

	rootCtx    context.Context
	rootCancel context.CancelFunc
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewWebSocket(wsURL string, maxReconnectAttempts int, logger *zap.Logger) *WebSocket {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocket{
		wsURL:                wsURL,
		logger:               logger,
		state:                WSStateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		pingInterval:         30 * time.Second,
		rootCtx:              ctx,
		rootCancel:           cancel,
	}
}

func (ws *WebSocket) SetHeaderProvider(h HeaderProvider) { ws.headers = h }

func (ws *WebSocket) OnInput(cb InputCallback) {
	ws.cbM.Lock()
	ws.inputCbs = append(ws.inputCbs, cb)
	ws.cbM.Unlock()
}

func (ws *WebSocket) OnStateChange(cb StateCallback) {
	ws.cbM.Lock()
	ws.stateCbs = append(ws.stateCbs, cb)
	ws.cbM.Unlock()
}

func (ws *WebSocket) State() WebSocketState {
	ws.stateM.RLock()
	defer ws.stateM.RUnlock()
	return ws.state
}

func (ws *WebSocket) Connected() bool { return ws.State() == WSStateConnected }

// Connect dials once. On failure a background reconnect is scheduled and the
// dial error is returned.
func (ws *WebSocket) Connect(ctx context.Context) error {
	switch ws.State() {
	case WSStateConnected, WSStateConnecting, WSStateReconnecting:
		return nil
	}
	ws.setState(WSStateConnecting)
	if err := ws.dial(ctx); err != nil {
		ws.setState(WSStateFailed)
		ws.scheduleReconnect()
		return err
	}
	return nil
}

func (ws *WebSocket) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, ws.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      ws.buildHeaders(),
	})
	if err != nil {
		return err
	}
	ws.connM.Lock()
	if ws.rootCtx.Err() != nil {
		ws.connM.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "close")
		return ws.rootCtx.Err()
	}
	ws.conn = conn
	ws.connM.Unlock()
	ws.setState(WSStateConnected)

	ws.wg.Add(2)
	go ws.listen(conn)
	go ws.pingLoop(conn)
	return nil
}

// WriteJSON sends one message. It fails fast when no connection is up.
func (ws *WebSocket) WriteJSON(ctx context.Context, v any) error {
	ws.connM.Lock()
	conn := ws.conn
	ws.connM.Unlock()
	if conn == nil || !ws.Connected() {
		return ErrNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	ws.writeM.Lock()
	defer ws.writeM.Unlock()
	return wsjson.Write(ctx, conn, v)
}

func (ws *WebSocket) listen(conn *websocket.Conn) {
	defer ws.wg.Done()
	for {
		var in framedto.Input
		if err := wsjson.Read(ws.rootCtx, conn, &in); err != nil {
			ws.dropConn(conn, "read failure", err)
			return
		}
		if in.Type != "" && in.Type != framedto.TypeInput {
			ws.logger.Debug("ws_message_ignored", zap.String("type", in.Type))
			continue
		}
		ws.cbM.RLock()
		cbs := append([]InputCallback(nil), ws.inputCbs...)
		ws.cbM.RUnlock()
		for _, cb := range cbs {
			cb(in)
		}
	}
}

func (ws *WebSocket) pingLoop(conn *websocket.Conn) {
	defer ws.wg.Done()
	t := time.NewTicker(ws.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ws.rootCtx.Done():
			return
		case <-t.C:
		}
		if !ws.current(conn) {
			return
		}
		ctx, cancel := context.WithTimeout(ws.rootCtx, 3*time.Second)
		err := conn.Ping(ctx)
		cancel()
		if err == nil {
			failures = 0
			continue
		}
		failures++
		if failures >= 2 {
			ws.dropConn(conn, "ping failure", err)
			return
		}
	}
}

func (ws *WebSocket) current(conn *websocket.Conn) bool {
	ws.connM.Lock()
	defer ws.connM.Unlock()
	return ws.conn == conn
}

// dropConn closes conn if it is still the active connection and starts a
// reconnect. Stale connections are ignored so listen and ping cannot both
// trigger one.
func (ws *WebSocket) dropConn(conn *websocket.Conn, reason string, cause error) {
	if ws.rootCtx.Err() != nil {
		return
	}
	ws.connM.Lock()
	if ws.conn != conn {
		ws.connM.Unlock()
		return
	}
	ws.conn = nil
	ws.connM.Unlock()

	_ = conn.Close(websocket.StatusGoingAway, reason)
	ws.logger.Warn("ws_disconnected", zap.String("reason", reason), zap.Error(cause))
	ws.setState(WSStateDisconnected)
	ws.scheduleReconnect()
}

func (ws *WebSocket) scheduleReconnect() {
	if ws.maxReconnectAttempts <= 0 || ws.rootCtx.Err() != nil {
		return
	}
	ws.setState(WSStateReconnecting)
	ws.wg.Add(1)
	go func() {
		defer ws.wg.Done()
		for attempt := 1; attempt <= ws.maxReconnectAttempts; attempt++ {
			if err := sleepWithContext(ws.rootCtx, backoffDuration(attempt)); err != nil {
				return
			}
			if err := ws.dial(ws.rootCtx); err != nil {
				ws.logger.Debug("ws_reconnect_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			ws.logger.Info("ws_reconnected", zap.Int("attempt", attempt))
			return
		}
		ws.setState(WSStateFailed)
	}()
}

func (ws *WebSocket) setState(state WebSocketState) {
	ws.stateM.Lock()
	changed := ws.state != state
	ws.state = state
	ws.stateM.Unlock()
	if !changed {
		return
	}
	ws.cbM.RLock()
	cbs := append([]StateCallback(nil), ws.stateCbs...)
	ws.cbM.RUnlock()
	for _, cb := range cbs {
		cb(state)
	}
}

// Close stops reconnects, closes the connection and waits for the
// background goroutines or ctx.
func (ws *WebSocket) Close(ctx context.Context) error {
	ws.stopOnce.Do(ws.rootCancel)
	ws.connM.Lock()
	conn := ws.conn
	ws.conn = nil
	ws.connM.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	ws.setState(WSStateDisconnected)

	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (ws *WebSocket) buildHeaders() http.Header {
	hdr := http.Header{}
	if ws.headers == nil {
		return hdr
	}
	for k, v := range ws.headers() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
