// Package bridge talks to the presentation process: HTTP pushes through
// fasthttp and a WebSocket for per-tick frames and inbound input.
package bridge

import "errors"

// HeaderProvider returns headers attached to every request and handshake.
type HeaderProvider func() map[string]string

// SessionHeaders sends X-Session-Id when one is configured.
func SessionHeaders(sessionID string) HeaderProvider {
	return func() map[string]string {
		if sessionID == "" {
			return nil
		}
		return map[string]string{"X-Session-Id": sessionID}
	}
}

type WebSocketState string

const (
	WSStateDisconnected WebSocketState = "disconnected"
	WSStateConnecting   WebSocketState = "connecting"
	WSStateConnected    WebSocketState = "connected"
	WSStateReconnecting WebSocketState = "reconnecting"
	WSStateFailed       WebSocketState = "failed"
)

func (s WebSocketState) String() string { return string(s) }

var (
	ErrNotConnected = errors.New("bridge: websocket not connected")
	ErrNoTransport  = errors.New("bridge: transport not available")
)
