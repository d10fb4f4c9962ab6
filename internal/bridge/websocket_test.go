package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/park285/Cheese-ChessFront/pkg/framedto"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// echoServer sends one input event on connect and forwards everything the
// client writes to received.
func echoServer(t *testing.T, received chan<- map[string]any, headers chan<- string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if headers != nil {
			headers <- r.Header.Get("X-Session-Id")
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()
		_ = wsjson.Write(ctx, conn, framedto.Input{Type: framedto.TypeInput, Kind: "click", Cell: "e2"})
		for {
			var msg map[string]any
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				return
			}
			received <- msg
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketDeliversInputAndWrites(t *testing.T) {
	received := make(chan map[string]any, 4)
	headers := make(chan string, 1)
	srv := echoServer(t, received, headers)

	ws := NewWebSocket(wsURL(srv), 0, nil)
	ws.SetHeaderProvider(SessionHeaders("sess-9"))
	inputs := make(chan framedto.Input, 1)
	ws.OnInput(func(in framedto.Input) { inputs <- in })
	var states []WebSocketState
	ws.OnStateChange(func(s WebSocketState) { states = append(states, s) })

	require.NoError(t, ws.Connect(context.Background()))
	t.Cleanup(func() { _ = ws.Close(context.Background()) })
	require.Equal(t, "sess-9", <-headers)
	require.True(t, ws.Connected())

	select {
	case in := <-inputs:
		require.Equal(t, "click", in.Kind)
		require.Equal(t, "e2", in.Cell)
	case <-time.After(2 * time.Second):
		t.Fatal("no input delivered")
	}

	require.NoError(t, ws.WriteJSON(context.Background(), framedto.Despawn{Type: framedto.TypeDespawn, GameID: "g", ID: 7}))
	select {
	case msg := <-received:
		require.Equal(t, framedto.TypeDespawn, msg["type"])
		require.EqualValues(t, 7, msg["id"])
	case <-time.After(2 * time.Second):
		t.Fatal("write not received")
	}
	require.Equal(t, []WebSocketState{WSStateConnecting, WSStateConnected}, states)
}

func TestWebSocketWriteWithoutConnection(t *testing.T) {
	ws := NewWebSocket("ws://127.0.0.1:1/none", 0, nil)
	require.ErrorIs(t, ws.WriteJSON(context.Background(), map[string]string{}), ErrNotConnected)
}

func TestWebSocketConnectFailureWithoutRetries(t *testing.T) {
	ws := NewWebSocket("ws://127.0.0.1:1/none", 0, nil)
	require.Error(t, ws.Connect(context.Background()))
	require.Equal(t, WSStateFailed, ws.State())
	require.NoError(t, ws.Close(context.Background()))
}
