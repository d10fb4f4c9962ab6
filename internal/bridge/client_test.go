package bridge

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/Cheese-ChessFront/pkg/framedto"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type request struct {
	method  string
	path    string
	session string
	body    []byte
}

type fakeBridge struct {
	mu       sync.Mutex
	requests []request
	failures atomic.Int32
	failWith int
}

func (f *fakeBridge) handle(ctx *fasthttp.RequestCtx) {
	f.mu.Lock()
	f.requests = append(f.requests, request{
		method:  string(ctx.Method()),
		path:    string(ctx.Path()),
		session: string(ctx.Request.Header.Peek("X-Session-Id")),
		body:    append([]byte(nil), ctx.PostBody()...),
	})
	f.mu.Unlock()

	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		ctx.SetStatusCode(f.failWith)
		ctx.SetBodyString("nope")
		return
	}
	ctx.SetContentType("application/json")
	if string(ctx.Path()) == "/health" {
		ctx.SetBodyString(`{"status":"ok","version":"1.2"}`)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (f *fakeBridge) seen() []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]request(nil), f.requests...)
}

func newFakeBridge(t *testing.T) (*fakeBridge, *Client) {
	t.Helper()
	fb := &fakeBridge{}
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: fb.handle}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	c := NewClient("http://bridge.test/",
		WithDialer(func(string) (net.Conn, error) { return ln.Dial() }),
		WithHeaderProvider(SessionHeaders("sess-1")),
		WithTimeout(2*time.Second),
	)
	return fb, c
}

func TestClientPostsStatus(t *testing.T) {
	fb, c := newFakeBridge(t)
	err := c.PostStatus(context.Background(), framedto.Status{GameID: "g1", State: "playing", UI: "1. e4"})
	require.NoError(t, err)

	reqs := fb.seen()
	require.Len(t, reqs, 1)
	require.Equal(t, "POST", reqs[0].method)
	require.Equal(t, "/status", reqs[0].path)
	require.Equal(t, "sess-1", reqs[0].session)

	var got framedto.Status
	require.NoError(t, json.Unmarshal(reqs[0].body, &got))
	require.Equal(t, framedto.TypeStatus, got.Type)
	require.Equal(t, "1. e4", got.UI)
}

func TestClientRetriesServerErrors(t *testing.T) {
	fb, c := newFakeBridge(t)
	fb.failWith = fasthttp.StatusServiceUnavailable
	fb.failures.Store(2)

	require.NoError(t, c.PostSnapshot(context.Background(), framedto.Snapshot{GameID: "g1", PNG: "aGk="}))
	require.Len(t, fb.seen(), 3)
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	fb, c := newFakeBridge(t)
	fb.failWith = fasthttp.StatusBadRequest
	fb.failures.Store(1)

	err := c.PostStatus(context.Background(), framedto.Status{})
	require.ErrorContains(t, err, "status=400")
	require.Len(t, fb.seen(), 1)
}

func TestClientEventsAreNotRetried(t *testing.T) {
	fb, c := newFakeBridge(t)
	fb.failWith = fasthttp.StatusBadGateway
	fb.failures.Store(1)

	require.Error(t, c.PostEvent(context.Background(), framedto.Frame{Type: framedto.TypeFrame}))
	require.Len(t, fb.seen(), 1)
}

func TestClientHealth(t *testing.T) {
	_, c := newFakeBridge(t)
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", h.Status)
	require.Equal(t, "1.2", h.Version)
}

func TestBackoffDuration(t *testing.T) {
	require.Equal(t, 100*time.Millisecond, backoffDuration(0))
	require.Equal(t, 400*time.Millisecond, backoffDuration(3))
	require.Equal(t, 3200*time.Millisecond, backoffDuration(20))
}
