package bridge

import (
	"context"
	"fmt"

	"github.com/park285/Cheese-ChessFront/pkg/framedto"
	"go.uber.org/zap"
)

// Egress sends presentation messages over whichever transport is configured.
type Egress interface {
	// SendVisual carries spawn, despawn and frame messages.
	SendVisual(ctx context.Context, msg any) error
	SendStatus(ctx context.Context, st framedto.Status) error
	SendSnapshot(ctx context.Context, snap framedto.Snapshot) error
}

const (
	TransportHTTP = "http"
	TransportWS   = "ws"
	TransportAuto = "auto"
)

// NewEgress picks the transport. Auto prefers the WebSocket while it is
// connected and falls back to HTTP once per message. Dry-run logs every
// message instead of sending it.
func NewEgress(mode string, dryRun bool, c *Client, ws *WebSocket, logger *zap.Logger) (Egress, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dryRun {
		return &dryRunEgress{logger: logger}, nil
	}
	switch mode {
	case TransportHTTP:
		if c == nil {
			return nil, fmt.Errorf("%w: http transport needs BRIDGE_BASE_URL", ErrNoTransport)
		}
		return &httpEgress{c: c}, nil
	case TransportWS:
		if ws == nil {
			return nil, fmt.Errorf("%w: ws transport needs BRIDGE_WS_URL", ErrNoTransport)
		}
		return &wsEgress{ws: ws}, nil
	case TransportAuto, "":
		if c == nil && ws == nil {
			return nil, fmt.Errorf("%w: no bridge url configured", ErrNoTransport)
		}
		a := &autoEgress{logger: logger}
		if c != nil {
			a.http = &httpEgress{c: c}
		}
		if ws != nil {
			a.ws = &wsEgress{ws: ws}
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown bridge transport %q", mode)
	}
}

type httpEgress struct{ c *Client }

func (h *httpEgress) SendVisual(ctx context.Context, msg any) error {
	return h.c.PostEvent(ctx, msg)
}

func (h *httpEgress) SendStatus(ctx context.Context, st framedto.Status) error {
	return h.c.PostStatus(ctx, st)
}

func (h *httpEgress) SendSnapshot(ctx context.Context, snap framedto.Snapshot) error {
	return h.c.PostSnapshot(ctx, snap)
}

type wsEgress struct{ ws *WebSocket }

func (w *wsEgress) SendVisual(ctx context.Context, msg any) error {
	return w.ws.WriteJSON(ctx, msg)
}

func (w *wsEgress) SendStatus(ctx context.Context, st framedto.Status) error {
	st.Type = framedto.TypeStatus
	return w.ws.WriteJSON(ctx, st)
}

func (w *wsEgress) SendSnapshot(ctx context.Context, snap framedto.Snapshot) error {
	snap.Type = framedto.TypeSnapshot
	return w.ws.WriteJSON(ctx, snap)
}

type autoEgress struct {
	ws     *wsEgress
	http   *httpEgress
	logger *zap.Logger
}

func (a *autoEgress) useWS() bool { return a.ws != nil && a.ws.ws.Connected() }

func (a *autoEgress) SendVisual(ctx context.Context, msg any) error {
	return a.send("visual", func(e Egress) error { return e.SendVisual(ctx, msg) })
}

func (a *autoEgress) SendStatus(ctx context.Context, st framedto.Status) error {
	return a.send("status", func(e Egress) error { return e.SendStatus(ctx, st) })
}

func (a *autoEgress) SendSnapshot(ctx context.Context, snap framedto.Snapshot) error {
	return a.send("snapshot", func(e Egress) error { return e.SendSnapshot(ctx, snap) })
}

func (a *autoEgress) send(kind string, fn func(Egress) error) error {
	if a.useWS() {
		err := fn(a.ws)
		if err == nil || a.http == nil {
			return err
		}
		a.logger.Warn("egress_fallback", zap.String("type", kind), zap.Error(err))
	}
	if a.http == nil {
		return ErrNotConnected
	}
	return fn(a.http)
}

type dryRunEgress struct{ logger *zap.Logger }

func (d *dryRunEgress) SendVisual(_ context.Context, msg any) error {
	d.logger.Debug("egress_dryrun", zap.String("type", "visual"), zap.Any("msg", msg))
	return nil
}

func (d *dryRunEgress) SendStatus(_ context.Context, st framedto.Status) error {
	d.logger.Info("egress_dryrun",
		zap.String("type", framedto.TypeStatus),
		zap.String("game_id", st.GameID),
		zap.String("state", st.State),
		zap.String("ui", st.UI),
	)
	return nil
}

func (d *dryRunEgress) SendSnapshot(_ context.Context, snap framedto.Snapshot) error {
	d.logger.Info("egress_dryrun",
		zap.String("type", framedto.TypeSnapshot),
		zap.String("game_id", snap.GameID),
		zap.Int("ply", snap.Ply),
		zap.Int("png_len", len(snap.PNG)),
	)
	return nil
}
