// Package presenter turns controller updates into bridge messages and
// bridge input into controller events.
package presenter

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/park285/Cheese-ChessFront/internal/board"
	"github.com/park285/Cheese-ChessFront/internal/bridge"
	"github.com/park285/Cheese-ChessFront/internal/orchestrator"
	"github.com/park285/Cheese-ChessFront/internal/render"
	"github.com/park285/Cheese-ChessFront/internal/visual"
	"github.com/park285/Cheese-ChessFront/pkg/framedto"
	"go.uber.org/zap"
)

// Renderer draws the snapshot pushed after each commit.
type Renderer interface {
	RenderPNG(ctx context.Context, cells [64]board.Piece, opts render.Options) ([]byte, error)
}

// Presenter is an orchestrator.Sink. Publish only appends to a pending list;
// a single goroutine sends in order, so the interactive loop never waits on
// the network.
type Presenter struct {
	egress   bridge.Egress
	renderer Renderer
	logger   *zap.Logger
	timeout  time.Duration

	mu      sync.Mutex
	pending []orchestrator.Update
	closed  bool
	notify  chan struct{}
	done    chan struct{}

	lastCaption string
}

func New(egress bridge.Egress, renderer Renderer, logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Presenter{
		egress:   egress,
		renderer: renderer,
		logger:   logger,
		timeout:  5 * time.Second,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *Presenter) Publish(u orchestrator.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.pending = append(p.pending, u)
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Close flushes what is pending and stops the sender.
func (p *Presenter) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.notify)
	}
	p.mu.Unlock()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Presenter) loop() {
	defer close(p.done)
	for range p.notify {
		p.flush()
	}
	p.flush()
}

func (p *Presenter) flush() {
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.mu.Unlock()

	// Only the newest frame of a batch is worth sending.
	lastFrame := -1
	for i, u := range batch {
		if u.Pieces != nil {
			lastFrame = i
		}
	}
	for i, u := range batch {
		p.send(u, i == lastFrame)
	}
}

func (p *Presenter) send(u orchestrator.Update, withFrame bool) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	for _, ch := range u.Changes {
		var err error
		switch ch.Kind {
		case visual.Spawned:
			err = p.egress.SendVisual(ctx, ToSpawn(u.GameID, ch.Visual))
		case visual.Despawned:
			err = p.egress.SendVisual(ctx, ToDespawn(u.GameID, ch.Visual))
		case visual.Retyped:
			if err = p.egress.SendVisual(ctx, ToDespawn(u.GameID, ch.Visual)); err == nil {
				err = p.egress.SendVisual(ctx, ToSpawn(u.GameID, ch.Visual))
			}
		}
		if err != nil {
			p.logger.Warn("presenter_visual_failed", zap.String("change", ch.Kind.String()), zap.Int("id", ch.Visual.ID), zap.Error(err))
		}
	}
	if withFrame {
		if err := p.egress.SendVisual(ctx, ToFrame(u.GameID, u.Tick, u.Pieces)); err != nil {
			p.logger.Debug("presenter_frame_failed", zap.Uint64("tick", u.Tick), zap.Error(err))
		}
	}
	if u.Status != nil {
		p.lastCaption = u.Status.UI
		if err := p.egress.SendStatus(ctx, ToStatus(u.GameID, u.State, *u.Status)); err != nil {
			p.logger.Warn("presenter_status_failed", zap.String("game_id", u.GameID), zap.Error(err))
		}
	}
	if u.Commit != nil && p.renderer != nil {
		p.sendSnapshot(ctx, u.GameID, u.Commit)
	}
}

func (p *Presenter) sendSnapshot(ctx context.Context, gameID string, cm *orchestrator.Commit) {
	rec := cm.Record
	png, err := p.renderer.RenderPNG(ctx, cm.Cells, render.Options{
		Highlight: &render.Highlight{From: rec.Src, To: rec.Dst},
		Caption:   p.lastCaption,
	})
	if err != nil {
		p.logger.Warn("presenter_render_failed", zap.Int("ply", rec.Ply), zap.Error(err))
		return
	}
	snap := framedto.Snapshot{
		Type:   framedto.TypeSnapshot,
		GameID: gameID,
		Ply:    rec.Ply,
		Move:   rec.UCI,
		PNG:    base64.StdEncoding.EncodeToString(png),
	}
	if err := p.egress.SendSnapshot(ctx, snap); err != nil {
		p.logger.Warn("presenter_snapshot_failed", zap.Int("ply", rec.Ply), zap.Error(err))
	}
}

// InputSource is what delivers inbound bridge events; *bridge.WebSocket
// satisfies it.
type InputSource interface {
	OnInput(cb bridge.InputCallback)
}

// BindInput forwards every valid inbound event to the controller queue.
func BindInput(src InputSource, q *orchestrator.InputQueue, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	src.OnInput(func(in framedto.Input) {
		ev, err := ToInput(in)
		if err != nil {
			logger.Warn("bridge_input_rejected", zap.String("kind", in.Kind), zap.Error(err))
			return
		}
		q.Push(ev)
	})
}
