package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/park285/Cheese-ChessFront/internal/board"
	"github.com/park285/Cheese-ChessFront/internal/session"
	"go.uber.org/zap"
)

// result is what a worker leaves in the slot.
type result struct {
	generation uint64
	move       board.PendingMove
	err        error
	elapsed    time.Duration
}

// Dispatcher runs at most one search at a time. The worker owns the shared
// game for the whole search; the loop only ever looks at the slot.
type Dispatcher struct {
	shared   *session.Shared
	searcher Searcher
	ctx      context.Context
	logger   *zap.Logger

	slot       chan result // nil when idle
	generation uint64
}

func NewDispatcher(ctx context.Context, shared *session.Shared, searcher Searcher, logger *zap.Logger) (*Dispatcher, error) {
	if shared == nil {
		return nil, errors.New("shared game state is required")
	}
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Dispatcher{shared: shared, searcher: searcher, ctx: ctx, logger: logger}, nil
}

// Outstanding reports whether a search has been dispatched and its result
// not yet collected.
func (d *Dispatcher) Outstanding() bool { return d.slot != nil }

// Dispatch starts a search with the given budget, tagged with the current
// generation. It returns false if one is already outstanding.
func (d *Dispatcher) Dispatch(secs float64) bool {
	if d.slot != nil {
		return false
	}
	gen := d.shared.Generation()
	slot := make(chan result, 1)
	d.slot = slot
	d.generation = gen

	d.logger.Info("engine_dispatch",
		zap.Uint64("generation", gen),
		zap.Float64("secs_per_move", secs),
	)
	go func() {
		start := time.Now()
		var mv board.PendingMove
		err := d.shared.WithGame(func(g *board.Game) error {
			g.SetSecsPerMove(secs)
			m, err := d.searcher.BestMove(d.ctx, g)
			mv = m
			return err
		})
		// sent after WithGame returned, so the lock is already free
		slot <- result{generation: gen, move: mv, err: err, elapsed: time.Since(start)}
	}()
	return true
}

// Poll collects a finished result without blocking.
func (d *Dispatcher) Poll() (result, bool) {
	if d.slot == nil {
		return result{}, false
	}
	select {
	case r := <-d.slot:
		d.slot = nil
		return r, true
	default:
		return result{}, false
	}
}
