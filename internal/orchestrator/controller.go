package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/park285/Cheese-ChessFront/internal/board"
	"github.com/park285/Cheese-ChessFront/internal/config"
	"github.com/park285/Cheese-ChessFront/internal/msgcat"
	"github.com/park285/Cheese-ChessFront/internal/session"
	"github.com/park285/Cheese-ChessFront/internal/visual"
	"go.uber.org/zap"
)

// Options are the controller's startup settings.
type Options struct {
	EnginePlays [2]bool
	SecsPerMove float64
	Animator    visual.Animator
	Assets      visual.AssetTable
}

// Controller is the interactive loop body. All of its methods except
// Input().Push must be called from one goroutine.
type Controller struct {
	shared  *session.Shared
	disp    *Dispatcher
	visuals *visual.Set
	anim    visual.Animator
	input   *InputQueue
	sink    Sink
	texts   texts
	logger  *zap.Logger
	cancel  context.CancelFunc

	state        State
	sel          board.Cell
	enginePlays  [2]bool
	secsPerMove  float64
	resetPending bool

	gameID      string
	tick        uint64
	status      Status
	statusDirty bool
	commit      *Commit
	lastOpening string
}

func New(shared *session.Shared, searcher Searcher, sink Sink, cat *msgcat.Catalog, opts Options, logger *zap.Logger) (*Controller, error) {
	if shared == nil {
		return nil, errors.New("shared game state is required")
	}
	if sink == nil {
		return nil, errors.New("sink is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	tx, err := newTexts(cat)
	if err != nil {
		return nil, err
	}
	if opts.Assets == nil {
		opts.Assets = visual.DefaultAssets()
	}
	if err := opts.Assets.Validate(); err != nil {
		return nil, err
	}
	if opts.Animator == (visual.Animator{}) {
		opts.Animator = visual.DefaultAnimator()
	}
	if opts.SecsPerMove == 0 {
		opts.SecsPerMove = board.DefaultSecsPerMove
	}

	ctx, cancel := context.WithCancel(context.Background())
	disp, err := NewDispatcher(ctx, shared, searcher, logger)
	if err != nil {
		cancel()
		return nil, err
	}

	c := &Controller{
		shared:      shared,
		disp:        disp,
		visuals:     visual.NewSet(opts.Assets),
		anim:        opts.Animator,
		input:       &InputQueue{},
		sink:        sink,
		texts:       tx,
		logger:      logger,
		cancel:      cancel,
		state:       Playing,
		sel:         board.NoCell,
		enginePlays: opts.EnginePlays,
		secsPerMove: config.ClampSecs(opts.SecsPerMove),
		gameID:      shared.GameID().String(),
	}
	cells, err := shared.Snapshot()
	if err != nil {
		cancel()
		return nil, err
	}
	c.visuals.Populate(cells)
	c.status = Status{
		UI:   tx.plain("status.help"),
		Turn: tx.turnHint(c.enginePlays),
		Time: tx.timeHint(c.secsPerMove),
		Next: tx.plain("status.white_starts"),
	}
	c.statusDirty = true
	return c, nil
}

// Input is the queue presentation adapters push events into.
func (c *Controller) Input() *InputQueue { return c.input }

func (c *Controller) State() State { return c.state }

func (c *Controller) Status() Status { return c.status }

func (c *Controller) GameID() string { return c.gameID }

func (c *Controller) EnginePlays() [2]bool { return c.enginePlays }

func (c *Controller) SecsPerMove() float64 { return c.secsPerMove }

// Selection returns the selected source cell, if any.
func (c *Controller) Selection() (board.Cell, bool) {
	return c.sel, c.sel != board.NoCell
}

func (c *Controller) Visuals() []visual.PieceVisual { return c.visuals.Pieces() }

// Close cancels the context handed to searchers. It does not wait for an
// outstanding search.
func (c *Controller) Close() { c.cancel() }

// Run ticks at rate Hz until ctx is done.
func (c *Controller) Run(ctx context.Context, rate int) error {
	if rate <= 0 {
		rate = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			c.Tick(now.Sub(last))
			last = now
		}
	}
}

// Tick runs one frame: input, result collection, arbitration, animation and
// publication, in that order.
func (c *Controller) Tick(dt time.Duration) {
	c.tick++
	prev := c.state

	for _, in := range c.input.Drain() {
		c.handle(in)
	}
	c.poll()
	if c.resetPending && !c.disp.Outstanding() {
		c.applyReset()
	}
	c.arbitrate()
	moved := c.visuals.Step(c.anim, dt.Seconds())

	if c.state != prev {
		c.statusDirty = true
	}
	c.publish(moved)
}

func (c *Controller) publish(moved bool) {
	u := Update{
		GameID:  c.gameID,
		Tick:    c.tick,
		State:   c.state,
		Changes: c.visuals.DrainChanges(),
		Commit:  c.commit,
	}
	if moved || len(u.Changes) > 0 {
		u.Pieces = c.visuals.Pieces()
	}
	if c.statusDirty {
		st := c.status
		u.Status = &st
	}
	c.commit = nil
	c.statusDirty = false
	if !u.Empty() {
		c.sink.Publish(u)
	}
}

// busy reports whether the loop must stay off the shared state.
func (c *Controller) busy() bool { return c.disp.Outstanding() || c.resetPending }

func (c *Controller) handle(in Input) {
	switch in.Kind {
	case InputClick:
		c.click(in.Cell)
	case InputNewGame:
		c.newGame()
	case InputToggleSide:
		if in.Side != board.White && in.Side != board.Black {
			return
		}
		c.enginePlays[in.Side] = !c.enginePlays[in.Side]
		c.setStatus(func(s *Status) { s.Turn = c.texts.turn(c.enginePlays) })
		c.logger.Info("engine_plays_changed",
			zap.Bool("white", c.enginePlays[board.White]),
			zap.Bool("black", c.enginePlays[board.Black]),
		)
	case InputTimeUp:
		c.setSecs(c.secsPerMove + config.SecsPerMoveStep)
	case InputTimeDown:
		c.setSecs(c.secsPerMove - config.SecsPerMoveStep)
	case InputSetTime:
		c.setSecs(in.Seconds)
	case InputDumpMoves:
		c.dumpMoves()
	default:
		c.logger.Warn("unknown_input", zap.Uint8("kind", uint8(in.Kind)))
	}
}

func (c *Controller) setSecs(secs float64) {
	c.secsPerMove = config.ClampSecs(secs)
	c.setStatus(func(s *Status) { s.Time = c.texts.time(c.secsPerMove) })
}

func (c *Controller) setStatus(fn func(*Status)) {
	fn(&c.status)
	c.statusDirty = true
}

func (c *Controller) click(cell board.Cell) {
	if !cell.Valid() || c.state != Playing || c.busy() {
		return
	}
	side, err := c.shared.SideToMove()
	if err != nil {
		c.fail(err)
		return
	}
	if c.enginePlays[side] {
		return
	}

	if c.sel == board.NoCell {
		p, err := c.shared.At(cell)
		if err != nil {
			c.fail(err)
			return
		}
		if p.IsEmpty() || p.Side() != side {
			return
		}
		c.sel = cell
		return
	}
	if cell == c.sel {
		return
	}

	src := c.sel
	c.sel = board.NoCell
	ok, err := c.shared.IsLegal(src, cell)
	if err != nil {
		c.fail(err)
		return
	}
	if !ok {
		c.logger.Info("move_rejected", zap.String("move", src.String()+cell.String()))
		c.setStatus(func(s *Status) { s.UI = c.texts.plain("status.rejected") })
		return
	}
	c.commitMove(board.PendingMove{Src: src, Dst: cell}, side, false)
}

func (c *Controller) newGame() {
	c.sel = board.NoCell
	c.state = Playing
	c.lastOpening = ""
	c.setStatus(func(s *Status) {
		s.UI = c.texts.plain("status.new_game")
		s.Next = c.texts.plain("status.white_starts")
	})
	if c.disp.Outstanding() {
		gen := c.shared.Invalidate()
		c.resetPending = true
		c.logger.Info("new_game_deferred", zap.Uint64("generation", gen))
		return
	}
	c.applyReset()
}

func (c *Controller) applyReset() {
	gen := c.shared.Reset()
	c.resetPending = false
	c.gameID = c.shared.GameID().String()
	cells, err := c.shared.Snapshot()
	if err != nil {
		c.fail(err)
		return
	}
	c.visuals.Populate(cells)
	c.logger.Info("new_game", zap.String("game_id", c.gameID), zap.Uint64("generation", gen))
}

func (c *Controller) poll() {
	r, ok := c.disp.Poll()
	if !ok {
		return
	}
	if gen := c.shared.Generation(); r.generation != gen || c.state != WaitingForEngine {
		c.logger.Info("stale_result_discarded",
			zap.Uint64("result_generation", r.generation),
			zap.Uint64("generation", gen),
			zap.Stringer("state", c.state),
		)
		return
	}
	if r.err != nil {
		c.fail(r.err)
		return
	}
	side, err := c.shared.SideToMove()
	if err != nil {
		c.fail(err)
		return
	}
	c.state = Playing
	c.logger.Info("engine_result",
		zap.String("move", r.move.String()),
		zap.Int("score", r.move.Score),
		zap.Duration("elapsed", r.elapsed),
	)
	c.commitMove(r.move, side, true)
}

func (c *Controller) arbitrate() {
	if c.state != Playing || c.busy() {
		return
	}
	side, err := c.shared.SideToMove()
	if err != nil {
		c.fail(err)
		return
	}
	if !c.enginePlays[side] {
		return
	}
	c.sel = board.NoCell
	if c.disp.Dispatch(c.secsPerMove) {
		c.state = WaitingForEngine
	}
}

// commitMove applies mv for mover and refreshes visuals and status. Engine
// moves carry a score that may announce mate.
func (c *Controller) commitMove(mv board.PendingMove, mover board.Side, byEngine bool) {
	rec, desc, err := c.shared.ApplyMove(mv)
	if err != nil {
		c.fail(err)
		return
	}
	c.visuals.Sync(rec)
	code, title, err := c.opening()
	if err != nil {
		c.fail(err)
		return
	}

	var ui strings.Builder
	ui.WriteString(desc)
	if code != "" && code != c.lastOpening {
		c.lastOpening = code
		ui.WriteString(c.texts.opening(code, title))
	}
	next := c.texts.next(mover.Opponent())
	if byEngine {
		ui.WriteString(c.texts.score(mv.Score))
		switch {
		case mv.Score == board.KingValue:
			ui.WriteString(c.texts.plain("status.checkmate_over"))
			next = ""
			c.state = Terminated
		case mv.Score > board.MateThreshold:
			ui.WriteString(c.texts.mateIn((board.KingValue - mv.Score) / 2))
		}
	}
	if c.state != Terminated && rec.Flags.Over() {
		switch {
		case rec.Flags.Has(board.FlagCheckmate):
			ui.WriteString(c.texts.plain("status.checkmate_over"))
		case rec.Flags.Has(board.FlagStalemate):
			ui.WriteString(c.texts.plain("status.stalemate_over"))
		default:
			ui.WriteString(c.texts.draw(rec.Method))
		}
		next = ""
		c.state = Terminated
	}

	c.setStatus(func(s *Status) {
		s.UI = ui.String()
		s.Turn = c.texts.turn(c.enginePlays)
		s.Time = c.texts.time(c.secsPerMove)
		s.Next = next
	})

	cm := &Commit{Record: rec, Description: desc, ByEngine: byEngine, Score: mv.Score}
	if cells, err := c.shared.Snapshot(); err == nil {
		cm.Cells = cells
	}
	c.commit = cm

	event := "human_commit"
	if byEngine {
		event = "engine_commit"
	}
	c.logger.Info(event,
		zap.String("game_id", c.gameID),
		zap.String("move", rec.UCI),
		zap.String("san", rec.SAN),
		zap.Int("score", mv.Score),
		zap.Stringer("state", c.state),
	)
}

func (c *Controller) opening() (code, title string, err error) {
	err = c.shared.WithGame(func(g *board.Game) error {
		code, title = g.Opening()
		return nil
	})
	return code, title, err
}

func (c *Controller) dumpMoves() {
	if c.busy() {
		c.logger.Info("dump_moves_skipped", zap.String("reason", "search outstanding"))
		return
	}
	err := c.shared.WithGame(func(g *board.Game) error {
		hist := g.History()
		played := make([]string, 0, len(hist))
		for _, r := range hist {
			played = append(played, r.SAN)
		}
		c.logger.Info("dump_moves",
			zap.String("fen", g.FEN()),
			zap.Strings("played", played),
			zap.Strings("legal", g.LegalMoves()),
		)
		return nil
	})
	if err != nil {
		c.fail(err)
	}
}

// fail terminates the session with a diagnostic. Only a new game leaves it.
func (c *Controller) fail(err error) {
	c.state = Terminated
	c.sel = board.NoCell
	msg := c.texts.engineFailed(err)
	if errors.Is(err, session.ErrPoisoned) {
		msg = c.texts.plain("status.poisoned")
	}
	c.setStatus(func(s *Status) {
		s.UI = msg
		s.Next = ""
	})
	c.logger.Error("session_terminated", zap.String("game_id", c.gameID), zap.Error(err))
}
