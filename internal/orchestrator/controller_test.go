package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/Cheese-ChessFront/internal/board"
	"github.com/park285/Cheese-ChessFront/internal/msgcat"
	"github.com/park285/Cheese-ChessFront/internal/session"
	"github.com/park285/Cheese-ChessFront/internal/visual"
	"github.com/stretchr/testify/require"
)

const tickDt = time.Second / 60

type reply struct {
	move  board.PendingMove
	err   error
	panic bool
}

// gatedSearcher blocks every search until the test sends a reply.
type gatedSearcher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan reply
}

func newGated() *gatedSearcher {
	return &gatedSearcher{started: make(chan struct{}, 16), release: make(chan reply)}
}

func (s *gatedSearcher) BestMove(ctx context.Context, g *board.Game) (board.PendingMove, error) {
	s.calls.Add(1)
	s.started <- struct{}{}
	r := <-s.release
	if r.panic {
		panic("search exploded")
	}
	return r.move, r.err
}

// firstLegal plays the first legal move of every position.
type firstLegal struct {
	calls atomic.Int32
	score int
}

func (s *firstLegal) BestMove(ctx context.Context, g *board.Game) (board.PendingMove, error) {
	s.calls.Add(1)
	moves := g.LegalMoves()
	if len(moves) == 0 {
		return board.PendingMove{}, errors.New("no legal moves")
	}
	src, _ := board.ParseCell(moves[0][:2])
	dst, _ := board.ParseCell(moves[0][2:4])
	return board.PendingMove{Src: src, Dst: dst, Score: s.score}, nil
}

type recordingSink struct {
	updates []Update
}

func (r *recordingSink) Publish(u Update) { r.updates = append(r.updates, u) }

func (r *recordingSink) lastStatus() *Status {
	for i := len(r.updates) - 1; i >= 0; i-- {
		if r.updates[i].Status != nil {
			return r.updates[i].Status
		}
	}
	return nil
}

type harness struct {
	t      *testing.T
	c      *Controller
	sink   *recordingSink
	shared *session.Shared
}

func newHarness(t *testing.T, plays [2]bool, s Searcher) *harness {
	t.Helper()
	cat, err := msgcat.New("")
	require.NoError(t, err)
	shared := session.New(board.DefaultSecsPerMove, nil)
	sink := &recordingSink{}
	c, err := New(shared, s, sink, cat, Options{EnginePlays: plays}, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return &harness{t: t, c: c, sink: sink, shared: shared}
}

func newHarnessFrom(t *testing.T, fen string, plays [2]bool, s Searcher) *harness {
	t.Helper()
	cat, err := msgcat.New("")
	require.NoError(t, err)
	g, err := board.NewGameFromFEN(fen)
	require.NoError(t, err)
	shared := session.NewFrom(g, nil)
	sink := &recordingSink{}
	c, err := New(shared, s, sink, cat, Options{EnginePlays: plays}, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return &harness{t: t, c: c, sink: sink, shared: shared}
}

func (h *harness) cell(s string) board.Cell {
	h.t.Helper()
	c, err := board.ParseCell(s)
	require.NoError(h.t, err)
	return c
}

func (h *harness) push(in ...Input) {
	h.c.Input().Push(in...)
	h.c.Tick(tickDt)
}

func (h *harness) clicks(cells ...string) {
	for _, s := range cells {
		h.push(Click(h.cell(s)))
	}
}

func (h *harness) tickUntil(cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			h.t.Fatal("condition not reached")
		}
		h.c.Tick(tickDt)
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) counter() int {
	h.t.Helper()
	n, err := h.shared.MoveCounter()
	require.NoError(h.t, err)
	return n
}

func waitStarted(t *testing.T, s *gatedSearcher) {
	t.Helper()
	select {
	case <-s.started:
	case <-time.After(2 * time.Second):
		t.Fatal("search never started")
	}
}

func TestFirstTickPublishesPopulationAndDefaults(t *testing.T) {
	h := newHarness(t, [2]bool{false, false}, &firstLegal{})
	h.c.Tick(tickDt)

	require.Len(t, h.sink.updates, 1)
	u := h.sink.updates[0]
	require.Len(t, u.Changes, 32)
	require.Len(t, u.Pieces, 32)
	require.NotNil(t, u.Status)
	require.Equal(t, "White starts the game", u.Status.Next)
	require.Contains(t, u.Status.Time, "2 secs per move")
	require.Equal(t, h.c.GameID(), u.GameID)

	// nothing moves on an idle board
	h.c.Tick(tickDt)
	require.Len(t, h.sink.updates, 1)
}

func TestIllegalDestinationIsRejected(t *testing.T) {
	h := newHarness(t, [2]bool{false, false}, &firstLegal{})
	before, err := h.shared.Snapshot()
	require.NoError(t, err)

	h.clicks("e2")
	sel, ok := h.c.Selection()
	require.True(t, ok)
	require.Equal(t, h.cell("e2"), sel)

	h.clicks("e5")
	_, ok = h.c.Selection()
	require.False(t, ok)
	require.Equal(t, 0, h.counter())
	after, err := h.shared.Snapshot()
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, "invalid move, ignored.", h.c.Status().UI)
	require.Equal(t, Playing, h.c.State())
}

func TestClicksWithoutTransitionAreNoOps(t *testing.T) {
	h := newHarness(t, [2]bool{false, false}, &firstLegal{})

	h.clicks("e4") // empty
	_, ok := h.c.Selection()
	require.False(t, ok)

	h.clicks("e7") // opponent
	_, ok = h.c.Selection()
	require.False(t, ok)

	h.clicks("g1", "g1") // re-click keeps the selection
	sel, ok := h.c.Selection()
	require.True(t, ok)
	require.Equal(t, h.cell("g1"), sel)

	h.clicks("f3")
	require.Equal(t, 1, h.counter())
}

func TestHumanCaptureRelocatesVisual(t *testing.T) {
	h := newHarness(t, [2]bool{false, false}, &firstLegal{})
	h.clicks("e2", "e4", "d7", "d5")

	mover, ok := h.c.visuals.At(h.cell("e4"))
	require.True(t, ok)
	h.clicks("e4", "d5")

	got, ok := h.c.visuals.At(h.cell("d5"))
	require.True(t, ok)
	require.Equal(t, mover.ID, got.ID)
	require.Equal(t, board.WhitePawn, got.Piece)
	require.Len(t, h.c.Visuals(), 31)

	p, err := h.shared.At(h.cell("d5"))
	require.NoError(t, err)
	require.Equal(t, board.WhitePawn, p)
	_, ok = h.c.Selection()
	require.False(t, ok)
	require.True(t, strings.HasPrefix(h.c.Status().UI, "2. exd5"))
	require.Equal(t, "Next move: Black", h.c.Status().Next)
}

func TestEngineDispatchIsSingleAndWaits(t *testing.T) {
	s := newGated()
	h := newHarness(t, [2]bool{true, false}, s)

	h.c.Tick(tickDt)
	require.Equal(t, WaitingForEngine, h.c.State())
	waitStarted(t, s)

	for i := 0; i < 10; i++ {
		h.c.Tick(tickDt)
	}
	require.Equal(t, WaitingForEngine, h.c.State())
	require.False(t, h.c.disp.Dispatch(1))
	require.EqualValues(t, 1, s.calls.Load())

	s.release <- reply{move: board.PendingMove{Src: h.cell("e2"), Dst: h.cell("e4"), Score: 12}}
	h.tickUntil(func() bool { return h.c.State() == Playing })

	require.Equal(t, 1, h.counter())
	require.True(t, strings.HasPrefix(h.c.Status().UI, "1. e4"))
	require.True(t, strings.HasSuffix(h.c.Status().UI, " (score: 12)"))
	require.Equal(t, "Computer (1) vs Human (2)", h.c.Status().Turn)
	require.EqualValues(t, 1, s.calls.Load())
}

func TestClicksIgnoredWhileEngineThinks(t *testing.T) {
	s := newGated()
	h := newHarness(t, [2]bool{false, true}, s)

	h.clicks("e2", "e4")
	require.Equal(t, WaitingForEngine, h.c.State())
	waitStarted(t, s)

	h.clicks("e7")
	_, ok := h.c.Selection()
	require.False(t, ok)

	s.release <- reply{move: board.PendingMove{Src: h.cell("e7"), Dst: h.cell("e5")}}
	h.tickUntil(func() bool { return h.c.State() == Playing })
	require.Equal(t, 2, h.counter())
}

func TestMateSentinelTerminates(t *testing.T) {
	s := newGated()
	h := newHarness(t, [2]bool{true, true}, s)

	h.c.Tick(tickDt)
	waitStarted(t, s)
	s.release <- reply{move: board.PendingMove{Src: h.cell("e2"), Dst: h.cell("e4"), Score: board.KingValue}}
	h.tickUntil(func() bool { return h.c.State() != WaitingForEngine })

	require.Equal(t, Terminated, h.c.State())
	require.Contains(t, h.c.Status().UI, "Checkmate, game terminated!")
	require.Empty(t, h.c.Status().Next)

	for i := 0; i < 20; i++ {
		h.c.Tick(tickDt)
	}
	require.EqualValues(t, 1, s.calls.Load())
	require.Equal(t, 1, h.counter())

	h.push(NewGame())
	require.Equal(t, WaitingForEngine, h.c.State())
	waitStarted(t, s)
	h.push(ToggleSide(board.White), ToggleSide(board.Black))
	s.release <- reply{move: board.PendingMove{Src: h.cell("d2"), Dst: h.cell("d4")}}
	h.tickUntil(func() bool { return h.c.State() == Playing })
	require.Equal(t, 1, h.counter())
	require.EqualValues(t, 2, s.calls.Load())
}

func TestMateInAnnouncement(t *testing.T) {
	h := newHarness(t, [2]bool{true, false}, &firstLegal{score: board.KingValue - 4})
	h.tickUntil(func() bool { return h.c.State() == Playing && h.counter() == 1 })
	require.Contains(t, h.c.Status().UI, " Checkmate in 2")
	require.Equal(t, Playing, h.c.State())
}

func TestNewGameDiscardsOutstandingResult(t *testing.T) {
	s := newGated()
	h := newHarness(t, [2]bool{true, false}, s)
	oldID := h.c.GameID()

	h.c.Tick(tickDt)
	waitStarted(t, s)

	h.push(NewGame(), ToggleSide(board.White))
	require.Equal(t, Playing, h.c.State())
	require.Equal(t, "New game", h.c.Status().UI)

	s.release <- reply{move: board.PendingMove{Src: h.cell("e2"), Dst: h.cell("e4"), Score: 5}}
	h.tickUntil(func() bool { return !h.c.busy() })

	require.Equal(t, 0, h.counter())
	cells, err := h.shared.Snapshot()
	require.NoError(t, err)
	require.Equal(t, board.NewGame().Snapshot(), cells)
	require.NotEqual(t, oldID, h.c.GameID())
	require.Equal(t, Playing, h.c.State())
	_, ok := h.c.Selection()
	require.False(t, ok)
	require.EqualValues(t, 1, s.calls.Load())
}

func TestNewGameWhenIdleResetsImmediately(t *testing.T) {
	h := newHarness(t, [2]bool{false, false}, &firstLegal{})
	h.clicks("e2", "e4", "e7")
	h.push(NewGame())

	require.Equal(t, 0, h.counter())
	require.Equal(t, Playing, h.c.State())
	_, ok := h.c.Selection()
	require.False(t, ok)
	require.Len(t, h.c.Visuals(), 32)
}

func TestSearchPanicPoisonsUntilNewGame(t *testing.T) {
	s := newGated()
	h := newHarness(t, [2]bool{true, false}, s)

	h.c.Tick(tickDt)
	waitStarted(t, s)
	s.release <- reply{panic: true}
	h.tickUntil(func() bool { return h.c.State() == Terminated })
	require.Contains(t, h.c.Status().UI, "corrupted")

	_, err := h.shared.SideToMove()
	require.ErrorIs(t, err, session.ErrPoisoned)

	h.push(ToggleSide(board.White), NewGame())
	require.Equal(t, Playing, h.c.State())
	h.clicks("e2", "e4")
	require.Equal(t, 1, h.counter())
}

func TestEngineUnderpromotionIsCommittedAsPlayed(t *testing.T) {
	s := newGated()
	h := newHarnessFrom(t, "6br/5Ppk/6pp/8/8/8/8/K7 w - - 0 1", [2]bool{true, false}, s)

	h.c.Tick(tickDt)
	waitStarted(t, s)
	s.release <- reply{move: board.PendingMove{
		Src: h.cell("f7"), Dst: h.cell("f8"), Promo: board.Knight, Score: board.KingValue,
	}}
	h.tickUntil(func() bool { return h.c.State() != WaitingForEngine })

	require.Equal(t, Terminated, h.c.State())
	require.Contains(t, h.c.Status().UI, "Checkmate, game terminated!")
	p, err := h.shared.At(h.cell("f8"))
	require.NoError(t, err)
	require.Equal(t, board.WhiteKnight, p)
}

func TestOpeningLookupReportsPoisonedState(t *testing.T) {
	h := newHarness(t, [2]bool{false, false}, &firstLegal{})
	err := h.shared.WithGame(func(*board.Game) error { panic("boom") })
	require.ErrorIs(t, err, session.ErrPoisoned)

	_, _, err = h.c.opening()
	require.ErrorIs(t, err, session.ErrPoisoned)
}

func TestSearchErrorTerminates(t *testing.T) {
	s := newGated()
	h := newHarness(t, [2]bool{true, false}, s)

	h.c.Tick(tickDt)
	waitStarted(t, s)
	s.release <- reply{err: errors.New("engine died")}
	h.tickUntil(func() bool { return h.c.State() == Terminated })
	require.Contains(t, h.c.Status().UI, "engine died")
	require.EqualValues(t, 1, s.calls.Load())
}

func TestEngineIllegalMoveTerminates(t *testing.T) {
	s := newGated()
	h := newHarness(t, [2]bool{true, false}, s)

	h.c.Tick(tickDt)
	waitStarted(t, s)
	s.release <- reply{move: board.PendingMove{Src: h.cell("e2"), Dst: h.cell("e5")}}
	h.tickUntil(func() bool { return h.c.State() == Terminated })
	require.Equal(t, 0, h.counter())
}

func TestHumanCheckmateTerminates(t *testing.T) {
	h := newHarness(t, [2]bool{false, false}, &firstLegal{})
	h.clicks("f2", "f3", "e7", "e5", "g2", "g4", "d8", "h4")

	require.Equal(t, Terminated, h.c.State())
	require.Contains(t, h.c.Status().UI, "Checkmate, game terminated!")
	require.Empty(t, h.c.Status().Next)

	h.clicks("a2", "a3")
	require.Equal(t, 4, h.counter())
}

func TestEngineSelfPlayAlternatesParity(t *testing.T) {
	h := newHarness(t, [2]bool{true, true}, &firstLegal{})

	var commits []*Commit
	h.tickUntil(func() bool {
		commits = commits[:0]
		for _, u := range h.sink.updates {
			if u.Commit != nil {
				commits = append(commits, u.Commit)
			}
		}
		return len(commits) >= 6
	})
	for i, cm := range commits {
		require.Equal(t, i, cm.Record.Ply)
		require.True(t, cm.ByEngine)
		require.Equal(t, board.SideFromCounter(i), cm.Record.Mover.Side())
	}
}

func TestToggleTakesEffectOnNextTurn(t *testing.T) {
	s := newGated()
	h := newHarness(t, [2]bool{false, false}, s)

	h.push(ToggleSide(board.Black))
	require.Equal(t, "Human (1) vs Computer (2)", h.c.Status().Turn)
	require.Equal(t, Playing, h.c.State())

	h.clicks("e2", "e4")
	require.Equal(t, WaitingForEngine, h.c.State())
	waitStarted(t, s)
	s.release <- reply{move: board.PendingMove{Src: h.cell("e7"), Dst: h.cell("e5")}}
	h.tickUntil(func() bool { return h.c.State() == Playing })
}

func TestTimeControls(t *testing.T) {
	h := newHarness(t, [2]bool{false, false}, &firstLegal{})

	h.push(TimeUp(), TimeUp())
	require.InDelta(t, 2.1, h.c.SecsPerMove(), 1e-9)
	require.Equal(t, "Secs per move: 2.1", h.c.Status().Time)

	h.push(SetTime(10))
	require.Equal(t, 5.0, h.c.SecsPerMove())

	h.push(SetTime(0))
	for i := 0; i < 5; i++ {
		h.push(TimeDown())
	}
	require.Equal(t, 0.3, h.c.SecsPerMove())
}

func TestDispatchedBudgetReachesSearcher(t *testing.T) {
	var seen atomic.Value
	search := searchFunc(func(ctx context.Context, g *board.Game) (board.PendingMove, error) {
		seen.Store(g.SecsPerMove())
		return (&firstLegal{}).BestMove(ctx, g)
	})
	h := newHarness(t, [2]bool{false, false}, search)
	h.push(SetTime(1.5), ToggleSide(board.White))
	h.tickUntil(func() bool { return h.c.State() == Playing && seen.Load() != nil })
	require.Equal(t, 1.5, seen.Load())
}

func TestAnimationFramesOnlyWhileMoving(t *testing.T) {
	h := newHarness(t, [2]bool{false, false}, &firstLegal{})
	h.c.Tick(tickDt)
	h.clicks("g1", "f3")
	n := len(h.sink.updates)

	h.tickUntil(func() bool {
		v, _ := h.c.visuals.At(h.cell("f3"))
		return v.Pos == visual.CellCenter(h.cell("f3")) && v.Speed == 0
	})
	require.Greater(t, len(h.sink.updates), n)
	n = len(h.sink.updates)
	h.c.Tick(tickDt)
	h.c.Tick(tickDt)
	require.Len(t, h.sink.updates, n)
}

func TestCommitCarriesSnapshot(t *testing.T) {
	h := newHarness(t, [2]bool{false, false}, &firstLegal{})
	h.clicks("e2", "e4")

	var commit *Commit
	for _, u := range h.sink.updates {
		if u.Commit != nil {
			commit = u.Commit
		}
	}
	require.NotNil(t, commit)
	require.False(t, commit.ByEngine)
	require.Equal(t, board.WhitePawn, commit.Cells[h.cell("e4")])
	require.Equal(t, "e2e4", commit.Record.UCI)
	require.NotNil(t, h.sink.lastStatus())
}

type searchFunc func(ctx context.Context, g *board.Game) (board.PendingMove, error)

func (f searchFunc) BestMove(ctx context.Context, g *board.Game) (board.PendingMove, error) {
	return f(ctx, g)
}
