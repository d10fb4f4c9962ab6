// Package session owns the game state shared between the interactive loop
// and the background search.
//
// Every access takes the single mutex. The one long hold is the search
// itself: WithGame keeps the lock for the whole searcher call, so the loop
// must not touch the session while a search is outstanding.
package session

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/park285/Cheese-ChessFront/internal/board"
	"go.uber.org/zap"
)

var (
	// ErrPoisoned is returned by every accessor after a panic escaped while
	// the state was held. Only Reset clears it.
	ErrPoisoned       = errors.New("game state poisoned")
	// ErrSearchPanicked wraps the recovered panic value.
	ErrSearchPanicked = errors.New("panic while holding game state")
)

// Shared guards one board.Game.
type Shared struct {
	mu       sync.Mutex
	game     *board.Game
	poisoned error
	gameID   uuid.UUID

	// generation is bumped on every reset. It is readable without the lock
	// so a result can be checked against it while a search holds the mutex.
	generation atomic.Uint64

	logger *zap.Logger
}

func New(secsPerMove float64, logger *zap.Logger) *Shared {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := board.NewGame()
	g.SetSecsPerMove(secsPerMove)
	return &Shared{game: g, gameID: uuid.New(), logger: logger}
}

// NewFrom wraps an existing game, used by tests that start from a FEN.
func NewFrom(g *board.Game, logger *zap.Logger) *Shared {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shared{game: g, gameID: uuid.New(), logger: logger}
}

func (s *Shared) Generation() uint64 { return s.generation.Load() }

// GameID identifies the current game; it changes on every reset.
func (s *Shared) GameID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameID
}

// Snapshot returns the board cells.
func (s *Shared) Snapshot() (cells [64]board.Piece, err error) {
	err = s.do(func(g *board.Game) error {
		cells = g.Snapshot()
		return nil
	})
	return cells, err
}

// SideToMove derives the side from the move counter parity.
func (s *Shared) SideToMove() (side board.Side, err error) {
	err = s.do(func(g *board.Game) error {
		side = g.SideToMove()
		return nil
	})
	return side, err
}

func (s *Shared) MoveCounter() (n int, err error) {
	err = s.do(func(g *board.Game) error {
		n = g.MoveCounter()
		return nil
	})
	return n, err
}

func (s *Shared) At(c board.Cell) (p board.Piece, err error) {
	err = s.do(func(g *board.Game) error {
		p = g.At(c)
		return nil
	})
	return p, err
}

func (s *Shared) IsLegal(src, dst board.Cell) (ok bool, err error) {
	err = s.do(func(g *board.Game) error {
		ok = g.IsLegal(src, dst)
		return nil
	})
	return ok, err
}

// Apply commits a two-click move and returns its record with the rules'
// description.
func (s *Shared) Apply(src, dst board.Cell) (board.MoveRecord, string, error) {
	return s.ApplyMove(board.PendingMove{Src: src, Dst: dst})
}

// ApplyMove commits m including its promotion piece.
func (s *Shared) ApplyMove(m board.PendingMove) (rec board.MoveRecord, desc string, err error) {
	err = s.do(func(g *board.Game) error {
		r, aerr := g.ApplyMove(m)
		if aerr != nil {
			return aerr
		}
		rec = r
		desc = g.Describe(r)
		return nil
	})
	return rec, desc, err
}

func (s *Shared) SetSecsPerMove(secs float64) error {
	return s.do(func(g *board.Game) error {
		g.SetSecsPerMove(secs)
		return nil
	})
}

// WithGame runs fn with exclusive access for its whole duration. Searchers
// run inside it. A panic in fn poisons the state and comes back as an error.
func (s *Shared) WithGame(fn func(g *board.Game) error) error {
	return s.do(fn)
}

// Reset restores the starting position, clears poisoning, mints a new game
// id and bumps the generation. It returns the new generation.
func (s *Shared) Reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	secs := s.game.SecsPerMove()
	s.game = board.NewGame()
	s.game.SetSecsPerMove(secs)
	s.poisoned = nil
	s.gameID = uuid.New()
	return s.generation.Add(1)
}

// Invalidate bumps the generation without touching the board, so anything
// dispatched before it is recognised as stale. It never blocks.
func (s *Shared) Invalidate() uint64 {
	return s.generation.Add(1)
}

func (s *Shared) do(fn func(g *board.Game) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisoned != nil {
		return fmt.Errorf("%w: %v", ErrPoisoned, s.poisoned)
	}
	defer func() {
		if r := recover(); r != nil {
			s.poisoned = fmt.Errorf("%w: %v", ErrSearchPanicked, r)
			s.logger.Error("game_state_poisoned",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("%w: %w", ErrPoisoned, s.poisoned)
		}
	}()
	return fn(s.game)
}
