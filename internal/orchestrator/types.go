package orchestrator

import (
	"context"

	"github.com/park285/Cheese-ChessFront/internal/board"
	"github.com/park285/Cheese-ChessFront/internal/visual"
)

// State is the session lifecycle.
type State uint8

const (
	Playing State = iota
	WaitingForEngine
	Terminated
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case WaitingForEngine:
		return "waiting_for_engine"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Searcher computes the engine's reply. It runs on a worker goroutine with
// exclusive access to g and may take as long as g.SecsPerMove() suggests.
type Searcher interface {
	BestMove(ctx context.Context, g *board.Game) (board.PendingMove, error)
}

// Status holds the four display lines.
type Status struct {
	UI   string
	Turn string
	Time string
	Next string
}

// Commit describes a move that was just applied.
type Commit struct {
	Record      board.MoveRecord
	Description string
	Cells       [64]board.Piece
	ByEngine    bool
	Score       int
}

// Update is what one tick produced for the presentation. Pieces is only set
// on ticks where a visual moved or was created/destroyed.
type Update struct {
	GameID  string
	Tick    uint64
	State   State
	Changes []visual.Change
	Pieces  []visual.PieceVisual
	Status  *Status
	Commit  *Commit
}

func (u Update) Empty() bool {
	return len(u.Changes) == 0 && u.Pieces == nil && u.Status == nil && u.Commit == nil
}

// Sink receives per-tick updates. Publish is called from the interactive
// loop and must not block.
type Sink interface {
	Publish(u Update)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Update)

func (f SinkFunc) Publish(u Update) { f(u) }
