package chess

import (
	"time"

	"github.com/park285/Cheese-ChessFront/internal/board"
	"github.com/park285/Cheese-ChessFront/internal/chess/uci"
)

// limitsFor turns the per-move budget into engine limits. movetime carries
// the budget; depth is only a cap.
func limitsFor(g *board.Game, maxDepth int) uci.Limits {
	l := uci.Limits{MoveTime: budgetOf(g)}
	if l.MoveTime < 10*time.Millisecond {
		l.MoveTime = 10 * time.Millisecond
	}
	if maxDepth > 0 && maxDepth < defaultMaxDepth {
		l.Depth = maxDepth
	}
	return l
}

// scoreFromUCI maps an engine score onto the sentinel scale. "mate N" for
// the mover scores KingValue-2(N-1); being mated in N scores
// -(KingValue-2N+1). Centipawns are clamped below the mate threshold.
func scoreFromUCI(s uci.Score) int {
	switch {
	case s.Mate > 0:
		return board.KingValue - 2*(s.Mate-1)
	case s.Mate < 0:
		return -(board.KingValue + 2*s.Mate + 1)
	}
	return min(max(s.CP, -board.MateThreshold), board.MateThreshold)
}
