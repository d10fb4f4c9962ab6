package chess

import (
	"context"
	"errors"
	"sort"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-ChessFront/internal/board"
	"go.uber.org/zap"
)

var ErrNoMove = errors.New("no legal move")

const (
	defaultMaxDepth = 64
	quiescenceDepth = 6
	checkEvery      = 1024
	infinity        = board.KingValue + 1
)

// Negamax is the built-in searcher: iterative deepening alpha-beta with a
// capture-only quiescence tail. It stops at the per-move budget, at MaxDepth
// or as soon as it proves a forced mate.
type Negamax struct {
	MaxDepth int
	logger   *zap.Logger
}

func NewNegamax(maxDepth int, logger *zap.Logger) *Negamax {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Negamax{MaxDepth: maxDepth, logger: logger}
}

func (n *Negamax) BestMove(ctx context.Context, g *board.Game) (board.PendingMove, error) {
	start := time.Now()
	budget := budgetOf(g)
	pos := g.Position()

	root := searchable(pos, pos.ValidMoves())
	if len(root) == 0 {
		return board.PendingMove{}, ErrNoMove
	}

	s := &search{ctx: ctx, deadline: start.Add(budget)}
	best, bestScore := root[0], -infinity
	depth := 0
	for d := 1; d <= n.MaxDepth; d++ {
		mv, score, ok := s.root(pos, root, d)
		if !ok {
			break
		}
		best, bestScore, depth = mv, score, d
		if s.aborted {
			break
		}
		if score > board.MateThreshold || score < -board.MateThreshold {
			break
		}
		// the next iteration costs several times this one
		if time.Since(start) > budget/2 {
			break
		}
		root = promote(root, best)
	}
	if depth == 0 {
		// not even depth 1 finished; fall back to the best-ordered move
		bestScore = -evaluate(pos.Update(&best))
	}

	n.logger.Debug("negamax_done",
		zap.String("move", best.String()),
		zap.Int("score", bestScore),
		zap.Int("depth", depth),
		zap.Int("nodes", s.nodes),
		zap.Duration("elapsed", time.Since(start)),
	)
	return board.PendingMove{
		Src:   board.Cell(best.S1()),
		Dst:   board.Cell(best.S2()),
		Promo: board.KindOf(best.Promo()),
		Score: bestScore,
	}, nil
}

type search struct {
	ctx      context.Context
	deadline time.Time
	nodes    int
	aborted  bool
}

func (s *search) tick() bool {
	s.nodes++
	if s.nodes%checkEvery == 0 {
		if time.Now().After(s.deadline) || s.ctx.Err() != nil {
			s.aborted = true
		}
	}
	return s.aborted
}

// root searches every root move to depth. Depth 1 always completes so there
// is a scored answer even on tiny budgets; the caller stops deepening once
// the search has aborted.
func (s *search) root(pos *nchess.Position, moves []nchess.Move, depth int) (nchess.Move, int, bool) {
	alpha := -infinity
	best := moves[0]
	for i := range moves {
		child := pos.Update(&moves[i])
		var score int
		if depth == 1 {
			score = -s.leaf(child, -alpha)
		} else {
			score = -s.negamax(child, depth-1, 1, -infinity, -alpha)
			if s.aborted {
				return nchess.Move{}, 0, false
			}
		}
		if score > alpha {
			alpha, best = score, moves[i]
		}
	}
	return best, alpha, true
}

// leaf scores a child of the root for its side to move. Mate and stalemate
// are always detected; once the search has aborted the quiescence tail gives
// way to the static evaluation.
func (s *search) leaf(pos *nchess.Position, beta int) int {
	s.nodes++
	if len(pos.ValidMoves()) == 0 {
		if pos.Status() == nchess.Checkmate {
			return -board.KingValue
		}
		return 0
	}
	if !s.aborted {
		score := s.quiesce(pos, -infinity, beta, quiescenceDepth)
		if !s.aborted {
			return score
		}
	}
	return evaluate(pos)
}

// negamax scores pos, reached after ply half-moves, for its side to move.
// Being mated at ply p scores -(KingValue-(p-1)), so quicker mates score
// higher for the winner.
func (s *search) negamax(pos *nchess.Position, depth, ply, alpha, beta int) int {
	if s.tick() {
		return 0
	}
	moves := pos.ValidMoves()
	if len(moves) == 0 {
		if pos.Status() == nchess.Checkmate {
			return -(board.KingValue - (ply - 1))
		}
		return 0
	}
	if depth <= 0 {
		return s.quiesce(pos, alpha, beta, quiescenceDepth)
	}
	for _, m := range searchable(pos, moves) {
		score := -s.negamax(pos.Update(&m), depth-1, ply+1, -beta, -alpha)
		if s.aborted {
			return 0
		}
		if score >= beta {
			return beta
		}
		if score > alpha {
			alpha = score
		}
	}
	return alpha
}

func (s *search) quiesce(pos *nchess.Position, alpha, beta, left int) int {
	stand := evaluate(pos)
	if stand >= beta {
		return beta
	}
	if stand > alpha {
		alpha = stand
	}
	if left == 0 {
		return alpha
	}
	for _, m := range searchable(pos, pos.ValidMoves()) {
		if !m.HasTag(nchess.Capture) && !m.HasTag(nchess.EnPassant) {
			continue
		}
		if s.tick() {
			return 0
		}
		score := -s.quiesce(pos.Update(&m), -beta, -alpha, left-1)
		if s.aborted {
			return 0
		}
		if score >= beta {
			return beta
		}
		if score > alpha {
			alpha = score
		}
	}
	return alpha
}

// searchable drops under-promotions and sorts the rest best-first.
func searchable(pos *nchess.Position, moves []nchess.Move) []nchess.Move {
	out := moves[:0:0]
	for _, m := range moves {
		if p := m.Promo(); p != nchess.NoPieceType && p != nchess.Queen {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return moveOrder(pos, &out[i]) > moveOrder(pos, &out[j])
	})
	return out
}

// promote moves best to the front for the next iteration.
func promote(moves []nchess.Move, best nchess.Move) []nchess.Move {
	for i := range moves {
		if moves[i].S1() == best.S1() && moves[i].S2() == best.S2() {
			copy(moves[1:i+1], moves[:i])
			moves[0] = best
			break
		}
	}
	return moves
}

func budgetOf(g *board.Game) time.Duration {
	secs := g.SecsPerMove()
	if secs <= 0 {
		secs = board.DefaultSecsPerMove
	}
	return time.Duration(secs * float64(time.Second))
}
