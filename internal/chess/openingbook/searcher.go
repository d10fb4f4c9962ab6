package openingbook

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/park285/Cheese-ChessFront/internal/board"
	"go.uber.org/zap"
)

// DefaultMaxPly stops book lookups after the first twenty half-moves.
const DefaultMaxPly = 20

type Delegate interface {
	BestMove(ctx context.Context, g *board.Game) (board.PendingMove, error)
}

// Searcher plays book moves while the game is young and the position is in
// the book, and asks the delegate otherwise.
type Searcher struct {
	book   *Book
	next   Delegate
	maxPly int
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSearcher(book *Book, next Delegate, maxPly int, logger *zap.Logger) (*Searcher, error) {
	if book == nil || next == nil {
		return nil, errors.New("openingbook: book and delegate are required")
	}
	if maxPly <= 0 {
		maxPly = DefaultMaxPly
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		book:   book,
		next:   next,
		maxPly: maxPly,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (s *Searcher) BestMove(ctx context.Context, g *board.Game) (board.PendingMove, error) {
	if g.MoveCounter() < s.maxPly {
		entries, err := s.book.Moves(g)
		if err != nil {
			s.logger.Warn("book_lookup_failed", zap.Error(err))
		}
		if len(entries) > 0 {
			s.mu.Lock()
			e := pickWeighted(entries, s.rng)
			s.mu.Unlock()
			s.logger.Debug("book_move",
				zap.Stringer("move", e.Move()),
				zap.Uint16("weight", e.Weight),
				zap.Int("choices", len(entries)),
			)
			return e.Move(), nil
		}
	}
	return s.next.BestMove(ctx, g)
}

// pickWeighted draws an entry with probability proportional to its weight.
// When every weight is zero the first entry wins.
func pickWeighted(entries []Entry, r *rand.Rand) Entry {
	total := 0
	for _, e := range entries {
		total += int(e.Weight)
	}
	if total == 0 {
		return entries[0]
	}
	threshold := r.Intn(total)
	for _, e := range entries {
		threshold -= int(e.Weight)
		if threshold < 0 {
			return e
		}
	}
	return entries[len(entries)-1]
}
