package evalcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/park285/Cheese-ChessFront/internal/board"
	"go.uber.org/zap"
)

// BucketMillis groups budgets so 2.00s and 2.04s share an entry.
const BucketMillis = 250

// Delegate is the searcher being cached.
type Delegate interface {
	BestMove(ctx context.Context, g *board.Game) (board.PendingMove, error)
}

type entry struct {
	Src   string `json:"src"`
	Dst   string `json:"dst"`
	Promo string `json:"promo,omitempty"`
	Score int    `json:"score"`
}

// Searcher serves best moves from a Store and falls back to the delegate.
type Searcher struct {
	next   Delegate
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

func New(next Delegate, store Store, ttl time.Duration, logger *zap.Logger) (*Searcher, error) {
	if next == nil {
		return nil, errors.New("evalcache: nil delegate")
	}
	if store == nil {
		return nil, errors.New("evalcache: nil store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{next: next, store: store, ttl: ttl, logger: logger}, nil
}

func (s *Searcher) BestMove(ctx context.Context, g *board.Game) (board.PendingMove, error) {
	key := Key(g.FEN(), g.SecsPerMove())

	if mv, ok := s.lookup(ctx, g, key); ok {
		s.logger.Debug("evalcache_hit", zap.String("key", key), zap.String("move", mv.String()))
		return mv, nil
	}

	mv, err := s.next.BestMove(ctx, g)
	if err != nil {
		return mv, err
	}
	e := entry{Src: mv.Src.String(), Dst: mv.Dst.String(), Score: mv.Score}
	if mv.Promo != board.NoKind {
		e.Promo = strings.ToLower(mv.Promo.String())
	}
	raw, err := json.Marshal(e)
	if err == nil {
		err = s.store.Set(ctx, key, raw, s.ttl)
	}
	if err != nil {
		s.logger.Warn("evalcache_store_failed", zap.String("key", key), zap.Error(err))
	}
	return mv, nil
}

func (s *Searcher) lookup(ctx context.Context, g *board.Game, key string) (board.PendingMove, bool) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return board.PendingMove{}, false
	}
	if err != nil {
		s.logger.Warn("evalcache_get_failed", zap.String("key", key), zap.Error(err))
		return board.PendingMove{}, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		s.logger.Warn("evalcache_corrupt_entry", zap.String("key", key), zap.Error(err))
		return board.PendingMove{}, false
	}
	mv, err := board.ParseUCIMove(e.Src + e.Dst + e.Promo)
	if err != nil || !g.IsLegalMove(mv) {
		return board.PendingMove{}, false
	}
	mv.Score = e.Score
	return mv, true
}

// Close releases the backing store.
func (s *Searcher) Close() error { return s.store.Close() }

// Key drops the FEN move clocks so transpositions reached at different move
// numbers share an entry.
func Key(fen string, secs float64) string {
	fields := strings.Fields(fen)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	bucket := int64(math.Round(secs*1000/BucketMillis)) * BucketMillis
	return fmt.Sprintf("bestmove:%s:%d", strings.Join(fields, " "), bucket)
}
