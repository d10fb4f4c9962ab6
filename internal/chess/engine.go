package chess

import (
	"context"
	"fmt"
	"time"

	"github.com/park285/Cheese-ChessFront/internal/board"
	"github.com/park285/Cheese-ChessFront/internal/chess/uci"
	"go.uber.org/zap"
)

// sessionPool is the part of uci.Pool the searcher uses.
type sessionPool interface {
	Acquire(ctx context.Context) (*uci.Session, error)
	Release(s *uci.Session, err error)
	Close() error
}

// UCISearcher asks an external engine for the best move, handing it the
// per-move budget as movetime.
type UCISearcher struct {
	pool     sessionPool
	maxDepth int
	logger   *zap.Logger
}

type UCIConfig struct {
	BinaryPath string
	Threads    int
	HashMB     int
	Elo        int
	MaxDepth   int
}

func NewUCISearcher(cfg UCIConfig, logger *zap.Logger) (*UCISearcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := uci.NewPool(uci.PoolConfig{
		BinaryPath: cfg.BinaryPath,
		Options: uci.Options{
			Threads: cfg.Threads,
			HashMB:  cfg.HashMB,
			Elo:     cfg.Elo,
		},
		Capacity: 1,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	return &UCISearcher{pool: pool, maxDepth: cfg.MaxDepth, logger: logger}, nil
}

func (e *UCISearcher) BestMove(ctx context.Context, g *board.Game) (board.PendingMove, error) {
	start := time.Now()
	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return board.PendingMove{}, fmt.Errorf("acquire engine: %w", err)
	}
	var releaseErr error
	defer func() {
		e.pool.Release(session, releaseErr)
	}()

	limits := limitsFor(g, e.maxDepth)
	resp, err := session.Search(ctx, uci.SearchRequest{FEN: g.FEN(), Limits: limits})
	if err != nil {
		releaseErr = err
		return board.PendingMove{}, fmt.Errorf("engine search: %w", err)
	}

	mv, err := parseBestMove(resp.BestMove)
	if err != nil {
		return board.PendingMove{}, err
	}
	if best, ok := resp.Best(); ok && best.Move == resp.BestMove {
		mv.Score = scoreFromUCI(best.Score)
	}
	e.logger.Debug("uci_bestmove",
		zap.String("move", resp.BestMove),
		zap.Int("score", mv.Score),
		zap.Duration("movetime", limits.MoveTime),
		zap.Duration("elapsed", time.Since(start)),
	)
	return mv, nil
}

func (e *UCISearcher) Close() error {
	if e.pool == nil {
		return nil
	}
	return e.pool.Close()
}

// parseBestMove reads "e2e4" or "e7e8n", keeping the promotion piece.
func parseBestMove(s string) (board.PendingMove, error) {
	if s == "" || s == "(none)" || s == "0000" {
		return board.PendingMove{}, ErrNoMove
	}
	mv, err := board.ParseUCIMove(s)
	if err != nil {
		return board.PendingMove{}, fmt.Errorf("bestmove %q: %w", s, err)
	}
	return mv, nil
}
