package uci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("engine pool closed")

type PoolConfig struct {
	BinaryPath string
	Options    Options
	Capacity   int
	Logger     *zap.Logger
}

// Pool keeps warm engine processes. Sessions that failed are closed on
// Release instead of being reused.
type Pool struct {
	binaryPath string
	opt        Options
	capacity   int
	logger     *zap.Logger
	spawn      func(ctx context.Context) (*Session, error)

	mu     sync.Mutex
	total  int
	closed bool
	idle   chan *Session
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.BinaryPath == "" {
		return nil, errors.New("engine binary path is required")
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}
	opt := cfg.Options.withDefaults()
	if err := opt.validate(); err != nil {
		return nil, err
	}
	p := newPool(cfg.Capacity, cfg.Logger)
	p.binaryPath = cfg.BinaryPath
	p.opt = opt
	p.spawn = func(ctx context.Context) (*Session, error) {
		return NewSession(ctx, p.binaryPath, p.opt, p.logger)
	}
	return p, nil
}

func newPool(capacity int, logger *zap.Logger) *Pool {
	if capacity <= 0 {
		capacity = defaultCapacity()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{capacity: capacity, logger: logger, idle: make(chan *Session, capacity)}
}

// Acquire hands out an idle session, starts a new one below capacity, or
// waits for a release.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	for {
		select {
		case s := <-p.idle:
			if s, ok := p.revive(ctx, s); ok {
				return s, nil
			}
			continue
		default:
		}

		if s, err := p.create(ctx); err == nil || !errors.Is(err, errAtCapacity) {
			return s, err
		}

		select {
		case s := <-p.idle:
			if s, ok := p.revive(ctx, s); ok {
				return s, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (p *Pool) revive(ctx context.Context, s *Session) (*Session, bool) {
	if s == nil {
		return nil, false
	}
	if err := s.EnsureReady(ctx); err != nil {
		p.logger.Warn("uci_session_dropped", zap.Error(err))
		p.discard(s)
		return nil, false
	}
	return s, true
}

var errAtCapacity = errors.New("engine pool at capacity")

func (p *Pool) create(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.total >= p.capacity {
		p.mu.Unlock()
		return nil, errAtCapacity
	}
	p.total++
	p.mu.Unlock()

	s, err := p.spawn(ctx)
	if err != nil {
		p.decrement()
		return nil, err
	}
	return s, nil
}

// Release returns s to the pool, or closes it when err is non-nil.
func (p *Pool) Release(s *Session, err error) {
	if s == nil {
		return
	}
	if err != nil {
		p.discard(s)
		return
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		p.discard(s)
		return
	}
	select {
	case p.idle <- s:
	default:
		p.discard(s)
	}
}

func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for {
		select {
		case s := <-p.idle:
			if err := s.Close(); err != nil {
				errs = append(errs, err)
			}
			p.decrement()
		default:
			return errors.Join(errs...)
		}
	}
}

func (p *Pool) discard(s *Session) {
	_ = s.Close()
	p.decrement()
}

func (p *Pool) decrement() {
	p.mu.Lock()
	if p.total > 0 {
		p.total--
	}
	p.mu.Unlock()
}

func defaultCapacity() int {
	return min(max(runtime.NumCPU()/2, 1), 2)
}
