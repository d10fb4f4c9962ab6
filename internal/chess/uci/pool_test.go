package uci

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fakePool(t *testing.T, capacity int) (*Pool, *int) {
	t.Helper()
	spawned := 0
	p := newPool(capacity, nil)
	p.spawn = func(ctx context.Context) (*Session, error) {
		spawned++
		f := &fakeEngine{}
		w, r := f.start(t)
		return NewSessionIO(ctx, w, r, Options{}, nil)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p, &spawned
}

func TestPoolReusesReleasedSession(t *testing.T) {
	p, spawned := fakePool(t, 1)
	ctx := context.Background()

	s1, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(s1, nil)

	s2, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Same(t, s1, s2)
	require.Equal(t, 1, *spawned)
	p.Release(s2, nil)
}

func TestPoolDiscardsFailedSession(t *testing.T) {
	p, spawned := fakePool(t, 1)
	ctx := context.Background()

	s1, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(s1, errors.New("read line: EOF"))

	s2, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NotSame(t, s1, s2)
	require.Equal(t, 2, *spawned)
	p.Release(s2, nil)
}

func TestPoolWaitsAtCapacity(t *testing.T) {
	p, _ := fakePool(t, 1)
	s, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	p.Release(s, nil)
}

func TestPoolRejectsAfterClose(t *testing.T) {
	p, _ := fakePool(t, 1)
	require.NoError(t, p.Close())
	_, err := p.Acquire(context.Background())
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestNewPoolChecksBinary(t *testing.T) {
	_, err := NewPool(PoolConfig{})
	require.Error(t, err)
	_, err = NewPool(PoolConfig{BinaryPath: "/nonexistent/stockfish"})
	require.Error(t, err)
}
