package uci

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newFakePool(t *testing.T, capacity int) *Pool {
	t.Helper()
	exe := fakeEnginePath(t, "", 0)
	p, err := NewPool(PoolConfig{BinaryPath: exe, PerOptionsCapacity: capacity})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPoolReusesReleasedSession(t *testing.T) {
	p := newFakePool(t, 2)
	opt := Options{Threads: 1, HashMB: 16, MultiPV: 3}

	first, err := p.Acquire(context.Background(), opt)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	p.Release(first, nil)

	second, err := p.Acquire(context.Background(), opt)
	if err != nil {
		t.Fatalf("acquire again: %v", err)
	}
	if first != second {
		t.Fatal("expected the idle session to be reused")
	}
	p.Release(second, nil)
}

func TestPoolDiscardsFailedSession(t *testing.T) {
	p := newFakePool(t, 1)
	opt := Options{MultiPV: 1}

	first, err := p.Acquire(context.Background(), opt)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	p.Release(first, errors.New("engine misbehaved"))

	second, err := p.Acquire(context.Background(), opt)
	if err != nil {
		t.Fatalf("acquire after discard: %v", err)
	}
	if first == second {
		t.Fatal("failed session must not be reused")
	}
	if _, err := first.Evaluate(context.Background(), Request{Depth: 1}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("discarded session err = %v", err)
	}
	p.Release(second, nil)
}

func TestPoolBlocksAtCapacity(t *testing.T) {
	p := newFakePool(t, 1)
	opt := Options{MultiPV: 1}

	held, err := p.Acquire(context.Background(), opt)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer p.Release(held, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(ctx, opt); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestNewPoolRequiresBinary(t *testing.T) {
	if _, err := NewPool(PoolConfig{BinaryPath: "/nonexistent/stockfish"}); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("err = %v, want ErrEngineUnavailable", err)
	}
}
