package uci

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

type PoolConfig struct {
	BinaryPath string
	// PerOptionsCapacity caps live sessions per distinct option set.
	PerOptionsCapacity int
	Logger             *zap.Logger
}

// Pool keeps warm engine sessions grouped by their option set.
type Pool struct {
	binaryPath string
	capacity   int
	logger     *zap.Logger

	mu       sync.Mutex
	closed   bool
	buckets  map[string]*sessionBucket
	sessions map[*Session]*sessionBucket
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("%w: binary path required", ErrEngineUnavailable)
	}
	path, err := exec.LookPath(cfg.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("%w: engine binary check: %w", ErrEngineUnavailable, err)
	}

	capacity := cfg.PerOptionsCapacity
	if capacity <= 0 {
		capacity = defaultPerOptionsCapacity()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pool{
		binaryPath: path,
		capacity:   capacity,
		logger:     logger,
		buckets:    make(map[string]*sessionBucket),
		sessions:   make(map[*Session]*sessionBucket),
	}, nil
}

func (p *Pool) BinaryPath() string {
	return p.binaryPath
}

// Acquire hands out an idle session for opt or starts a new one. It blocks
// while the bucket is at capacity.
func (p *Pool) Acquire(ctx context.Context, opt Options) (*Session, error) {
	if opt.Logger == nil {
		opt.Logger = p.logger
	}
	bucket, err := p.getBucket(opt)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case session := <-bucket.idle:
			if p.revive(ctx, session, bucket) {
				return session, nil
			}
			continue
		default:
		}

		session, err := bucket.create(ctx)
		if err == nil {
			p.track(session, bucket)
			return session, nil
		}
		if !errors.Is(err, errBucketAtCapacity) {
			return nil, err
		}

		select {
		case session := <-bucket.idle:
			if p.revive(ctx, session, bucket) {
				return session, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (p *Pool) revive(ctx context.Context, session *Session, bucket *sessionBucket) bool {
	if session == nil {
		return false
	}
	if err := session.EnsureReady(ctx); err != nil {
		p.logger.Debug("engine_pool_discard_idle", zap.Error(err))
		bucket.discard(session)
		return false
	}
	p.track(session, bucket)
	return true
}

// Release returns a session to its bucket. A non-nil err means the caller
// saw the session misbehave and it is closed instead.
func (p *Pool) Release(session *Session, err error) {
	if session == nil {
		return
	}

	p.mu.Lock()
	bucket, ok := p.sessions[session]
	closed := p.closed
	if ok {
		delete(p.sessions, session)
	}
	p.mu.Unlock()

	if !ok {
		_ = session.Close()
		return
	}
	if err != nil || closed || !bucket.put(session) {
		bucket.discard(session)
	}
}

func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	buckets := make([]*sessionBucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.mu.Unlock()

	var errs []error
	for _, bucket := range buckets {
	drain:
		for {
			select {
			case session := <-bucket.idle:
				if session == nil {
					continue
				}
				if err := session.Close(); err != nil {
					errs = append(errs, err)
				}
				bucket.decrement()
			default:
				break drain
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (p *Pool) track(session *Session, bucket *sessionBucket) {
	p.mu.Lock()
	p.sessions[session] = bucket
	p.mu.Unlock()
}

func (p *Pool) getBucket(opt Options) (*sessionBucket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrSessionClosed
	}
	key := optionsKey(opt)
	bucket, ok := p.buckets[key]
	if !ok {
		bucket = newSessionBucket(p.binaryPath, opt, p.capacity)
		p.buckets[key] = bucket
	}
	return bucket, nil
}

type sessionBucket struct {
	opt        Options
	capacity   int
	binaryPath string

	mu    sync.Mutex
	total int
	idle  chan *Session
}

var errBucketAtCapacity = errors.New("session bucket at capacity")

func newSessionBucket(binaryPath string, opt Options, capacity int) *sessionBucket {
	if capacity <= 0 {
		capacity = 1
	}
	return &sessionBucket{
		opt:        opt,
		capacity:   capacity,
		binaryPath: binaryPath,
		idle:       make(chan *Session, capacity),
	}
}

func (b *sessionBucket) create(ctx context.Context) (*Session, error) {
	b.mu.Lock()
	if b.total >= b.capacity {
		b.mu.Unlock()
		return nil, errBucketAtCapacity
	}
	b.total++
	b.mu.Unlock()

	session, err := Open(ctx, b.binaryPath, b.opt)
	if err != nil {
		b.decrement()
		return nil, err
	}
	return session, nil
}

func (b *sessionBucket) put(session *Session) bool {
	select {
	case b.idle <- session:
		return true
	default:
		return false
	}
}

func (b *sessionBucket) discard(session *Session) {
	if session != nil {
		_ = session.Close()
	}
	b.decrement()
}

func (b *sessionBucket) decrement() {
	b.mu.Lock()
	if b.total > 0 {
		b.total--
	}
	b.mu.Unlock()
}

func optionsKey(opt Options) string {
	return fmt.Sprintf("thr=%d|hash=%d|multipv=%d", opt.Threads, opt.HashMB, opt.MultiPV)
}

func defaultPerOptionsCapacity() int {
	cpu := runtime.NumCPU()
	if cpu < 2 {
		return 2
	}
	if cpu > 4 {
		return 4
	}
	return cpu
}
