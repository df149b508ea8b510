package chess

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/chess-review/internal/chess/uci"
)

type EngineConfig struct {
	BinaryPath string
	// Capacity caps concurrent sessions per profile.
	Capacity int
	Logger   *zap.Logger
}

// Engine hands out pooled engine sessions configured for an analysis profile.
type Engine struct {
	pool   *uci.Pool
	logger *zap.Logger
}

// EngineLease is a pooled session reserved for one caller.
type EngineLease interface {
	Evaluator
	Profile() AnalysisProfile
	// Release returns the session; pass the error that ended the work so a
	// broken session is not reused.
	Release(err error)
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := uci.NewPool(uci.PoolConfig{
		BinaryPath:         cfg.BinaryPath,
		PerOptionsCapacity: cfg.Capacity,
		Logger:             logger,
	})
	if err != nil {
		return nil, err
	}
	return &Engine{pool: pool, logger: logger}, nil
}

func (e *Engine) BinaryPath() string {
	return e.pool.BinaryPath()
}

// Acquire reserves a session for the named profile and resets it for a new game.
func (e *Engine) Acquire(ctx context.Context, profileName string) (EngineLease, error) {
	p, err := GetProfile(profileName)
	if err != nil {
		return nil, err
	}
	session, err := e.pool.Acquire(ctx, SessionOptions(p))
	if err != nil {
		return nil, err
	}
	if err := session.NewGame(ctx); err != nil {
		e.pool.Release(session, err)
		return nil, err
	}
	return &lease{session: session, profile: p, pool: e.pool}, nil
}

// OpenSession starts a dedicated, unpooled session for p. The caller owns it.
func (e *Engine) OpenSession(ctx context.Context, profileName string) (*uci.Session, error) {
	p, err := GetProfile(profileName)
	if err != nil {
		return nil, err
	}
	opt := SessionOptions(p)
	opt.Logger = e.logger
	return uci.Open(ctx, e.pool.BinaryPath(), opt)
}

func (e *Engine) Close() error {
	if e.pool == nil {
		return nil
	}
	return e.pool.Close()
}

type lease struct {
	session *uci.Session
	profile AnalysisProfile
	pool    *uci.Pool
	once    sync.Once
}

func (l *lease) Evaluate(ctx context.Context, req uci.Request) (uci.Result, error) {
	return l.session.Evaluate(ctx, req)
}

func (l *lease) Profile() AnalysisProfile {
	return l.profile
}

func (l *lease) Release(err error) {
	l.once.Do(func() {
		if !errors.Is(err, uci.ErrEngineCommunication) {
			err = nil
		}
		l.pool.Release(l.session, err)
	})
}
