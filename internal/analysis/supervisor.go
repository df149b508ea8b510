// Package analysis runs live engine analysis for an interactive board.
package analysis

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/park285/chess-review/internal/chess"
	"github.com/park285/chess-review/internal/chess/uci"
)

const FailureLabel = "analysis unavailable"

// Engine is one owned engine session. *uci.Session satisfies it.
type Engine interface {
	Evaluate(ctx context.Context, req uci.Request) (uci.Result, error)
	EvaluateIterative(ctx context.Context, req uci.Request) iter.Seq2[uci.Result, error]
	Close() error
}

type Opener func(ctx context.Context) (Engine, error)

type TaskKind string

const (
	TaskContinuous     TaskKind = "continuous"
	TaskClassification TaskKind = "classification"
)

type Update struct {
	Generation uint64
	FEN        string
	Depth      int
	Score      uci.Score
	Eval       string
	PV         []string
	PVSAN      []string
}

type Classification struct {
	Generation uint64
	FEN        string
	Move       chess.Move
	SAN        string
	Quality    chess.Quality
	Eval       string
	BestMove   chess.Move
	BestSAN    string
	Delta      int
}

type Failure struct {
	Generation uint64
	Kind       TaskKind
	Label      string
	Err        error
}

// Handler receives results. Calls are serialized and made while the
// supervisor holds its delivery lock: handlers must return quickly and must
// not call back into the supervisor.
type Handler interface {
	OnUpdate(Update)
	OnClassification(Classification)
	OnFailure(Failure)
}

type HandlerFuncs struct {
	Update         func(Update)
	Classification func(Classification)
	Failure        func(Failure)
}

func (h HandlerFuncs) OnUpdate(u Update) {
	if h.Update != nil {
		h.Update(u)
	}
}

func (h HandlerFuncs) OnClassification(c Classification) {
	if h.Classification != nil {
		h.Classification(c)
	}
}

func (h HandlerFuncs) OnFailure(f Failure) {
	if h.Failure != nil {
		h.Failure(f)
	}
}

type Config struct {
	Profile chess.AnalysisProfile
	Logger  *zap.Logger
}

func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

type slot struct {
	kind TaskKind

	openMu sync.Mutex
	engine Engine

	// guarded by Supervisor.mu
	ctx    context.Context
	cancel context.CancelFunc
	gen    uint64
}

// Supervisor owns two lazily opened sessions: one for continuous analysis,
// one for move classification.
type Supervisor struct {
	open    Opener
	handler Handler
	profile chess.AnalysisProfile
	logger  *zap.Logger

	gen       atomic.Uint64
	deliverMu sync.Mutex

	mu     sync.Mutex
	closed bool
	root   context.Context
	stop   context.CancelFunc
	slots  map[TaskKind]*slot
	wg     sync.WaitGroup
}

func NewSupervisor(open Opener, handler Handler, cfg Config) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if handler == nil {
		handler = HandlerFuncs{}
	}
	profile := cfg.Profile
	if profile.Name == "" {
		profile, _ = chess.GetProfile("")
	}
	root, stop := context.WithCancel(context.Background())
	return &Supervisor{
		open:    open,
		handler: handler,
		profile: profile,
		logger:  logger,
		root:    root,
		stop:    stop,
		slots: map[TaskKind]*slot{
			TaskContinuous:     {kind: TaskContinuous},
			TaskClassification: {kind: TaskClassification},
		},
	}
}

func (s *Supervisor) Generation() uint64 {
	return s.gen.Load()
}

// StartContinuous supersedes every running task and starts deepening
// analysis of pos. It returns the new generation.
func (s *Supervisor) StartContinuous(pos chess.Position) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen := s.advance()
	if s.closed {
		return gen
	}
	for _, sl := range s.slots {
		s.cancelLocked(sl)
	}
	ctx := s.taskContextLocked(s.slots[TaskContinuous], gen)
	s.wg.Add(1)
	go s.runContinuous(ctx, gen, pos)
	return gen
}

// StartClassification grades mv played from before. The result is delivered
// only if no newer generation was started meanwhile.
func (s *Supervisor) StartClassification(before chess.Position, mv chess.Move) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen := s.gen.Load()
	if s.closed {
		return gen
	}
	ctx := s.taskContextLocked(s.slots[TaskClassification], gen)
	s.wg.Add(1)
	go s.runClassification(ctx, gen, before, mv)
	return gen
}

// Cancel stops running tasks without starting a new generation.
func (s *Supervisor) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slots {
		s.cancelLocked(sl)
	}
}

func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.advance()
	s.stop()
	for _, sl := range s.slots {
		s.cancelLocked(sl)
	}
	s.mu.Unlock()

	s.wg.Wait()

	var errs []error
	for _, sl := range s.slots {
		sl.openMu.Lock()
		if sl.engine != nil {
			if err := sl.engine.Close(); err != nil {
				errs = append(errs, err)
			}
			sl.engine = nil
		}
		sl.openMu.Unlock()
	}
	return errors.Join(errs...)
}

func (s *Supervisor) advance() uint64 {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	return s.gen.Add(1)
}

// deliver runs fn only while gen is still current.
func (s *Supervisor) deliver(gen uint64, fn func()) bool {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.gen.Load() != gen {
		return false
	}
	fn()
	return true
}

func (s *Supervisor) taskContextLocked(sl *slot, gen uint64) context.Context {
	if sl.cancel != nil && sl.gen == gen {
		return sl.ctx
	}
	s.cancelLocked(sl)
	ctx, cancel := context.WithCancel(s.root)
	sl.ctx, sl.cancel, sl.gen = ctx, cancel, gen
	return ctx
}

func (s *Supervisor) cancelLocked(sl *slot) {
	if sl.cancel != nil {
		sl.cancel()
		sl.ctx, sl.cancel = nil, nil
	}
}

func (s *Supervisor) runContinuous(ctx context.Context, gen uint64, pos chess.Position) {
	defer s.wg.Done()
	sl := s.slots[TaskContinuous]
	eng, err := s.engine(ctx, sl)
	if err != nil {
		s.fail(gen, sl, nil, err)
		return
	}

	req := chess.LiveRequest(s.profile, pos)
	for res, err := range eng.EvaluateIterative(ctx, req) {
		if err != nil {
			s.fail(gen, sl, eng, err)
			return
		}
		best, ok := res.Best()
		if !ok {
			continue
		}
		update := Update{
			Generation: gen,
			FEN:        pos.FEN(),
			Depth:      res.Depth,
			Score:      best.Score,
			Eval:       best.Score.String(),
			PV:         best.Moves,
			PVSAN:      chess.LineSAN(pos, best.Moves),
		}
		if !s.deliver(gen, func() { s.handler.OnUpdate(update) }) {
			return
		}
	}
}

func (s *Supervisor) runClassification(ctx context.Context, gen uint64, before chess.Position, mv chess.Move) {
	defer s.wg.Done()
	sl := s.slots[TaskClassification]

	if _, err := chess.DescribeMove(before, mv); err != nil {
		s.fail(gen, sl, nil, err)
		return
	}
	eng, err := s.engine(ctx, sl)
	if err != nil {
		s.fail(gen, sl, nil, err)
		return
	}

	a, err := chess.AssessMove(ctx, eng, before, mv, chess.AssessOptionsFor(s.profile))
	if err != nil {
		s.fail(gen, sl, eng, err)
		return
	}
	c := Classification{
		Generation: gen,
		FEN:        before.FEN(),
		Move:       a.Played.Move,
		SAN:        a.SAN,
		Quality:    a.Quality,
		Eval:       a.DisplayEval(),
		BestMove:   a.Best.Move,
		BestSAN:    a.BestSAN,
		Delta:      a.Delta,
	}
	s.deliver(gen, func() { s.handler.OnClassification(c) })
}

func (s *Supervisor) engine(ctx context.Context, sl *slot) (Engine, error) {
	sl.openMu.Lock()
	defer sl.openMu.Unlock()
	if sl.engine != nil {
		return sl.engine, nil
	}
	eng, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	sl.engine = eng
	s.logger.Debug("analysis_engine_opened", zap.String("task", string(sl.kind)))
	return eng, nil
}

func (s *Supervisor) discard(sl *slot, eng Engine) {
	sl.openMu.Lock()
	if sl.engine == eng {
		sl.engine = nil
	}
	sl.openMu.Unlock()
	if err := eng.Close(); err != nil {
		s.logger.Debug("analysis_engine_close_failed", zap.Error(err))
	}
}

func (s *Supervisor) fail(gen uint64, sl *slot, eng Engine, err error) {
	if IsCancelled(err) {
		return
	}
	if eng != nil && errors.Is(err, uci.ErrEngineCommunication) {
		s.discard(sl, eng)
	}
	label := FailureLabel
	if errors.Is(err, chess.ErrIllegalMove) || errors.Is(err, chess.ErrInvalidPosition) {
		label = "illegal move"
	}
	s.logger.Warn("analysis_task_failed",
		zap.String("task", string(sl.kind)),
		zap.Uint64("generation", gen),
		zap.Error(err))
	f := Failure{Generation: gen, Kind: sl.kind, Label: label, Err: err}
	s.deliver(gen, func() { s.handler.OnFailure(f) })
}
