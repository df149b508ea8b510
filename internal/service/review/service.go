// Package review runs game reviews as background jobs on pooled engine
// sessions.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-review/internal/chess"
	"github.com/park285/chess-review/internal/domain"
	corereview "github.com/park285/chess-review/internal/review"
	"github.com/park285/chess-review/pkg/reviewdto"
)

var (
	ErrJobNotFound    = errors.New("review job not found")
	ErrJobNotReady    = errors.New("review job has no graded moves yet")
	ErrUnknownProfile = chess.ErrUnknownProfile
	ErrServiceClosed  = errors.New("review service closed")
)

// Provider hands out engine sessions configured for an analysis profile.
// *chess.Engine satisfies it.
type Provider interface {
	Acquire(ctx context.Context, profile string) (chess.EngineLease, error)
}

// Notifier is told when a job finished.
type Notifier interface {
	NotifyReview(ctx context.Context, n reviewdto.ReviewNotification) error
}

// Job is a submitted review: bookkeeping plus the game and its report.
type Job struct {
	domain.ReviewJob
	Game   chess.Game
	Report corereview.Report
}

func (j *Job) clone() *Job {
	cp := *j
	cp.Report.Records = append([]corereview.MoveRecord(nil), j.Report.Records...)
	return &cp
}

type Config struct {
	DefaultProfile string
	Annotator      string
	Notifier       Notifier
	NotifyTimeout  time.Duration
}

type Service struct {
	engine Provider
	store  Store
	cfg    Config
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewService(engine Provider, store Store, cfg Config, logger *zap.Logger) *Service {
	if store == nil {
		store = NewMemoryStore(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.DefaultProfile) == "" {
		cfg.DefaultProfile = chess.DefaultProfileName
	}
	if cfg.Annotator == "" {
		cfg.Annotator = "chess-review"
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		engine: engine,
		store:  store,
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit validates pgnText and queues its review. Parsing errors are
// returned synchronously; engine errors end up on the job.
func (s *Service) Submit(ctx context.Context, pgnText, profile string) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(profile) == "" {
		profile = s.cfg.DefaultProfile
	}
	p, err := chess.GetProfile(profile)
	if err != nil {
		return nil, err
	}
	game, err := chess.ParseGame(pgnText)
	if err != nil {
		return nil, err
	}
	if len(game.Plies) == 0 {
		return nil, corereview.ErrInvalidGame
	}

	job := &Job{
		ReviewJob: domain.ReviewJob{
			ID:          uuid.NewString(),
			Profile:     p.Name,
			Status:      domain.ReviewQueued,
			Plies:       len(game.Plies),
			SubmittedAt: time.Now(),
		},
		Game: game,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClosed
	}
	s.store.Put(job)
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("review_submitted",
		zap.String("job", job.ID),
		zap.String("profile", p.Name),
		zap.Int("plies", len(game.Plies)))
	go s.run(job.ID, p, game)
	return job.clone(), nil
}

func (s *Service) Get(id string) (*Job, error) {
	job, ok := s.store.Get(strings.TrimSpace(id))
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// AnnotatedPGN exports whatever the job graded so far.
func (s *Service) AnnotatedPGN(id string) (string, error) {
	job, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if len(job.Report.Records) == 0 {
		return "", ErrJobNotReady
	}
	return corereview.AnnotatedPGN(job.Report, s.cfg.Annotator), nil
}

func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *Service) run(id string, profile chess.AnalysisProfile, game chess.Game) {
	defer s.wg.Done()

	lease, err := s.engine.Acquire(s.ctx, profile.Name)
	if err != nil {
		s.finish(id, corereview.Report{}, fmt.Errorf("acquire engine: %w", err))
		return
	}
	s.store.Update(id, func(j *Job) {
		j.Status = domain.ReviewRunning
		j.StartedAt = time.Now()
	})

	pipeline := corereview.NewPipeline(lease, corereview.Options{
		Depth:   profile.Depth,
		MultiPV: profile.MultiPV,
	}, s.logger.With(zap.String("job", id)))

	report, err := pipeline.Review(s.ctx, game, func(done, _ int, _ corereview.MoveRecord) {
		s.store.Update(id, func(j *Job) { j.Graded = done })
	})
	lease.Release(err)
	s.finish(id, report, err)
}

func (s *Service) finish(id string, report corereview.Report, err error) {
	var summary corereview.Summary
	ok := s.store.Update(id, func(j *Job) {
		j.Report = report
		j.Graded = len(report.Records)
		j.FinishedAt = time.Now()
		if j.StartedAt.IsZero() {
			j.StartedAt = j.FinishedAt
		}
		if err != nil {
			j.Status = domain.ReviewFailed
			j.Error = err.Error()
		} else {
			j.Status = domain.ReviewDone
		}
		summary = report.Summary
	})
	if !ok {
		return
	}

	if err != nil {
		s.logger.Warn("review_failed", zap.String("job", id), zap.Int("graded", len(report.Records)), zap.Error(err))
	} else {
		s.logger.Info("review_done", zap.String("job", id), zap.Int("graded", len(report.Records)))
	}
	s.notify(id, err, summary)
}

func (s *Service) notify(id string, err error, summary corereview.Summary) {
	if s.cfg.Notifier == nil {
		return
	}
	n := reviewdto.ReviewNotification{
		ID:      id,
		Status:  string(domain.ReviewDone),
		Summary: SummaryDTO(summary),
	}
	if err != nil {
		n.Status = string(domain.ReviewFailed)
		n.Error = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.cfg.NotifyTimeout)
	defer cancel()
	if nerr := s.cfg.Notifier.NotifyReview(ctx, n); nerr != nil {
		s.logger.Warn("review_notify_failed", zap.String("job", id), zap.Error(nerr))
	}
}

func SummaryDTO(s corereview.Summary) reviewdto.Summary {
	return reviewdto.Summary{
		OpeningECO:  s.Opening.ECO,
		OpeningName: s.Opening.Name,
		White:       sideDTO(s.White),
		Black:       sideDTO(s.Black),
	}
}

func sideDTO(s corereview.SideSummary) reviewdto.SideSummary {
	counts := make(map[string]int, len(s.Counts))
	for q, n := range s.Counts {
		counts[q.String()] = n
	}
	return reviewdto.SideSummary{
		Moves:       s.Moves,
		Counts:      counts,
		AverageLoss: s.AverageLoss,
	}
}
