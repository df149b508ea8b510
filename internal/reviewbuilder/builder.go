// Package reviewbuilder wires the review service from configuration.
package reviewbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/chess-review/internal/analysis"
	"github.com/park285/chess-review/internal/chess"
	"github.com/park285/chess-review/internal/config"
	"github.com/park285/chess-review/internal/httpapi"
	"github.com/park285/chess-review/internal/notify"
	reviewsvc "github.com/park285/chess-review/internal/service/review"
)

type Deps struct {
	Profile chess.AnalysisProfile
	Engine  *chess.Engine
	Service *reviewsvc.Service
	Server  *httpapi.Server
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	profile, err := cfg.ApplyProfiles()
	if err != nil {
		return nil, fmt.Errorf("analysis profile: %w", err)
	}

	engine, err := chess.NewEngine(chess.EngineConfig{
		BinaryPath: cfg.StockfishPath,
		Capacity:   cfg.MaxConcurrentReviews,
		Logger:     logger.Named("engine"),
	})
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}

	svcCfg := reviewsvc.Config{DefaultProfile: profile.Name}
	if url := strings.TrimSpace(cfg.WebhookURL); url != "" {
		opts := []notify.Option{notify.WithLogger(logger.Named("webhook"))}
		if token := strings.TrimSpace(cfg.WebhookToken); token != "" {
			opts = append(opts, notify.WithHeaderProvider(func() map[string]string {
				return map[string]string{"Authorization": "Bearer " + token}
			}))
		}
		svcCfg.Notifier = notify.NewWebhook(url, opts...)
	}
	service := reviewsvc.NewService(engine, reviewsvc.NewMemoryStore(cfg.ReviewRetention), svcCfg, logger.Named("review"))

	server := httpapi.NewServer(service, LiveOpener(engine, profile.Name), httpapi.Config{
		Addr:               cfg.HTTPAddr,
		LiveProfile:        profile,
		MaxLiveConnections: cfg.MaxLiveConnections,
		Logger:             logger.Named("http"),
	})

	logger.Info("review_service_ready",
		zap.String("engine", engine.BinaryPath()),
		zap.String("profile", profile.Name),
		zap.Int("depth", profile.Depth),
		zap.Int("multipv", profile.MultiPV),
		zap.Bool("webhook", svcCfg.Notifier != nil))

	return &Deps{Profile: profile, Engine: engine, Service: service, Server: server}, nil
}

// LiveOpener opens dedicated sessions for live analysis; they are owned by
// the supervisor, not the pool.
func LiveOpener(engine *chess.Engine, profile string) analysis.Opener {
	return func(ctx context.Context) (analysis.Engine, error) {
		session, err := engine.OpenSession(ctx, profile)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// Run serves until ctx ends or a member fails, then drains the service and
// the engine pool. A failed engine warm-up stops the server.
func (d *Deps) Run(ctx context.Context) error {
	return runGroup(ctx, d.Server.Run, d.warmUp, d.Close)
}

func (d *Deps) warmUp(ctx context.Context) error {
	lease, err := d.Engine.Acquire(ctx, d.Profile.Name)
	if err != nil {
		return err
	}
	lease.Release(nil)
	return nil
}

func runGroup(ctx context.Context, serve, warmUp func(context.Context) error, drain func() error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serve(gctx)
	})
	g.Go(func() error {
		if err := warmUp(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("engine warm-up: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return drain()
	})
	return g.Wait()
}

// Close stops running reviews before the engines they use.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.Service != nil {
		errs = append(errs, d.Service.Close())
	}
	if d.Engine != nil {
		errs = append(errs, d.Engine.Close())
	}
	return errors.Join(errs...)
}
