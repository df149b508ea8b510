// Package httpapi exposes review jobs over REST and live analysis over a
// websocket.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/park285/chess-review/internal/adapter/reviewpresenter"
	"github.com/park285/chess-review/internal/analysis"
	"github.com/park285/chess-review/internal/chess"
	reviewsvc "github.com/park285/chess-review/internal/service/review"
	"github.com/park285/chess-review/pkg/reviewdto"
)

const (
	maxPGNBytes               = 1 << 20
	defaultMaxLiveConnections = 4
)

// ReviewService is the job API the handlers need. *reviewsvc.Service
// satisfies it.
type ReviewService interface {
	Submit(ctx context.Context, pgn, profile string) (*reviewsvc.Job, error)
	Get(id string) (*reviewsvc.Job, error)
	AnnotatedPGN(id string) (string, error)
}

type Config struct {
	Addr string
	// LiveProfile configures sessions opened for websocket clients.
	LiveProfile chess.AnalysisProfile
	// MaxLiveConnections caps concurrent websocket clients; each may hold
	// two engine processes.
	MaxLiveConnections int
	Logger             *zap.Logger
}

type Server struct {
	reviews   ReviewService
	live      analysis.Opener
	liveSlots chan struct{}
	cfg       Config
	logger    *zap.Logger
}

// NewServer wires the handlers. live may be nil, which disables /api/live.
func NewServer(reviews ReviewService, live analysis.Opener, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.MaxLiveConnections <= 0 {
		cfg.MaxLiveConnections = defaultMaxLiveConnections
	}
	return &Server{
		reviews:   reviews,
		live:      live,
		liveSlots: make(chan struct{}, cfg.MaxLiveConnections),
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/reviews", s.submitReview)
	api.HandleFunc("GET /api/reviews/{id}", s.getReview)
	api.HandleFunc("GET /api/reviews/{id}/pgn", s.getReviewPGN)
	api.HandleFunc("GET /api/profiles", s.listProfiles)
	api.HandleFunc("GET /api/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	root := http.NewServeMux()
	root.Handle("/api/", gzhttp.GzipHandler(api))
	// websocket upgrades must not pass through the gzip writer
	root.HandleFunc("GET /api/live", s.liveAnalysis)
	return root
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http_listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) submitReview(w http.ResponseWriter, r *http.Request) {
	var req reviewdto.SubmitReviewRequest
	body := io.LimitReader(r.Body, maxPGNBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	job, err := s.reviews.Submit(r.Context(), req.PGN, req.Profile)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/reviews/"+job.ID)
	writeJSON(w, http.StatusAccepted, reviewdto.SubmitReviewResponse{ID: job.ID, Status: string(job.Status)})
}

func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	job, err := s.reviews.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewpresenter.ToDTOJob(job))
}

func (s *Server) getReviewPGN(w http.ResponseWriter, r *http.Request) {
	pgn, err := s.reviews.AnnotatedPGN(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-chess-pgn")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, pgn)
}

func (s *Server) listProfiles(w http.ResponseWriter, _ *http.Request) {
	names := chess.ProfileNames()
	out := make([]chess.AnalysisProfile, 0, len(names))
	for _, name := range names {
		if p, err := chess.GetProfile(name); err == nil {
			out = append(out, p)
		}
	}
	writeJSON(w, http.StatusOK, out)
}
