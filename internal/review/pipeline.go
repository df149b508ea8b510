// Package review grades every move of a game with an engine.
package review

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-review/internal/chess"
	"github.com/park285/chess-review/internal/chess/uci"
)

var (
	ErrInvalidGame     = errors.New("review: game has no moves")
	ErrTerminatedEarly = errors.New("review: terminated early")
)

const (
	DefaultDepth   = 18
	DefaultMultiPV = 3
)

type Options struct {
	Depth   int
	MultiPV int
	// Timeout bounds each engine search; 0 derives it from the depth.
	Timeout time.Duration
}

// MoveRecord is the verdict on one ply.
type MoveRecord struct {
	Ply            int
	MoveNumber     int
	PositionBefore chess.Position
	Move           chess.Move
	SAN            string
	Mover          chess.Color
	Quality        chess.Quality
	Eval           uci.Score
	HasEval        bool
	DisplayEval    string
	Delta          int
	BestMove       chess.Move
	BestSAN        string
	BestPV         []string
}

// MoveLabel is the move number prefix used in move lists: "12." for White,
// "12..." for Black.
func (r MoveRecord) MoveLabel() string {
	if r.Mover == chess.Black {
		return strconv.Itoa(r.MoveNumber) + "..."
	}
	return strconv.Itoa(r.MoveNumber) + "."
}

// Progress is called after each graded ply with the number done so far.
type Progress func(done, total int, rec MoveRecord)

type Report struct {
	Start    chess.Position
	Opening  chess.Opening
	Tags     map[string]string
	Records  []MoveRecord
	Complete bool
	Summary  Summary
}

type Pipeline struct {
	ev     chess.Evaluator
	opt    Options
	logger *zap.Logger
}

func NewPipeline(ev chess.Evaluator, opt Options, logger *zap.Logger) *Pipeline {
	if opt.Depth <= 0 {
		opt.Depth = DefaultDepth
	}
	if opt.MultiPV <= 0 {
		opt.MultiPV = DefaultMultiPV
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{ev: ev, opt: opt, logger: logger}
}

// Review grades the plies of game in order. When the engine fails part way
// the report holds the records produced so far with Complete unset and the
// error wraps ErrTerminatedEarly together with the cause.
func (p *Pipeline) Review(ctx context.Context, game chess.Game, progress Progress) (Report, error) {
	if len(game.Plies) == 0 {
		return Report{}, ErrInvalidGame
	}

	report := Report{
		Start:   game.Start,
		Opening: game.Opening,
		Tags:    game.Tags,
		Records: make([]MoveRecord, 0, len(game.Plies)),
	}
	assessOpt := chess.AssessOptions{Depth: p.opt.Depth, MultiPV: p.opt.MultiPV, Timeout: p.opt.Timeout}
	began := time.Now()

	for i, ply := range game.Plies {
		if err := ctx.Err(); err != nil {
			return p.stopped(report, i+1, err)
		}
		a, err := chess.AssessMove(ctx, p.ev, ply.Before, ply.Move, assessOpt)
		if err != nil {
			return p.stopped(report, i+1, err)
		}
		rec := recordFrom(i+1, ply, a)
		report.Records = append(report.Records, rec)
		if progress != nil {
			progress(len(report.Records), len(game.Plies), rec)
		}
	}

	report.Complete = true
	report.Summary = Summarize(report.Records, report.Opening)
	p.logger.Info("review_complete",
		zap.Int("plies", len(report.Records)),
		zap.Int("depth", p.opt.Depth),
		zap.Duration("elapsed", time.Since(began)))
	return report, nil
}

func (p *Pipeline) stopped(report Report, ply int, cause error) (Report, error) {
	report.Summary = Summarize(report.Records, report.Opening)
	p.logger.Warn("review_terminated",
		zap.Int("ply", ply),
		zap.Int("graded", len(report.Records)),
		zap.Error(cause))
	return report, fmt.Errorf("%w at ply %d: %w", ErrTerminatedEarly, ply, cause)
}

func recordFrom(ply int, p chess.Ply, a chess.Assessment) MoveRecord {
	san := a.SAN
	if san == "" {
		san = p.SAN
	}
	return MoveRecord{
		Ply:            ply,
		MoveNumber:     p.Before.MoveNumber(),
		PositionBefore: p.Before,
		Move:           a.Played.Move,
		SAN:            san,
		Mover:          a.Played.Mover,
		Quality:        a.Quality,
		Eval:           a.AfterScore,
		HasEval:        a.HasAfterScore,
		DisplayEval:    a.DisplayEval(),
		Delta:          a.Delta,
		BestMove:       a.Best.Move,
		BestSAN:        a.BestSAN,
		BestPV:         a.BestPV,
	}
}
