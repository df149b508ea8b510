package chess

import (
	"context"
	"fmt"
	"time"

	"github.com/park285/chess-review/internal/chess/uci"
)

// Evaluator is the part of an engine session move assessment needs.
type Evaluator interface {
	Evaluate(ctx context.Context, req uci.Request) (uci.Result, error)
}

type AssessOptions struct {
	Depth   int
	MultiPV int
	Timeout time.Duration
}

const (
	defaultAssessDepth   = 18
	defaultAssessMultiPV = 3
)

// Assessment is everything learned about one move: the engine's view of the
// position before it, the evaluation after it and the resulting label.
type Assessment struct {
	Played  PlayedMove
	SAN     string
	After   Position
	Best    Line
	BestSAN string
	BestPV  []string
	Second  *Line

	HasBestScore  bool
	AfterScore    uci.Score
	HasAfterScore bool
	Delta         int
	Quality       Quality
}

// DisplayEval renders the evaluation after the move, or "unknown".
func (a Assessment) DisplayEval() string {
	if !a.HasAfterScore {
		return "unknown"
	}
	return a.AfterScore.String()
}

// AssessMove analyses before with several lines, analyses the position after
// mv with one line and classifies mv. When the first analysis yields no line
// a plain bestmove search is used so the best move is still known.
func AssessMove(ctx context.Context, ev Evaluator, before Position, mv Move, opt AssessOptions) (Assessment, error) {
	played, err := DescribeMove(before, mv)
	if err != nil {
		return Assessment{}, err
	}
	after, err := Apply(before, mv)
	if err != nil {
		return Assessment{}, err
	}
	san, err := SAN(before, mv)
	if err != nil {
		return Assessment{}, err
	}

	depth := opt.Depth
	if depth <= 0 {
		depth = defaultAssessDepth
	}
	multiPV := opt.MultiPV
	if multiPV <= 0 {
		multiPV = defaultAssessMultiPV
	}

	a := Assessment{Played: played, SAN: san, After: after}

	res, err := ev.Evaluate(ctx, uci.Request{FEN: before.FEN(), Depth: depth, MultiPV: multiPV, Timeout: opt.Timeout})
	if err != nil {
		return Assessment{}, fmt.Errorf("analyse position before %s: %w", san, err)
	}
	if best, ok := res.Best(); ok && best.Move() != "" {
		a.Best = LineFrom(best)
		a.BestPV = best.Moves
		a.HasBestScore = true
		if second, ok := res.Second(); ok && second.Move() != "" {
			line := LineFrom(second)
			a.Second = &line
		}
	} else {
		bestMove := res.BestMove
		if bestMove == "" {
			fallback, err := ev.Evaluate(ctx, uci.Request{FEN: before.FEN(), Depth: depth, MultiPV: 1, Timeout: opt.Timeout})
			if err != nil {
				return Assessment{}, fmt.Errorf("best move before %s: %w", san, err)
			}
			bestMove = fallback.BestMove
		}
		a.Best = Line{Move: Move(bestMove)}
	}
	if a.Best.Move != "" {
		if bestSAN, err := SAN(before, a.Best.Move); err == nil {
			a.BestSAN = bestSAN
		} else {
			a.BestSAN = a.Best.Move.String()
		}
	}

	if score, ok := Terminal(after); ok {
		a.AfterScore, a.HasAfterScore = score, true
	} else {
		res, err := ev.Evaluate(ctx, uci.Request{FEN: after.FEN(), Depth: depth, MultiPV: 1, Timeout: opt.Timeout})
		if err != nil {
			return Assessment{}, fmt.Errorf("analyse position after %s: %w", san, err)
		}
		if v, ok := res.Best(); ok {
			a.AfterScore, a.HasAfterScore = v.Score, true
		}
	}

	if a.HasBestScore && a.HasAfterScore {
		a.Delta = MoverDelta(a.Best.Score, a.AfterScore, played.Mover)
	}
	a.Quality = Classify(a.Best, a.Second, played, a.Delta)
	return a, nil
}
