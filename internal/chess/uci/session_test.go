package uci

import (
	"context"
	"errors"
	"testing"
	"time"
)

const blackToMoveFEN = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"

func TestSessionEvaluateMultiPV(t *testing.T) {
	s := openFake(t, "", 0, Options{Threads: 2, HashMB: 16, MultiPV: 1})

	res, err := s.Evaluate(context.Background(), Request{Depth: 5, MultiPV: 3})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Depth != 5 {
		t.Fatalf("depth = %d, want 5", res.Depth)
	}
	if len(res.Variations) != 3 {
		t.Fatalf("variations = %d, want 3", len(res.Variations))
	}
	for i, v := range res.Variations {
		if v.Rank != i+1 {
			t.Fatalf("variation %d has rank %d", i, v.Rank)
		}
		if v.Move() != fakeMoves[i] {
			t.Fatalf("variation %d move = %s, want %s", i, v.Move(), fakeMoves[i])
		}
	}
	if got := res.Variations[0].Score; got.IsMate || got.CP != 25 {
		t.Fatalf("best score = %+v, want cp 25", got)
	}
	if got := res.Variations[1].Score.CP; got != -25 {
		t.Fatalf("second score = %d, want -25", got)
	}
	if res.BestMove != "e2e4" || res.Ponder != "e7e5" {
		t.Fatalf("bestmove = %q ponder %q", res.BestMove, res.Ponder)
	}
}

func TestSessionNormalizesScoreForBlack(t *testing.T) {
	s := openFake(t, "", 0, Options{})

	res, err := s.Evaluate(context.Background(), Request{FEN: blackToMoveFEN, Depth: 5})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	best, ok := res.Best()
	if !ok {
		t.Fatal("no variation")
	}
	if best.Score.CP != -25 {
		t.Fatalf("score = %d, want -25 from White's view", best.Score.CP)
	}

	// startpos plus one move is also Black to move
	res, err = s.Evaluate(context.Background(), Request{Moves: []string{"e2e4"}, Depth: 5})
	if err != nil {
		t.Fatalf("evaluate with moves: %v", err)
	}
	if best, _ := res.Best(); best.Score.CP != -25 {
		t.Fatalf("score after moves = %d, want -25", best.Score.CP)
	}
}

func TestSessionMateScores(t *testing.T) {
	s := openFake(t, "mate", 0, Options{})

	res, err := s.Evaluate(context.Background(), Request{FEN: blackToMoveFEN, Depth: 3})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	best, _ := res.Best()
	if !best.Score.IsMate || best.Score.Mate != -3 || best.Score.WhiteWins {
		t.Fatalf("score = %+v, want Black mates in 3", best.Score)
	}
	if got := best.Score.Value(); got != -MateValue+3 {
		t.Fatalf("value = %d", got)
	}
}

func TestSessionMatedPositionHasNoMove(t *testing.T) {
	s := openFake(t, "mated", 0, Options{MultiPV: 3})

	res, err := s.Evaluate(context.Background(), Request{FEN: blackToMoveFEN, Depth: 10, MultiPV: 3})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.BestMove != "" {
		t.Fatalf("bestmove = %q, want empty", res.BestMove)
	}
	best, ok := res.Best()
	if !ok {
		t.Fatal("expected the mate score to be kept")
	}
	if best.Move() != "" || !best.Score.IsMate || !best.Score.WhiteWins {
		t.Fatalf("variation = %+v, want White delivered mate", best)
	}
}

func TestSessionIterativeBreakStopsSearch(t *testing.T) {
	s := openFake(t, "", 10*time.Millisecond, Options{})

	var depths []int
	for res, err := range s.EvaluateIterative(context.Background(), Request{Depth: 60, Timeout: -1}) {
		if err != nil {
			t.Fatalf("iterative: %v", err)
		}
		depths = append(depths, res.Depth)
		if res.Depth == 3 {
			break
		}
	}
	if len(depths) != 3 || depths[0] != 1 || depths[2] != 3 {
		t.Fatalf("depths = %v, want [1 2 3]", depths)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := s.Evaluate(ctx, Request{Depth: 2})
	if err != nil {
		t.Fatalf("evaluate after break: %v", err)
	}
	if res.Depth != 2 {
		t.Fatalf("depth = %d, want 2 (stale output leaked?)", res.Depth)
	}
}

func TestSessionEvaluateCancelReturnsPartial(t *testing.T) {
	s := openFake(t, "", 20*time.Millisecond, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	res, err := s.Evaluate(ctx, Request{Depth: 60, Timeout: -1})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if res.Depth == 0 || len(res.Variations) == 0 {
		t.Fatalf("expected partial result, got %+v", res)
	}

	if _, err := s.Evaluate(context.Background(), Request{Depth: 1}); err != nil {
		t.Fatalf("session unusable after cancel: %v", err)
	}
}

func TestSessionSearchDeadlineKeepsBestResult(t *testing.T) {
	s := openFake(t, "", 30*time.Millisecond, Options{})

	res, err := s.Evaluate(context.Background(), Request{Depth: 60, Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Depth == 0 || res.BestMove == "" {
		t.Fatalf("result = %+v", res)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	s := openFake(t, "", 0, Options{})

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := s.Evaluate(context.Background(), Request{Depth: 1}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("err = %v, want ErrSessionClosed", err)
	}
}

func TestSessionCrashMarksUnusable(t *testing.T) {
	s := openFake(t, "crash", 0, Options{})

	if _, err := s.Evaluate(context.Background(), Request{Depth: 4}); !errors.Is(err, ErrEngineCommunication) {
		t.Fatalf("err = %v, want ErrEngineCommunication", err)
	}
	if _, err := s.Evaluate(context.Background(), Request{Depth: 4}); !errors.Is(err, ErrEngineCommunication) {
		t.Fatalf("second err = %v, want ErrEngineCommunication", err)
	}
}

func TestOpenMissingBinary(t *testing.T) {
	_, err := Open(context.Background(), "/nonexistent/stockfish", Options{})
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("err = %v, want ErrEngineUnavailable", err)
	}
}

func TestOpenHandshakeTimeout(t *testing.T) {
	exe := fakeEnginePath(t, "mute", 0)

	start := time.Now()
	_, err := Open(context.Background(), exe, Options{HandshakeTimeout: 200 * time.Millisecond})
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("err = %v, want ErrEngineUnavailable", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("handshake timeout not honoured")
	}
}

func TestEvaluateRejectsZeroDepth(t *testing.T) {
	s := openFake(t, "", 0, Options{})
	if _, err := s.Evaluate(context.Background(), Request{}); err == nil {
		t.Fatal("expected error for zero depth")
	}
}
