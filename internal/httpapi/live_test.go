package httpapi

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-review/internal/analysis"
	"github.com/park285/chess-review/internal/chess"
	"github.com/park285/chess-review/internal/chess/uci"
	"github.com/park285/chess-review/pkg/reviewdto"
)

type liveEngine struct{}

func (liveEngine) Evaluate(_ context.Context, req uci.Request) (uci.Result, error) {
	return uci.Result{
		Depth:      req.Depth,
		Variations: []uci.Variation{{Rank: 1, Depth: req.Depth, Score: uci.Centipawns(30), Moves: []string{"e2e4"}}},
		BestMove:   "e2e4",
	}, nil
}

func (liveEngine) EvaluateIterative(ctx context.Context, req uci.Request) iter.Seq2[uci.Result, error] {
	return func(yield func(uci.Result, error) bool) {
		for d := 1; d <= req.Depth; d++ {
			select {
			case <-ctx.Done():
				yield(uci.Result{}, ctx.Err())
				return
			case <-time.After(time.Millisecond):
			}
			res := uci.Result{Depth: d, Variations: []uci.Variation{{Rank: 1, Depth: d, Score: uci.Centipawns(d), Moves: []string{"e7e5"}}}}
			if !yield(res, nil) {
				return
			}
		}
	}
}

func (liveEngine) Close() error { return nil }

func newLiveServer(t *testing.T, maxConns int) *httptest.Server {
	t.Helper()
	opener := func(context.Context) (analysis.Engine, error) { return liveEngine{}, nil }
	profile := chess.AnalysisProfile{Name: "test", Threads: 1, HashMB: 16, Depth: 4, MultiPV: 3, LiveMaxDepth: 3}
	ts := httptest.NewServer(NewServer(&fakeReviews{}, opener, Config{LiveProfile: profile, MaxLiveConnections: maxConns}).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dialURL(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/live", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func dialLive(t *testing.T) (*websocket.Conn, context.Context) {
	t.Helper()
	ts := newLiveServer(t, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return dialURL(t, ctx, ts), ctx
}

func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(reviewdto.ServerFrame) bool) reviewdto.ServerFrame {
	t.Helper()
	for {
		var f reviewdto.ServerFrame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(f) {
			return f
		}
	}
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, f reviewdto.ClientFrame) {
	t.Helper()
	if err := wsjson.Write(ctx, conn, f); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLiveAnalysis(t *testing.T) {
	conn, ctx := dialLive(t)

	ready := readUntil(t, ctx, conn, func(f reviewdto.ServerFrame) bool { return true })
	if ready.Type != reviewdto.FrameReady || ready.Connection == "" || ready.Profile != "test" {
		t.Fatalf("first frame = %+v", ready)
	}

	start := chess.StartPosition()
	send(t, ctx, conn, reviewdto.ClientFrame{Type: reviewdto.FramePosition, FEN: start.FEN()})
	update := readUntil(t, ctx, conn, func(f reviewdto.ServerFrame) bool {
		return f.Type == reviewdto.FrameUpdate && f.Depth == 3
	})
	if update.Generation != 1 || update.FEN != start.FEN() || update.Eval != "+0.03" {
		t.Fatalf("update = %+v", update)
	}

	send(t, ctx, conn, reviewdto.ClientFrame{Type: reviewdto.FrameMove, FEN: start.FEN(), Move: "e2e4"})
	c := readUntil(t, ctx, conn, func(f reviewdto.ServerFrame) bool { return f.Type == reviewdto.FrameClassification })
	if c.Generation != 2 || c.SAN != "e4" || c.Quality != "Best" || c.Eval != "+0.30" {
		t.Fatalf("classification = %+v", c)
	}

	send(t, ctx, conn, reviewdto.ClientFrame{Type: reviewdto.FrameMove, FEN: start.FEN(), Move: "e2e5"})
	e := readUntil(t, ctx, conn, func(f reviewdto.ServerFrame) bool { return f.Type == reviewdto.FrameError })
	if e.Error == nil || e.Error.Code != "illegal_move" {
		t.Fatalf("error frame = %+v", e)
	}

	send(t, ctx, conn, reviewdto.ClientFrame{Type: "resign"})
	e = readUntil(t, ctx, conn, func(f reviewdto.ServerFrame) bool { return f.Type == reviewdto.FrameError })
	if e.Error == nil || e.Error.Code != "bad_request" {
		t.Fatalf("error frame = %+v", e)
	}
}

func TestLiveAnalysisConnectionCap(t *testing.T) {
	ts := newLiveServer(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first := dialURL(t, ctx, ts)
	readUntil(t, ctx, first, func(f reviewdto.ServerFrame) bool { return f.Type == reviewdto.FrameReady })

	resp, err := http.Get(ts.URL + "/api/live")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body reviewdto.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable || body.Error.Code != "unavailable" || !body.Error.Retryable {
		t.Fatalf("status = %d, body = %+v", resp.StatusCode, body)
	}

	_ = first.Close(websocket.StatusNormalClosure, "")
	deadline := time.Now().Add(3 * time.Second)
	for {
		conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/live", nil)
		if err == nil {
			readUntil(t, ctx, conn, func(f reviewdto.ServerFrame) bool { return f.Type == reviewdto.FrameReady })
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("slot not released after close: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
