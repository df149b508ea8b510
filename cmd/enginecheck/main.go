// Command enginecheck verifies that a UCI engine binary talks to the
// session layer: handshake, an iterative search and a multi-line search.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/park285/chess-review/internal/chess"
	"github.com/park285/chess-review/internal/chess/uci"
)

func main() {
	path := os.Getenv("STOCKFISH_PATH")
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if path == "" {
		log.Fatal("STOCKFISH_PATH (or a binary argument) is required")
	}
	depth := 12
	if v := os.Getenv("CHECK_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			depth = n
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	start := time.Now()
	session, err := uci.Open(ctx, path, uci.Options{Threads: 1, HashMB: 32, MultiPV: 3})
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer session.Close()
	log.Printf("handshake ok in %s", time.Since(start).Round(time.Millisecond))

	pos := chess.StartPosition()
	req := uci.Request{FEN: pos.FEN(), Depth: depth, MultiPV: 1}
	for res, err := range session.EvaluateIterative(ctx, req) {
		if err != nil {
			log.Fatalf("iterative search: %v", err)
		}
		if best, ok := res.Best(); ok {
			fmt.Printf("depth %2d  %-7s %v\n", res.Depth, best.Score, chess.LineSAN(pos, best.Moves))
		}
	}

	start = time.Now()
	res, err := session.Evaluate(ctx, uci.Request{FEN: pos.FEN(), Depth: depth, MultiPV: 3})
	if err != nil {
		log.Fatalf("multipv search: %v", err)
	}
	log.Printf("multipv depth %d in %s, bestmove %s", res.Depth, time.Since(start).Round(time.Millisecond), res.BestMove)
	for _, v := range res.Variations {
		san, err := chess.SAN(pos, chess.Move(v.Move()))
		if err != nil {
			san = v.Move()
		}
		fmt.Printf("  #%d %-6s %s\n", v.Rank, san, v.Score)
	}
}
