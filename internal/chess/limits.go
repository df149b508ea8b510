package chess

import (
	"github.com/park285/chess-review/internal/chess/uci"
)

// SessionOptions are the engine options a session for p starts with.
func SessionOptions(p AnalysisProfile) uci.Options {
	return uci.Options{
		Threads: p.Threads,
		HashMB:  p.HashMB,
		MultiPV: p.MultiPV,
	}
}

func AssessOptionsFor(p AnalysisProfile) AssessOptions {
	return AssessOptions{
		Depth:   p.Depth,
		MultiPV: p.MultiPV,
	}
}

// LiveRequest is the open-ended iterative search for the displayed
// position. It has no deadline; superseding it is what stops it.
func LiveRequest(p AnalysisProfile, pos Position) uci.Request {
	return uci.Request{
		FEN:     pos.FEN(),
		Depth:   p.LiveMaxDepth,
		MultiPV: 1,
		Timeout: -1,
	}
}
