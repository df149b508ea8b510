package review

import (
	"github.com/park285/chess-review/internal/chess"
)

// lossCap keeps one forced-mate swing from swamping a side's average.
const lossCap = 1000

type SideSummary struct {
	Moves  int
	Counts map[chess.Quality]int
	// AverageLoss is the mean centipawn loss per move, each loss capped.
	AverageLoss float64
}

func (s SideSummary) Count(q chess.Quality) int {
	return s.Counts[q]
}

type Summary struct {
	White   SideSummary
	Black   SideSummary
	Opening chess.Opening
}

func (s Summary) Side(c chess.Color) SideSummary {
	if c == chess.Black {
		return s.Black
	}
	return s.White
}

func Summarize(records []MoveRecord, opening chess.Opening) Summary {
	out := Summary{
		White:   SideSummary{Counts: make(map[chess.Quality]int)},
		Black:   SideSummary{Counts: make(map[chess.Quality]int)},
		Opening: opening,
	}
	var whiteLoss, blackLoss int
	for _, rec := range records {
		side, loss := &out.White, &whiteLoss
		if rec.Mover == chess.Black {
			side, loss = &out.Black, &blackLoss
		}
		side.Moves++
		side.Counts[rec.Quality]++
		*loss += min(max(rec.Delta, 0), lossCap)
	}
	if out.White.Moves > 0 {
		out.White.AverageLoss = float64(whiteLoss) / float64(out.White.Moves)
	}
	if out.Black.Moves > 0 {
		out.Black.AverageLoss = float64(blackLoss) / float64(out.Black.Moves)
	}
	return out
}
