package reviewpresenter

import (
	"errors"
	"strings"
	"testing"

	"github.com/park285/chess-review/internal/chess"
	"github.com/park285/chess-review/internal/review"
)

func sampleRecords() []review.MoveRecord {
	return []review.MoveRecord{
		{Ply: 1, MoveNumber: 1, Mover: chess.White, Move: "e2e4", SAN: "e4", Quality: chess.QualityBest, DisplayEval: "+0.30", BestMove: "e2e4", BestSAN: "e4"},
		{Ply: 2, MoveNumber: 1, Mover: chess.Black, Move: "f7f6", SAN: "f6", Quality: chess.QualityMistake, DisplayEval: "+1.40", BestMove: "e7e5", BestSAN: "e5", Delta: 110},
	}
}

func TestFormatterPly(t *testing.T) {
	f := NewFormatter(nil)
	recs := sampleRecords()
	if got := f.Ply(recs[0]); got != "1. e4 (White): Best (eval: +0.30)" {
		t.Fatalf("white ply = %q", got)
	}
	got := f.Ply(recs[1])
	want := "1... f6 (Black): Mistake (eval: +1.40)\n    best was e5"
	if got != want {
		t.Fatalf("black ply = %q, want %q", got, want)
	}
}

func TestFormatterReport(t *testing.T) {
	records := sampleRecords()
	r := review.Report{
		Tags:     map[string]string{"White": "Alice", "Black": "Bob"},
		Opening:  chess.Opening{ECO: "C20", Name: "King's Pawn Game"},
		Records:  records,
		Complete: false,
		Summary:  review.Summarize(records, chess.Opening{}),
	}
	out := NewFormatter(nil).Report(r, 4, errors.New("engine exited"))
	for _, want := range []string{
		"Review of Alice vs Bob",
		"Opening: C20 King's Pawn Game",
		"1. e4 (White): Best",
		"Review stopped after 2 of 4 moves: engine exited",
		"White: Best 1 | average loss 0.0 cp",
		"Black: Mistake 1 | average loss 110.0 cp",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestPresenterVerboseProgress(t *testing.T) {
	var sb strings.Builder
	p := NewPresenter(&sb, nil, true)
	p.Progress(1, 2, sampleRecords()[0])
	if got := sb.String(); got != "[analysed 1/2] 1. e4 (White): Best (eval: +0.30)\n" {
		t.Fatalf("progress = %q", got)
	}
}
