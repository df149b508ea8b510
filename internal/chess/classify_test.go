package chess

import (
	"testing"

	"github.com/park285/chess-review/internal/chess/uci"
)

func line(move string, cp int) Line {
	return Line{Move: Move(move), Score: uci.Centipawns(cp)}
}

func TestClassifyBestMoveBranch(t *testing.T) {
	rookTakesKnight := PlayedMove{Move: "e1e5", Mover: White, Piece: Rook, Captured: Knight, FromRank: 1, ToRank: 5}
	knightTakesPawn := PlayedMove{Move: "f3e5", Mover: White, Piece: Knight, Captured: Pawn, FromRank: 3, ToRank: 5}
	quiet := PlayedMove{Move: "e1e5", Mover: White, Piece: Rook, FromRank: 1, ToRank: 5}

	tests := []struct {
		name   string
		played PlayedMove
		best   Line
		second *Line
		want   Quality
	}{
		{"no second line", rookTakesKnight, line("e1e5", 400), nil, QualityBest},
		{"sacrifice not intuitive", rookTakesKnight, line("e1e5", 400), ptr(line("d2d4", 100)), QualityBrilliant},
		{"sacrifice intuitive", knightTakesPawn, line("f3e5", 400), ptr(line("d2d4", 100)), QualityGreat},
		{"no sacrifice", quiet, line("e1e5", 400), ptr(line("d2d4", 100)), QualityBest},
		{"gap exactly 200", rookTakesKnight, line("e1e5", 300), ptr(line("d2d4", 100)), QualityBest},
		{"gap 201", rookTakesKnight, line("e1e5", 301), ptr(line("d2d4", 100)), QualityBrilliant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.best, tt.second, tt.played, 0); got != tt.want {
				t.Fatalf("Classify = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyGapIsMoverRelative(t *testing.T) {
	played := PlayedMove{Move: "e8e4", Mover: Black, Piece: Rook, Captured: Knight, FromRank: 8, ToRank: 4}
	best := line("e8e4", -350)
	second := line("d7d5", -50)
	if got := Classify(best, &second, played, 0); got != QualityBrilliant {
		t.Fatalf("Classify = %s, want Brilliant for Black's only move", got)
	}

	// the same numbers are a bad gap from White's side
	played.Mover = White
	if got := Classify(best, &second, played, 0); got != QualityBest {
		t.Fatalf("Classify = %s, want Best", got)
	}
}

func TestClassifyThresholds(t *testing.T) {
	best := line("e2e4", 50)
	second := line("d2d4", 40)
	asSecond := PlayedMove{Move: "d2d4", Mover: White, Piece: Pawn, FromRank: 2, ToRank: 4}
	other := PlayedMove{Move: "a2a3", Mover: White, Piece: Pawn, FromRank: 2, ToRank: 3}

	tests := []struct {
		played PlayedMove
		delta  int
		want   Quality
	}{
		{asSecond, 29, QualityExcellent},
		{asSecond, 30, QualityExcellent},
		{asSecond, 31, QualityGood},
		{other, 30, QualityGood},
		{other, 50, QualityGood},
		{other, 51, QualityInaccuracy},
		{other, 90, QualityInaccuracy},
		{other, 91, QualityMistake},
		{other, 300, QualityMistake},
		{other, 301, QualityBlunder},
		{other, -500, QualityGood},
	}
	for _, tt := range tests {
		got := Classify(best, &second, tt.played, tt.delta)
		if got != tt.want {
			t.Errorf("Classify(%s, delta=%d) = %s, want %s", tt.played.Move, tt.delta, got, tt.want)
		}
		if again := Classify(best, &second, tt.played, tt.delta); again != got {
			t.Errorf("Classify is not deterministic: %s then %s", got, again)
		}
	}
}

func TestMoverDeltaSymmetry(t *testing.T) {
	best, after := uci.Centipawns(50), uci.Centipawns(20)
	if got := MoverDelta(best, after, White); got != 30 {
		t.Fatalf("white delta = %d, want 30", got)
	}
	if got := MoverDelta(best, after, Black); got != -30 {
		t.Fatalf("black delta = %d, want -30", got)
	}
	// mirrored scores: Black lost the same ground
	if got := MoverDelta(best.Negate(), after.Negate(), Black); got != 30 {
		t.Fatalf("mirrored black delta = %d, want 30", got)
	}
}

func TestMateDominatesCentipawns(t *testing.T) {
	played := PlayedMove{Move: "a2a3", Mover: White, Piece: Pawn, FromRank: 2, ToRank: 3}
	best := line("e2e4", 900)

	mateDelta := MoverDelta(best.Score, uci.MateIn(3), White)
	cpDelta := MoverDelta(best.Score, uci.Centipawns(1100), White)
	mateLabel := Classify(best, nil, played, mateDelta)
	cpLabel := Classify(best, nil, played, cpDelta)
	if mateLabel.Worse(cpLabel) {
		t.Fatalf("finding mate graded %s, worse than a smaller gain graded %s", mateLabel, cpLabel)
	}

	lost := MoverDelta(uci.MateIn(3), uci.Centipawns(900), White)
	if got := Classify(Line{Move: "h5f7", Score: uci.MateIn(3)}, nil, played, lost); got != QualityBlunder {
		t.Fatalf("throwing away a forced mate = %s, want Blunder", got)
	}
	if MoverDelta(uci.MateIn(2), uci.MateIn(5), White) <= 0 {
		t.Fatal("longer mate must count as lost ground")
	}
}

func TestSacrificeAndIntuitive(t *testing.T) {
	if IsSacrifice(PlayedMove{Piece: King, Captured: Pawn}) {
		t.Fatal("king captures are never sacrifices")
	}
	if IsSacrifice(PlayedMove{Piece: Knight, Captured: Bishop}) {
		t.Fatal("equal trade is not a sacrifice")
	}
	if !IsSacrifice(PlayedMove{Piece: Queen, Captured: Rook}) {
		t.Fatal("queen for rook is a sacrifice")
	}
	if !IsIntuitive(PlayedMove{Piece: Bishop, Mover: Black, FromRank: 8, ToRank: 5}) {
		t.Fatal("black bishop moving down the board is intuitive")
	}
	if IsIntuitive(PlayedMove{Piece: Knight, Mover: White, FromRank: 5, ToRank: 3}) {
		t.Fatal("retreat is not intuitive")
	}
	if IsIntuitive(PlayedMove{Piece: Rook, Mover: White, FromRank: 1, ToRank: 7}) {
		t.Fatal("rook moves are never intuitive")
	}
}

func TestQualityText(t *testing.T) {
	for _, q := range Qualities() {
		parsed, ok := ParseQuality(q.String())
		if !ok || parsed != q {
			t.Fatalf("ParseQuality(%q) = %v, %v", q.String(), parsed, ok)
		}
	}
	if QualityBlunder.Glyph() != "??" || QualityBrilliant.NAG() != 3 || QualityBest.Glyph() != "" {
		t.Fatal("unexpected annotation glyphs")
	}
}

func ptr[T any](v T) *T { return &v }
