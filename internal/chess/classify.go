package chess

import (
	"strings"

	"github.com/park285/chess-review/internal/chess/uci"
)

type Quality int

const (
	QualityUnknown Quality = iota
	QualityBrilliant
	QualityGreat
	QualityBest
	QualityExcellent
	QualityGood
	QualityInaccuracy
	QualityMistake
	QualityBlunder
)

var qualityNames = [...]string{
	QualityUnknown:    "Unknown",
	QualityBrilliant:  "Brilliant",
	QualityGreat:      "Great",
	QualityBest:       "Best",
	QualityExcellent:  "Excellent",
	QualityGood:       "Good",
	QualityInaccuracy: "Inaccuracy",
	QualityMistake:    "Mistake",
	QualityBlunder:    "Blunder",
}

func (q Quality) String() string {
	if q < 0 || int(q) >= len(qualityNames) {
		return qualityNames[QualityUnknown]
	}
	return qualityNames[q]
}

func ParseQuality(s string) (Quality, bool) {
	s = strings.TrimSpace(s)
	for i, name := range qualityNames {
		if strings.EqualFold(name, s) {
			return Quality(i), true
		}
	}
	return QualityUnknown, false
}

func Qualities() []Quality {
	return []Quality{
		QualityBrilliant,
		QualityGreat,
		QualityBest,
		QualityExcellent,
		QualityGood,
		QualityInaccuracy,
		QualityMistake,
		QualityBlunder,
	}
}

// Glyph is the move suffix annotation used in PGN text ("!!", "?!", ...).
func (q Quality) Glyph() string {
	switch q {
	case QualityBrilliant:
		return "!!"
	case QualityGreat:
		return "!"
	case QualityInaccuracy:
		return "?!"
	case QualityMistake:
		return "?"
	case QualityBlunder:
		return "??"
	default:
		return ""
	}
}

// NAG is the numeric annotation glyph for q, or 0 when q has none.
func (q Quality) NAG() int {
	switch q {
	case QualityGreat:
		return 1
	case QualityMistake:
		return 2
	case QualityBrilliant:
		return 3
	case QualityBlunder:
		return 4
	case QualityInaccuracy:
		return 6
	default:
		return 0
	}
}

func (q Quality) Worse(other Quality) bool {
	return q > other
}

const (
	onlyMoveGap         = 200
	excellentThreshold  = 30
	goodThreshold       = 50
	inaccuracyThreshold = 90
	mistakeThreshold    = 300
)

// Line is the head of an engine variation: its first move and score.
type Line struct {
	Move  Move
	Score uci.Score
}

func LineFrom(v uci.Variation) Line {
	return Line{Move: Move(v.Move()), Score: v.Score}
}

// Classify grades a played move. delta is the ground the mover lost
// relative to the best line (see MoverDelta); a negative delta means the
// move did at least as well as the engine expected and counts as no loss.
func Classify(best Line, second *Line, played PlayedMove, delta int) Quality {
	if sameMove(played.Move, best.Move) {
		if second == nil {
			return QualityBest
		}
		gap := moverValue(best.Score, played.Mover) - moverValue(second.Score, played.Mover)
		if gap > onlyMoveGap && IsSacrifice(played) {
			if !IsIntuitive(played) {
				return QualityBrilliant
			}
			return QualityGreat
		}
		return QualityBest
	}

	loss := delta
	if loss < 0 {
		loss = 0
	}
	switch {
	case second != nil && sameMove(played.Move, second.Move) && loss <= excellentThreshold:
		return QualityExcellent
	case loss <= goodThreshold:
		return QualityGood
	case loss <= inaccuracyThreshold:
		return QualityInaccuracy
	case loss <= mistakeThreshold:
		return QualityMistake
	default:
		return QualityBlunder
	}
}

// MoverDelta is the evaluation the mover gave up: positive when the score
// after the move is worse for the mover than the best line promised.
func MoverDelta(best, after uci.Score, mover Color) int {
	loss := best.Value() - after.Value()
	if mover == Black {
		loss = -loss
	}
	return loss
}

func moverValue(s uci.Score, mover Color) int {
	if mover == Black {
		return -s.Value()
	}
	return s.Value()
}

// IsSacrifice reports a capture of a cheaper piece with a more valuable one.
// Recaptures are not looked at.
func IsSacrifice(p PlayedMove) bool {
	return p.Captured != NoPiece && p.Piece.Value() > p.Captured.Value()
}

// IsIntuitive reports a pawn, knight or bishop moving toward the opponent.
func IsIntuitive(p PlayedMove) bool {
	switch p.Piece {
	case Pawn, Knight, Bishop:
	default:
		return false
	}
	if p.Mover == White {
		return p.ToRank > p.FromRank
	}
	return p.ToRank < p.FromRank
}

func sameMove(a, b Move) bool {
	na, nb := normalizeMove(a), normalizeMove(b)
	return na != "" && na == nb
}
