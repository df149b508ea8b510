package uci

import (
	"fmt"
	"strconv"
)

// MateValue is the magnitude used when a mate score has to be compared with
// centipawn scores. Mate in N maps to MateValue-N for the mating side.
const MateValue = 100000

// Score is an engine evaluation from White's point of view.
type Score struct {
	CP     int
	Mate   int // moves to mate; positive when White mates, negative when Black mates
	IsMate bool
	// WhiteWins disambiguates a delivered mate (Mate == 0).
	WhiteWins bool
}

func Centipawns(cp int) Score {
	return Score{CP: cp}
}

// MateIn builds a mate score. Positive n means White mates in n.
func MateIn(n int) Score {
	return Score{Mate: n, IsMate: true, WhiteWins: n > 0}
}

// Checkmated is the score of a position in which the mate was already delivered.
func Checkmated(whiteWins bool) Score {
	return Score{IsMate: true, WhiteWins: whiteWins}
}

// Value collapses the score onto a single integer scale so mates dominate
// every centipawn value and shorter mates dominate longer ones.
func (s Score) Value() int {
	if !s.IsMate {
		return s.CP
	}
	n := s.Mate
	if n < 0 {
		n = -n
	}
	v := MateValue - n
	if !s.WhiteWins {
		v = -v
	}
	return v
}

func (s Score) Negate() Score {
	if s.IsMate {
		return Score{Mate: -s.Mate, IsMate: true, WhiteWins: !s.WhiteWins}
	}
	return Score{CP: -s.CP}
}

// String renders the evaluation for humans: "+0.35", "-1.20", "#3", "#-2".
func (s Score) String() string {
	if s.IsMate {
		if s.Mate == 0 {
			if s.WhiteWins {
				return "1-0"
			}
			return "0-1"
		}
		return "#" + strconv.Itoa(s.Mate)
	}
	return fmt.Sprintf("%+.2f", float64(s.CP)/100)
}

func fromSideToMove(cp, mate int, isMate, whiteToMove bool) Score {
	var s Score
	if isMate {
		// mate 0: the side to move has been mated.
		s = Score{Mate: mate, IsMate: true, WhiteWins: mate > 0}
	} else {
		s = Score{CP: cp}
	}
	if !whiteToMove {
		s = s.Negate()
	}
	return s
}
