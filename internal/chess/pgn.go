package chess

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
)

var ErrMalformedPGN = errors.New("chess: malformed pgn")

// Ply is one half-move of a game together with the position it was played in.
type Ply struct {
	Before Position
	Move   Move
	SAN    string
}

type Opening struct {
	ECO  string
	Name string
}

type Game struct {
	Start   Position
	Plies   []Ply
	Opening Opening
	// Tags holds the seven-tag roster entries present in the source PGN.
	Tags map[string]string
}

var rosterTags = []string{"Event", "Site", "Date", "Round", "White", "Black", "Result"}

// The ECO book is large; build it on first use.
var ecoBook = sync.OnceValue(newECOBook)

func ecoLookup(moves []*nchess.Move) Opening {
	book := ecoBook()
	if book == nil || len(moves) == 0 {
		return Opening{}
	}
	if eco := book.Find(moves); eco != nil {
		return Opening{ECO: eco.Code(), Name: eco.Title()}
	}
	return Opening{}
}

// ParseGame reads the main line of a single PGN game.
func ParseGame(text string) (Game, error) {
	if strings.TrimSpace(text) == "" {
		return Game{}, fmt.Errorf("%w: empty input", ErrMalformedPGN)
	}
	g, err := decodePGN(strings.NewReader(text))
	if err != nil {
		return Game{}, fmt.Errorf("%w: %v", ErrMalformedPGN, err)
	}
	return gameFrom(g)
}

// GameFromMoves builds a game from a start position and UCI moves.
func GameFromMoves(start Position, moves []Move) (Game, error) {
	g, err := start.game()
	if err != nil {
		return Game{}, err
	}
	for i, mv := range moves {
		decoded, err := decodeMove(g.Position(), mv)
		if err != nil {
			return Game{}, fmt.Errorf("ply %d: %w", i+1, err)
		}
		if err := g.Move(decoded, nil); err != nil {
			return Game{}, fmt.Errorf("ply %d: %w: %v", i+1, ErrIllegalMove, err)
		}
	}
	return gameFrom(g)
}

func gameFrom(g *nchess.Game) (Game, error) {
	moves := g.Moves()
	positions := g.Positions()
	if len(positions) < len(moves)+1 {
		return Game{}, fmt.Errorf("%w: %d positions for %d moves", ErrMalformedPGN, len(positions), len(moves))
	}

	out := Game{
		Start:   Position{fen: positions[0].String()},
		Plies:   make([]Ply, 0, len(moves)),
		Opening: ecoLookup(moves),
		Tags:    make(map[string]string),
	}
	for _, key := range rosterTags {
		if v := strings.TrimSpace(g.GetTagPair(key)); v != "" {
			out.Tags[key] = v
		}
	}
	for i, mv := range moves {
		before := positions[i]
		out.Plies = append(out.Plies, Ply{
			Before: Position{fen: before.String()},
			Move:   Move(mv.String()),
			SAN:    nchess.AlgebraicNotation{}.Encode(before, mv),
		})
	}
	return out, nil
}
