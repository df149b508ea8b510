package chess

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chess-review/internal/chess/uci"
)

var (
	ErrIllegalMove     = errors.New("chess: illegal move")
	ErrInvalidPosition = errors.New("chess: invalid position")
)

const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

type Color int8

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.Black {
		return Black
	}
	return White
}

type PieceKind int8

const (
	NoPiece PieceKind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var pieceValues = map[PieceKind]int{
	Pawn:   1,
	Knight: 3,
	Bishop: 3,
	Rook:   5,
	Queen:  9,
	King:   0,
}

func (k PieceKind) Value() int {
	return pieceValues[k]
}

func (k PieceKind) String() string {
	switch k {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return "none"
	}
}

func kindFrom(pt nchess.PieceType) PieceKind {
	switch pt {
	case nchess.Pawn:
		return Pawn
	case nchess.Knight:
		return Knight
	case nchess.Bishop:
		return Bishop
	case nchess.Rook:
		return Rook
	case nchess.Queen:
		return Queen
	case nchess.King:
		return King
	default:
		return NoPiece
	}
}

// Move is a move in UCI long algebraic notation, e.g. "e2e4" or "e7e8q".
type Move string

func (m Move) String() string { return string(m) }

func normalizeMove(m Move) string {
	return strings.ToLower(strings.TrimSpace(string(m)))
}

// Position is an immutable board state identified by its FEN.
// The zero value is the standard starting position.
type Position struct {
	fen string
}

func StartPosition() Position {
	return Position{fen: StartFEN}
}

// ParsePosition validates fen. "" and "startpos" mean the starting position.
func ParsePosition(fen string) (Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return StartPosition(), nil
	}
	g, err := decodeFEN(fen)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return Position{fen: g.FEN()}, nil
}

func (p Position) FEN() string {
	if p.fen == "" {
		return StartFEN
	}
	return p.fen
}

func (p Position) String() string { return p.FEN() }

func (p Position) SideToMove() Color {
	fields := strings.Fields(p.FEN())
	if len(fields) >= 2 && fields[1] == "b" {
		return Black
	}
	return White
}

func (p Position) MoveNumber() int {
	fields := strings.Fields(p.FEN())
	if len(fields) >= 6 {
		if n, err := strconv.Atoi(fields[5]); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

func (p Position) game() (*nchess.Game, error) {
	g, err := decodeFEN(p.FEN())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return g, nil
}

func LegalMoves(p Position) ([]Move, error) {
	g, err := p.game()
	if err != nil {
		return nil, err
	}
	valid := g.Position().ValidMoves()
	out := make([]Move, 0, len(valid))
	for _, mv := range valid {
		out = append(out, Move(mv.String()))
	}
	return out, nil
}

func decodeMove(pos *nchess.Position, mv Move) (*nchess.Move, error) {
	text := normalizeMove(mv)
	if text == "" {
		return nil, fmt.Errorf("%w: empty move", ErrIllegalMove)
	}
	legal := false
	for _, vm := range pos.ValidMoves() {
		if vm.String() == text {
			legal = true
			break
		}
	}
	if !legal {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, text)
	}
	decoded, err := nchess.UCINotation{}.Decode(pos, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIllegalMove, text, err)
	}
	return decoded, nil
}

func Apply(p Position, mv Move) (Position, error) {
	g, err := p.game()
	if err != nil {
		return Position{}, err
	}
	decoded, err := decodeMove(g.Position(), mv)
	if err != nil {
		return Position{}, err
	}
	if err := g.Move(decoded, nil); err != nil {
		return Position{}, fmt.Errorf("%w: %s: %v", ErrIllegalMove, normalizeMove(mv), err)
	}
	return Position{fen: g.FEN()}, nil
}

func SAN(p Position, mv Move) (string, error) {
	g, err := p.game()
	if err != nil {
		return "", err
	}
	pos := g.Position()
	decoded, err := decodeMove(pos, mv)
	if err != nil {
		return "", err
	}
	return nchess.AlgebraicNotation{}.Encode(pos, decoded), nil
}

// LineSAN converts an engine line to SAN. Once a move cannot be converted
// the rest of the line is kept in UCI text.
func LineSAN(p Position, moves []string) []string {
	out := make([]string, 0, len(moves))
	g, err := p.game()
	if err != nil {
		return append(out, moves...)
	}
	for i, raw := range moves {
		pos := g.Position()
		decoded, err := decodeMove(pos, Move(raw))
		if err != nil {
			return append(out, moves[i:]...)
		}
		san := nchess.AlgebraicNotation{}.Encode(pos, decoded)
		if err := g.Move(decoded, nil); err != nil {
			return append(out, moves[i:]...)
		}
		out = append(out, san)
	}
	return out
}

// PlayedMove carries the facts about a move that classification needs.
type PlayedMove struct {
	Move     Move
	Mover    Color
	Piece    PieceKind
	Captured PieceKind
	FromRank int // 1..8
	ToRank   int
}

func DescribeMove(p Position, mv Move) (PlayedMove, error) {
	g, err := p.game()
	if err != nil {
		return PlayedMove{}, err
	}
	pos := g.Position()
	decoded, err := decodeMove(pos, mv)
	if err != nil {
		return PlayedMove{}, err
	}
	board := pos.Board()
	captured := kindFrom(board.Piece(decoded.S2()).Type())
	if decoded.HasTag(nchess.EnPassant) {
		captured = Pawn
	}
	return PlayedMove{
		Move:     Move(normalizeMove(mv)),
		Mover:    colorFrom(pos.Turn()),
		Piece:    kindFrom(board.Piece(decoded.S1()).Type()),
		Captured: captured,
		FromRank: int(decoded.S1().Rank()) + 1,
		ToRank:   int(decoded.S2().Rank()) + 1,
	}, nil
}

// Terminal reports whether p is checkmate or stalemate and, if so, the
// score the engine would give it.
func Terminal(p Position) (uci.Score, bool) {
	g, err := p.game()
	if err != nil {
		return uci.Score{}, false
	}
	switch g.Method() {
	case nchess.Checkmate:
		return uci.Checkmated(p.SideToMove() == Black), true
	case nchess.Stalemate:
		return uci.Centipawns(0), true
	}
	return uci.Score{}, false
}
