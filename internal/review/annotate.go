package review

import (
	"fmt"
	"strings"

	"github.com/park285/chess-review/internal/chess"
	"github.com/park285/chess-review/internal/chess/uci"
)

const pgnLineWidth = 79

var pgnRoster = []string{"Event", "Site", "Date", "Round", "White", "Black", "Result"}

var rosterDefaults = map[string]string{
	"Date":   "????.??.??",
	"Result": "*",
}

// AnnotatedPGN exports the report as PGN with quality glyphs, engine
// evaluations and the engine's preferred move after poor moves.
func AnnotatedPGN(r Report, annotator string) string {
	var sb strings.Builder

	result := r.Tags["Result"]
	if result == "" {
		result = "*"
	}
	for _, key := range pgnRoster {
		v := r.Tags[key]
		if v == "" {
			v = rosterDefaults[key]
		}
		if v == "" {
			v = "?"
		}
		writeTag(&sb, key, v)
	}
	if fen := r.Start.FEN(); fen != chess.StartFEN {
		writeTag(&sb, "FEN", fen)
		writeTag(&sb, "SetUp", "1")
	}
	if r.Opening.ECO != "" {
		writeTag(&sb, "ECO", r.Opening.ECO)
	}
	if r.Opening.Name != "" {
		writeTag(&sb, "Opening", r.Opening.Name)
	}
	if annotator != "" {
		writeTag(&sb, "Annotator", annotator)
	}
	sb.WriteString("\n")

	var tokens []string
	needNumber := true
	for _, rec := range r.Records {
		if rec.Mover == chess.White {
			tokens = append(tokens, fmt.Sprintf("%d.", rec.MoveNumber))
		} else if needNumber {
			tokens = append(tokens, fmt.Sprintf("%d...", rec.MoveNumber))
		}
		tokens = append(tokens, rec.SAN+rec.Quality.Glyph())
		needNumber = false

		var comment []string
		if rec.HasEval && !(rec.Eval.IsMate && rec.Eval.Mate == 0) {
			comment = append(comment, "[%eval "+evalTag(rec.Eval)+"]")
		}
		if isPoor(rec.Quality) && rec.BestSAN != "" && rec.BestMove != rec.Move {
			comment = append(comment, "Best was "+rec.BestSAN+".")
		}
		if len(comment) > 0 {
			tokens = append(tokens, "{", strings.Join(comment, " "), "}")
			needNumber = true
		}
	}
	if !r.Complete && result == "*" {
		tokens = append(tokens, "{ Review incomplete. }")
	}
	tokens = append(tokens, result)

	writeWrapped(&sb, tokens)
	return sb.String()
}

func isPoor(q chess.Quality) bool {
	return q == chess.QualityInaccuracy || q == chess.QualityMistake || q == chess.QualityBlunder
}

// evalTag renders a score the way %eval comments carry it: pawns without a
// plus sign, or #N for mates.
func evalTag(s uci.Score) string {
	if s.IsMate {
		return fmt.Sprintf("#%d", s.Mate)
	}
	return fmt.Sprintf("%.2f", float64(s.CP)/100)
}

func writeTag(sb *strings.Builder, key, value string) {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `"`, `\"`)
	fmt.Fprintf(sb, "[%s \"%s\"]\n", key, value)
}

func writeWrapped(sb *strings.Builder, tokens []string) {
	used := 0
	for _, tok := range tokens {
		if used > 0 && used+1+len(tok) > pgnLineWidth {
			sb.WriteString("\n")
			used = 0
		}
		if used > 0 {
			sb.WriteString(" ")
			used++
		}
		sb.WriteString(tok)
		used += len(tok)
	}
	sb.WriteString("\n")
}
