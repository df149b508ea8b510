package reviewpresenter

import (
	"fmt"
	"strings"

	"github.com/park285/chess-review/internal/chess"
	"github.com/park285/chess-review/internal/msgcat"
	"github.com/park285/chess-review/internal/review"
)

// Formatter renders review reports as plain text.
type Formatter struct {
	catalog *msgcat.Catalog
}

func NewFormatter(catalog *msgcat.Catalog) *Formatter {
	if catalog == nil {
		catalog = msgcat.Default()
	}
	return &Formatter{catalog: catalog}
}

// Ply renders one record, e.g. "1. e4 (White): Best (eval: +0.30)".
func (f *Formatter) Ply(r review.MoveRecord) string {
	key := "review.ply_white"
	if r.Mover == chess.Black {
		key = "review.ply_black"
	}
	data := map[string]any{
		"MoveNumber": r.MoveNumber,
		"SAN":        r.SAN,
		"Quality":    r.Quality.String(),
		"Eval":       r.DisplayEval,
	}
	line := f.catalog.RenderOr(key, data, fmt.Sprintf("%s %s (%s): %s (eval: %s)", r.MoveLabel(), r.SAN, r.Mover, r.Quality, r.DisplayEval))
	if showBest(r) {
		line += "\n" + f.catalog.RenderOr("review.best_hint", map[string]any{"BestSAN": r.BestSAN}, "    best was "+r.BestSAN)
	}
	return line
}

func showBest(r review.MoveRecord) bool {
	switch r.Quality {
	case chess.QualityInaccuracy, chess.QualityMistake, chess.QualityBlunder:
		return r.BestSAN != "" && r.BestMove != r.Move
	}
	return false
}

func (f *Formatter) Progress(done, total int) string {
	return f.catalog.RenderOr("review.progress", map[string]any{"Done": done, "Total": total},
		fmt.Sprintf("analysed %d/%d", done, total))
}

// Report renders the header, every ply and the summary. err is the
// pipeline error, if any, and is reported for partial reports.
func (f *Formatter) Report(r review.Report, plies int, err error) string {
	var sb strings.Builder

	header := map[string]any{
		"White":  tagOr(r.Tags, "White", "White"),
		"Black":  tagOr(r.Tags, "Black", "Black"),
		"Result": r.Tags["Result"],
	}
	sb.WriteString(f.catalog.RenderOr("review.header", header, "Review"))
	sb.WriteString("\n")
	if r.Opening.Name != "" {
		sb.WriteString(f.catalog.RenderOr("review.opening", map[string]any{"ECO": r.Opening.ECO, "Name": r.Opening.Name},
			r.Opening.ECO+" "+r.Opening.Name))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	for _, rec := range r.Records {
		sb.WriteString(f.Ply(rec))
		sb.WriteString("\n")
	}

	if !r.Complete {
		reason := "stopped"
		if err != nil {
			reason = err.Error()
		}
		sb.WriteString("\n")
		sb.WriteString(f.catalog.RenderOr("review.incomplete",
			map[string]any{"Graded": len(r.Records), "Plies": plies, "Reason": reason},
			fmt.Sprintf("Review stopped after %d of %d moves: %s", len(r.Records), plies, reason)))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(f.Summary(r.Summary))
	return sb.String()
}

func (f *Formatter) Summary(s review.Summary) string {
	var sb strings.Builder
	sb.WriteString(f.catalog.RenderOr("review.summary_title", nil, "Summary"))
	sb.WriteString("\n")
	for _, side := range []chess.Color{chess.White, chess.Black} {
		ss := s.Side(side)
		data := map[string]any{
			"Side":        side.String(),
			"Counts":      formatCounts(ss),
			"AverageLoss": ss.AverageLoss,
		}
		sb.WriteString(f.catalog.RenderOr("review.summary_side", data,
			fmt.Sprintf("%s: %s | average loss %.1f cp", side, formatCounts(ss), ss.AverageLoss)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatCounts lists non-zero labels best first: "Best 3, Good 1".
func formatCounts(s review.SideSummary) string {
	parts := make([]string, 0, len(s.Counts))
	for _, q := range chess.Qualities() {
		if n := s.Count(q); n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", q, n))
		}
	}
	if len(parts) == 0 {
		return "no moves"
	}
	return strings.Join(parts, ", ")
}

func tagOr(tags map[string]string, key, fallback string) string {
	if v := strings.TrimSpace(tags[key]); v != "" && v != "?" {
		return v
	}
	return fallback
}
