package uci

import (
	"sort"
	"strconv"
	"strings"
)

// Variation is one principal variation reported by the engine.
type Variation struct {
	Rank     int
	Depth    int
	SelDepth int
	Score    Score
	Nodes    int64
	Moves    []string
}

// Move returns the first move of the variation or "" when the engine sent a
// score without a line (for example a mated position).
func (v Variation) Move() string {
	if len(v.Moves) == 0 {
		return ""
	}
	return v.Moves[0]
}

type infoLine struct {
	depth    int
	selDepth int
	multiPV  int
	cp       int
	mate     int
	isMate   bool
	hasScore bool
	bound    bool
	nodes    int64
	pv       []string
}

// parseInfo skips unknown keys one token at a time.
func parseInfo(line string) (infoLine, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 || parts[0] != "info" {
		return infoLine{}, false
	}
	out := infoLine{multiPV: 1}

	intAt := func(i int) (int, bool) {
		if i >= len(parts) {
			return 0, false
		}
		v, err := strconv.Atoi(parts[i])
		return v, err == nil
	}

	for i := 1; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if v, ok := intAt(i + 1); ok {
				out.depth = v
				i++
			}
		case "seldepth":
			if v, ok := intAt(i + 1); ok {
				out.selDepth = v
				i++
			}
		case "multipv":
			if v, ok := intAt(i + 1); ok {
				out.multiPV = v
				i++
			}
		case "nodes":
			if i+1 < len(parts) {
				if v, err := strconv.ParseInt(parts[i+1], 10, 64); err == nil {
					out.nodes = v
					i++
				}
			}
		case "score":
			if i+2 >= len(parts) {
				return infoLine{}, false
			}
			v, err := strconv.Atoi(parts[i+2])
			if err != nil {
				return infoLine{}, false
			}
			switch parts[i+1] {
			case "cp":
				out.cp = v
			case "mate":
				out.mate = v
				out.isMate = true
			default:
				return infoLine{}, false
			}
			out.hasScore = true
			i += 2
		case "lowerbound", "upperbound":
			out.bound = true
		case "wdl":
			i += 3
		case "pv":
			out.pv = append([]string(nil), parts[i+1:]...)
			i = len(parts)
		case "string":
			// free text until end of line
			return out, out.hasScore
		}
	}
	return out, out.hasScore
}

// collector groups info lines per search depth. A depth is complete once
// every requested line arrived or a deeper line shows up.
type collector struct {
	want        int
	whiteToMove bool

	depth   int
	lines   map[int]Variation
	last    Result
	emitted int
}

func newCollector(want int, whiteToMove bool) *collector {
	if want <= 0 {
		want = 1
	}
	return &collector{
		want:        want,
		whiteToMove: whiteToMove,
		depth:       -1,
		emitted:     -1,
		lines:       make(map[int]Variation),
	}
}

func (c *collector) add(in infoLine) []Result {
	if !in.hasScore || in.bound {
		return nil
	}
	var ready []Result
	if in.depth < c.depth {
		return nil
	}
	if in.depth > c.depth {
		if c.depth > c.emitted && len(c.lines) > 0 {
			ready = append(ready, c.snapshot())
		}
		c.depth = in.depth
		c.lines = make(map[int]Variation)
	}
	c.lines[in.multiPV] = Variation{
		Rank:     in.multiPV,
		Depth:    in.depth,
		SelDepth: in.selDepth,
		Score:    fromSideToMove(in.cp, in.mate, in.isMate, c.whiteToMove),
		Nodes:    in.nodes,
		Moves:    in.pv,
	}
	if len(c.lines) >= c.want && c.depth > c.emitted {
		ready = append(ready, c.snapshot())
	}
	return ready
}

func (c *collector) snapshot() Result {
	r := Result{Depth: c.depth, Variations: collapseVariations(c.lines)}
	c.last = r
	c.emitted = c.depth
	return r
}

func (c *collector) final(bestMove, ponder string) Result {
	r := c.last
	if c.depth > c.emitted && len(c.lines) > 0 && (len(c.lines) >= c.want || len(r.Variations) == 0) {
		r = Result{Depth: c.depth, Variations: collapseVariations(c.lines)}
	}
	r.BestMove = bestMove
	r.Ponder = ponder
	return r
}

func collapseVariations(m map[int]Variation) []Variation {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	result := make([]Variation, 0, len(keys))
	for _, k := range keys {
		result = append(result, m[k])
	}
	return result
}

func parseBestMove(line string) (best, ponder string) {
	parts := strings.Fields(line)
	if len(parts) >= 2 {
		best = parts[1]
	}
	if best == "(none)" {
		best = ""
	}
	if len(parts) >= 4 && parts[2] == "ponder" {
		ponder = parts[3]
	}
	return best, ponder
}

func whiteToMove(fen string, moves []string) bool {
	white := true
	fen = strings.TrimSpace(fen)
	if fen != "" && fen != "startpos" {
		fields := strings.Fields(fen)
		if len(fields) >= 2 && fields[1] == "b" {
			white = false
		}
	}
	if len(moves)%2 == 1 {
		white = !white
	}
	return white
}
