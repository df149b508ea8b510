package reviewpresenter

import (
	"fmt"
	"io"

	"github.com/park285/chess-review/internal/review"
)

// Presenter streams review output to a writer without coupling the
// pipeline to a terminal.
type Presenter struct {
	out       io.Writer
	formatter *Formatter
	verbose   bool
}

func NewPresenter(out io.Writer, formatter *Formatter, verbose bool) *Presenter {
	if formatter == nil {
		formatter = NewFormatter(nil)
	}
	return &Presenter{out: out, formatter: formatter, verbose: verbose}
}

// Progress matches review.Progress; in verbose mode each ply is printed as
// soon as it is graded.
func (p *Presenter) Progress(done, total int, rec review.MoveRecord) {
	if p == nil || p.out == nil || !p.verbose {
		return
	}
	fmt.Fprintf(p.out, "[%s] %s\n", p.formatter.Progress(done, total), p.formatter.Ply(rec))
}

func (p *Presenter) Report(r review.Report, plies int, err error) error {
	if p == nil || p.out == nil {
		return nil
	}
	_, werr := io.WriteString(p.out, p.formatter.Report(r, plies, err))
	return werr
}
