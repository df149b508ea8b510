package chess

import (
	"io"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

// decodeMu serializes every library call that decodes FEN. The decoder
// keeps its rank scratch space in a package-level buffer.
var decodeMu sync.Mutex

func decodeFEN(fen string) (*nchess.Game, error) {
	decodeMu.Lock()
	defer decodeMu.Unlock()
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, err
	}
	return nchess.NewGame(opt), nil
}

func decodePGN(r io.Reader) (*nchess.Game, error) {
	decodeMu.Lock()
	defer decodeMu.Unlock()
	opt, err := nchess.PGN(r)
	if err != nil {
		return nil, err
	}
	return nchess.NewGame(opt), nil
}

func newECOBook() *opening.BookECO {
	decodeMu.Lock()
	defer decodeMu.Unlock()
	return opening.NewBookECO()
}
