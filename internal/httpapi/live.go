package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-review/internal/analysis"
	"github.com/park285/chess-review/internal/chess"
	"github.com/park285/chess-review/pkg/reviewdto"
)

const (
	liveOutboxSize   = 64
	liveWriteTimeout = 5 * time.Second
	liveReadLimit    = 64 << 10
)

// liveConn is one websocket client with its own supervisor and engines.
type liveConn struct {
	id     string
	conn   *websocket.Conn
	sup    *analysis.Supervisor
	out    chan reviewdto.ServerFrame
	logger *zap.Logger

	dropped int
	mu      sync.Mutex
}

func (s *Server) liveAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.live == nil {
		s.writeError(w, r, errLiveDisabled)
		return
	}
	select {
	case s.liveSlots <- struct{}{}:
		defer func() { <-s.liveSlots }()
	default:
		s.writeError(w, r, errLiveBusy)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.logger.Debug("live_accept_failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(liveReadLimit)

	lc := &liveConn{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan reviewdto.ServerFrame, liveOutboxSize),
	}
	lc.logger = s.logger.With(zap.String("conn", lc.id))
	lc.sup = analysis.NewSupervisor(s.live, lc, analysis.Config{Profile: s.cfg.LiveProfile, Logger: lc.logger})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		lc.writeLoop(ctx)
	}()

	lc.logger.Info("live_connected")
	lc.push(reviewdto.ServerFrame{Type: reviewdto.FrameReady, Connection: lc.id, Profile: s.cfg.LiveProfile.Name})
	status := lc.readLoop(ctx)

	if err := lc.sup.Close(); err != nil {
		lc.logger.Warn("live_supervisor_close_failed", zap.Error(err))
	}
	close(lc.out)
	<-writerDone
	_ = conn.Close(status, "")
	lc.logger.Info("live_disconnected", zap.Int("dropped_frames", lc.droppedFrames()))
}

var (
	errLiveDisabled = errors.New("live analysis disabled")
	errLiveBusy     = errors.New("too many live analysis connections")
)

func (lc *liveConn) readLoop(ctx context.Context) websocket.StatusCode {
	for {
		var frame reviewdto.ClientFrame
		if err := wsjson.Read(ctx, lc.conn, &frame); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				lc.logger.Debug("live_read_failed", zap.Error(err))
				return websocket.StatusInternalError
			}
			return websocket.StatusNormalClosure
		}
		lc.handle(frame)
	}
}

func (lc *liveConn) handle(frame reviewdto.ClientFrame) {
	switch frame.Type {
	case reviewdto.FramePosition:
		pos, err := chess.ParsePosition(frame.FEN)
		if err != nil {
			lc.pushError(err)
			return
		}
		lc.sup.StartContinuous(pos)
	case reviewdto.FrameMove:
		before, err := chess.ParsePosition(frame.FEN)
		if err != nil {
			lc.pushError(err)
			return
		}
		mv := chess.Move(frame.Move)
		after, err := chess.Apply(before, mv)
		if err != nil {
			lc.pushError(err)
			return
		}
		lc.sup.StartContinuous(after)
		lc.sup.StartClassification(before, mv)
	case reviewdto.FrameStop:
		lc.sup.Cancel()
	default:
		lc.push(reviewdto.ServerFrame{
			Type:       reviewdto.FrameError,
			Generation: lc.sup.Generation(),
			Error:      &reviewdto.DomainError{Code: "bad_request", Message: "unknown frame type " + frame.Type},
		})
	}
}

func (lc *liveConn) writeLoop(ctx context.Context) {
	for frame := range lc.out {
		wctx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
		err := wsjson.Write(wctx, lc.conn, frame)
		cancel()
		if err != nil {
			lc.logger.Debug("live_write_failed", zap.Error(err))
			for range lc.out {
			}
			return
		}
	}
}

// push queues a frame without blocking; frames beyond the outbox size are
// dropped.
func (lc *liveConn) push(f reviewdto.ServerFrame) {
	select {
	case lc.out <- f:
	default:
		lc.mu.Lock()
		lc.dropped++
		lc.mu.Unlock()
	}
}

func (lc *liveConn) pushError(err error) {
	_, de := statusFor(err)
	lc.push(reviewdto.ServerFrame{Type: reviewdto.FrameError, Generation: lc.sup.Generation(), Error: &de})
}

func (lc *liveConn) droppedFrames() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.dropped
}

func (lc *liveConn) OnUpdate(u analysis.Update) {
	lc.push(reviewdto.ServerFrame{
		Type:       reviewdto.FrameUpdate,
		Generation: u.Generation,
		FEN:        u.FEN,
		Depth:      u.Depth,
		Eval:       u.Eval,
		PV:         u.PV,
		PVSAN:      u.PVSAN,
	})
}

func (lc *liveConn) OnClassification(c analysis.Classification) {
	lc.push(reviewdto.ServerFrame{
		Type:       reviewdto.FrameClassification,
		Generation: c.Generation,
		FEN:        c.FEN,
		Move:       c.Move.String(),
		SAN:        c.SAN,
		Quality:    c.Quality.String(),
		Eval:       c.Eval,
		BestSAN:    c.BestSAN,
		Delta:      c.Delta,
	})
}

func (lc *liveConn) OnFailure(f analysis.Failure) {
	lc.push(reviewdto.ServerFrame{
		Type:       reviewdto.FrameFailure,
		Generation: f.Generation,
		Message:    f.Label,
	})
}
