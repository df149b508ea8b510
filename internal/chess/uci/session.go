package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrEngineUnavailable = errors.New("uci: engine unavailable")
	ErrEngineCommunication = errors.New("uci: engine communication failed")
	ErrSessionClosed = fmt.Errorf("%w: session closed", ErrEngineCommunication)

	errStopped = errors.New("uci: consumer stopped")
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultReadyTimeout     = 4 * time.Second
	stopDrainTimeout        = 5 * time.Second
	closeGrace              = 2 * time.Second
	newGameRetryAttempts    = 3
	newGameRetryDelay       = 150 * time.Millisecond
	lineBufferSize          = 256
)

type Options struct {
	Threads int
	HashMB  int
	MultiPV int

	HandshakeTimeout time.Duration
	Logger           *zap.Logger
}

// Request searches FEN ("" is the start position) plus Moves to Depth.
type Request struct {
	FEN     string
	Moves   []string
	Depth   int
	MultiPV int
	// Timeout bounds the whole search. Zero derives one from Depth,
	// negative disables it.
	Timeout time.Duration
}

type Result struct {
	Depth      int
	Variations []Variation
	BestMove   string
	Ponder     string
}

func (r Result) Best() (Variation, bool) {
	if len(r.Variations) == 0 {
		return Variation{}, false
	}
	return r.Variations[0], true
}

func (r Result) Second() (Variation, bool) {
	if len(r.Variations) < 2 {
		return Variation{}, false
	}
	return r.Variations[1], true
}

// Session owns one engine process and serializes requests to it.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *zap.Logger

	lines      chan string
	readErr    error
	readerDone chan struct{}
	quit       chan struct{}
	exited     chan struct{}

	mu       sync.Mutex // guards stdin
	inflight chan struct{}
	multiPV  int

	broken    atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func Open(ctx context.Context, binaryPath string, opt Options) (*Session, error) {
	if err := validateOptions(opt); err != nil {
		return nil, err
	}
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: create stdin pipe: %w", ErrEngineUnavailable, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("%w: create stdout pipe: %w", ErrEngineUnavailable, err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("%w: start engine: %w", ErrEngineUnavailable, err)
	}

	s := &Session{
		cmd:        cmd,
		stdin:      stdin,
		logger:     logger.With(zap.Int("engine_pid", cmd.Process.Pid)),
		lines:      make(chan string, lineBufferSize),
		readerDone: make(chan struct{}),
		quit:       make(chan struct{}),
		exited:     make(chan struct{}),
		inflight:   make(chan struct{}, 1),
	}
	go s.readLoop(stdout)
	go s.waitLoop()

	if err := s.handshake(ctx, opt); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	s.logger.Debug("engine_session_opened", zap.String("binary", binaryPath))
	return s, nil
}

// Evaluate returns the best result seen so far together with ctx.Err()
// when ctx is cancelled.
func (s *Session) Evaluate(ctx context.Context, req Request) (Result, error) {
	return s.search(ctx, req, nil)
}

// EvaluateIterative yields one result per completed depth. The loop body
// must not issue other requests on the same session.
func (s *Session) EvaluateIterative(ctx context.Context, req Request) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		yielded := false
		res, err := s.search(ctx, req, func(r Result) bool {
			yielded = true
			return yield(r, nil)
		})
		switch {
		case errors.Is(err, errStopped):
		case err != nil:
			yield(res, err)
		case !yielded && (len(res.Variations) > 0 || res.BestMove != ""):
			yield(res, nil)
		}
	}
}

func (s *Session) search(ctx context.Context, req Request, onDepth func(Result) bool) (Result, error) {
	if err := validateRequest(req); err != nil {
		return Result{}, err
	}
	if err := s.acquire(ctx); err != nil {
		return Result{}, err
	}
	defer s.release()
	if err := s.usable(); err != nil {
		return Result{}, err
	}

	want := req.MultiPV
	if want <= 0 {
		want = 1
	}
	if want != s.multiPV {
		if err := s.send(fmt.Sprintf("setoption name MultiPV value %d\n", want)); err != nil {
			return Result{}, s.commError("set multipv", err)
		}
		s.multiPV = want
	}

	positionCmd := buildPositionCommand(req.FEN, req.Moves)
	if err := s.send(positionCmd); err != nil {
		return Result{}, s.commError("send position", err)
	}
	goCmd := buildGoCommand(req.Depth)
	if err := s.send(goCmd); err != nil {
		return Result{}, s.commError("send go", err)
	}

	searchCtx, cancel := withSearchTimeout(ctx, req)
	defer cancel()

	col := newCollector(want, whiteToMove(req.FEN, req.Moves))
	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			if searchCtx.Err() == nil {
				return col.final("", ""), s.commError("read engine output", err)
			}
			res, drainErr := s.stopAndDrain(col)
			if drainErr != nil {
				return res, drainErr
			}
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if len(res.Variations) == 0 && res.BestMove == "" {
				return res, s.commError("search deadline", searchCtx.Err())
			}
			s.logger.Warn("engine_search_deadline",
				zap.String("position", strings.TrimSpace(positionCmd)),
				zap.Int("depth", req.Depth),
				zap.Int("reached_depth", res.Depth))
			return res, nil
		}

		switch {
		case strings.HasPrefix(line, "info "):
			in, ok := parseInfo(line)
			if !ok {
				continue
			}
			for _, snap := range col.add(in) {
				if onDepth != nil && !onDepth(snap) {
					res, drainErr := s.stopAndDrain(col)
					if drainErr != nil {
						return res, drainErr
					}
					return res, errStopped
				}
			}
		case strings.HasPrefix(line, "bestmove"):
			return col.final(parseBestMove(line)), nil
		}
	}
}

func (s *Session) stopAndDrain(col *collector) (Result, error) {
	if err := s.send("stop\n"); err != nil {
		return col.final("", ""), s.commError("send stop", err)
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), stopDrainTimeout)
	defer cancel()
	for {
		line, err := s.readLine(drainCtx)
		if err != nil {
			return col.final("", ""), s.commError("drain after stop", err)
		}
		switch {
		case strings.HasPrefix(line, "info "):
			if in, ok := parseInfo(line); ok {
				col.add(in)
			}
		case strings.HasPrefix(line, "bestmove"):
			return col.final(parseBestMove(line)), nil
		}
	}
}

func (s *Session) EnsureReady(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	if err := s.usable(); err != nil {
		return err
	}
	if err := s.ensureReady(ctx); err != nil {
		return s.commError("ensure ready", err)
	}
	return nil
}

func (s *Session) NewGame(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	if err := s.usable(); err != nil {
		return err
	}
	if err := s.send("ucinewgame\n"); err != nil {
		return s.commError("send ucinewgame", err)
	}

	for attempt := 1; attempt <= newGameRetryAttempts; attempt++ {
		err := s.ensureReady(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == newGameRetryAttempts {
			return s.commError("ensure ready after ucinewgame", err)
		}
		s.logger.Warn("engine_ready_retry",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", newGameRetryAttempts),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(newGameRetryDelay):
		}
	}
	return nil
}

// Close is safe to call more than once and while a request is in flight.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.quit)

		s.mu.Lock()
		_, _ = io.WriteString(s.stdin, "quit\n")
		_ = s.stdin.Close()
		s.mu.Unlock()

		select {
		case <-s.exited:
		case <-time.After(closeGrace):
			if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				s.closeErr = fmt.Errorf("kill engine: %w", err)
			}
			<-s.exited
		}
		s.logger.Debug("engine_session_closed")
	})
	return s.closeErr
}

func (s *Session) handshake(ctx context.Context, opt Options) error {
	timeout := opt.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	initCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	if err := s.applyOptions(opt); err != nil {
		return err
	}
	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) applyOptions(opt Options) error {
	threads := opt.Threads
	if threads <= 0 {
		threads = 1
	}
	multiPV := opt.MultiPV
	if multiPV <= 0 {
		multiPV = 1
	}
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d\n", threads),
		fmt.Sprintf("setoption name MultiPV value %d\n", multiPV),
	}
	if opt.HashMB > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Hash value %d\n", opt.HashMB))
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	s.multiPV = multiPV
	return nil
}

func (s *Session) ensureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) acquire(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	select {
	case s.inflight <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.quit:
		return ErrSessionClosed
	}
}

func (s *Session) release() {
	<-s.inflight
}

func (s *Session) usable() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if s.broken.Load() {
		return fmt.Errorf("%w: session is unusable", ErrEngineCommunication)
	}
	return nil
}

func (s *Session) commError(op string, err error) error {
	if s.closed.Load() {
		return fmt.Errorf("%s: %w", op, ErrSessionClosed)
	}
	if !s.broken.Swap(true) {
		s.logger.Warn("engine_session_broken", zap.String("op", op), zap.Error(err))
	}
	return fmt.Errorf("%w: %s: %w", ErrEngineCommunication, op, err)
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if fields := strings.Fields(line); len(fields) > 0 && fields[0] == token {
			return nil
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			if s.readErr != nil {
				return "", s.readErr
			}
			return "", io.EOF
		}
		return line, nil
	}
}

func (s *Session) readLoop(r io.Reader) {
	defer close(s.readerDone)
	defer close(s.lines)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		select {
		case s.lines <- line:
		case <-s.quit:
			return
		}
	}
	s.readErr = sc.Err()
}

func (s *Session) waitLoop() {
	<-s.readerDone
	_ = s.cmd.Wait()
	close(s.exited)
}

func buildPositionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(strings.TrimSpace(fen))
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	sb.WriteString("\n")
	return sb.String()
}

func buildGoCommand(depth int) string {
	return fmt.Sprintf("go depth %d\n", depth)
}

func validateOptions(opt Options) error {
	if opt.Threads < 0 {
		return fmt.Errorf("threads must be >= 0: %d", opt.Threads)
	}
	if opt.HashMB < 0 {
		return fmt.Errorf("hash size must be >= 0: %d", opt.HashMB)
	}
	if opt.MultiPV < 0 {
		return fmt.Errorf("multipv must be >= 0: %d", opt.MultiPV)
	}
	return nil
}

func validateRequest(req Request) error {
	if req.Depth <= 0 {
		return fmt.Errorf("depth must be > 0: %d", req.Depth)
	}
	if req.MultiPV < 0 {
		return fmt.Errorf("multipv must be >= 0: %d", req.MultiPV)
	}
	return nil
}

func withSearchTimeout(ctx context.Context, req Request) (context.Context, context.CancelFunc) {
	switch {
	case req.Timeout < 0:
		return context.WithCancel(ctx)
	case req.Timeout > 0:
		return context.WithTimeout(ctx, req.Timeout)
	default:
		return context.WithTimeout(ctx, computeSearchTimeout(req.Depth))
	}
}

func computeSearchTimeout(depth int) time.Duration {
	base := time.Duration(depth) * 2 * time.Second
	if base < 10*time.Second {
		base = 10 * time.Second
	}
	if base > 3*time.Minute {
		base = 3 * time.Minute
	}
	return base
}
