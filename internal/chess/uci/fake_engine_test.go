package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	fakeEngineEnv = "UCI_FAKE_ENGINE"
	fakeModeEnv   = "UCI_FAKE_MODE"
	fakeDelayEnv  = "UCI_FAKE_DELAY_MS"
)

var fakeMoves = []string{"e2e4", "d2d4", "g1f3", "c2c4"}

// The test binary doubles as a scripted UCI engine when started with
// UCI_FAKE_ENGINE=1.
func TestMain(m *testing.M) {
	if os.Getenv(fakeEngineEnv) == "1" {
		os.Exit(runFakeEngine(os.Stdin, os.Stdout))
	}
	os.Exit(m.Run())
}

type fakeOut struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func (o *fakeOut) println(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, format+"\n", args...)
	o.w.Flush()
}

func runFakeEngine(in io.Reader, out io.Writer) int {
	mode := os.Getenv(fakeModeEnv)
	delayMS, _ := strconv.Atoi(os.Getenv(fakeDelayEnv))
	delay := time.Duration(delayMS) * time.Millisecond
	o := &fakeOut{w: bufio.NewWriter(out)}

	cmds := make(chan string)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			cmds <- sc.Text()
		}
		close(cmds)
	}()

	multiPV := 1
	var stop, done chan struct{}
	halt := func() {
		if done == nil {
			return
		}
		select {
		case <-done:
		default:
			close(stop)
			<-done
		}
		done = nil
	}

	for cmd := range cmds {
		fields := strings.Fields(cmd)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "uci":
			if mode == "mute" {
				continue
			}
			o.println("id name FakeFish")
			o.println("uciok")
		case "isready":
			o.println("readyok")
		case "setoption":
			if len(fields) == 5 && fields[2] == "MultiPV" {
				multiPV, _ = strconv.Atoi(fields[4])
			}
		case "go":
			if mode == "crash" {
				return 3
			}
			if done != nil {
				<-done
			}
			depth := 1
			if len(fields) == 3 && fields[1] == "depth" {
				depth, _ = strconv.Atoi(fields[2])
			}
			stop, done = make(chan struct{}), make(chan struct{})
			go fakeSearch(o, mode, delay, depth, multiPV, stop, done)
		case "stop":
			halt()
		case "quit":
			halt()
			return 0
		}
	}
	return 0
}

func fakeSearch(o *fakeOut, mode string, delay time.Duration, depth, multiPV int, stop, done chan struct{}) {
	defer close(done)
	o.println("info string NNUE evaluation using fake.nnue")
	if mode == "mated" {
		o.println("info depth 0 score mate 0")
		o.println("bestmove (none)")
		return
	}
search:
	for d := 1; d <= depth; d++ {
		if delay > 0 {
			select {
			case <-stop:
				break search
			case <-time.After(delay):
			}
		} else {
			select {
			case <-stop:
				break search
			default:
			}
		}
		o.println("info depth %d currmove e2e4 currmovenumber 1", d)
		o.println("info depth %d seldepth %d multipv 1 score cp -999 upperbound nodes 10 pv a2a3", d, d)
		for k := 1; k <= multiPV && k <= len(fakeMoves); k++ {
			score := fmt.Sprintf("cp %d", 20+d-50*(k-1))
			if mode == "mate" && k == 1 {
				score = "mate 3"
			}
			o.println("info depth %d seldepth %d multipv %d score %s wdl 100 800 100 nodes %d nps 1000 hashfull 1 pv %s e7e5",
				d, d+2, k, score, d*1000, fakeMoves[k-1])
		}
	}
	o.println("bestmove %s ponder e7e5", fakeMoves[0])
}

func openFake(t *testing.T, mode string, delay time.Duration, opt Options) *Session {
	t.Helper()
	exe := fakeEnginePath(t, mode, delay)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, exe, opt)
	if err != nil {
		t.Fatalf("open fake engine: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fakeEnginePath(t *testing.T, mode string, delay time.Duration) string {
	t.Helper()
	t.Setenv(fakeEngineEnv, "1")
	t.Setenv(fakeModeEnv, mode)
	t.Setenv(fakeDelayEnv, strconv.Itoa(int(delay/time.Millisecond)))
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("locate test binary: %v", err)
	}
	return exe
}
