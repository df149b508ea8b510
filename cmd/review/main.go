// Command review grades every move of a PGN game from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/park285/chess-review/internal/adapter/reviewpresenter"
	"github.com/park285/chess-review/internal/chess"
	"github.com/park285/chess-review/internal/msgcat"
	"github.com/park285/chess-review/internal/obslog"
	"github.com/park285/chess-review/internal/review"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		enginePath = flag.String("engine", os.Getenv("STOCKFISH_PATH"), "path to a UCI engine binary")
		profile    = flag.String("profile", os.Getenv("REVIEW_PROFILE"), "analysis profile (quick, standard, deep)")
		depth      = flag.Int("depth", 0, "search depth per position; 0 uses the profile")
		pgnOut     = flag.String("annotate", "", "write the annotated PGN to this file")
		messages   = flag.String("messages", os.Getenv("MESSAGES_DIR"), "directory with message overrides")
		verbose    = flag.Bool("v", false, "print each move as soon as it is graded")
		debug      = flag.Bool("debug", false, "log engine traffic to stderr")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: review [flags] [game.pgn]\n\nReads standard input when no file is given.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := zapcore.WarnLevel
	if *debug {
		level = zapcore.DebugLevel
	}
	logger, err := obslog.New(obslog.Options{Level: level, Console: true, Format: "console", Stdout: os.Stderr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	text, err := readInput(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "read game: %v\n", err)
		return 1
	}
	game, err := chess.ParseGame(text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	p, err := chess.GetProfile(*profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v (known: %s)\n", err, strings.Join(chess.ProfileNames(), ", "))
		return 2
	}
	if *depth > 0 {
		p.Depth = *depth
	}

	catalog, err := msgcat.New(*messages)
	if err != nil {
		fmt.Fprintf(os.Stderr, "messages: %v\n", err)
		return 1
	}
	presenter := reviewpresenter.NewPresenter(os.Stdout, reviewpresenter.NewFormatter(catalog), *verbose)

	engine, err := chess.NewEngine(chess.EngineConfig{BinaryPath: *enginePath, Capacity: 1, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lease, err := engine.Acquire(ctx, p.Name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	pipeline := review.NewPipeline(lease, review.Options{Depth: p.Depth, MultiPV: p.MultiPV}, logger)
	report, reviewErr := pipeline.Review(ctx, game, presenter.Progress)
	lease.Release(reviewErr)

	if err := presenter.Report(report, len(game.Plies), reviewErr); err != nil {
		logger.Warn("write_report_failed", zap.Error(err))
	}
	if *pgnOut != "" && len(report.Records) > 0 {
		if err := os.WriteFile(*pgnOut, []byte(review.AnnotatedPGN(report, "chess-review")), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", *pgnOut, err)
			return 1
		}
	}

	switch {
	case reviewErr == nil:
		return 0
	case errors.Is(reviewErr, review.ErrInvalidGame):
		fmt.Fprintf(os.Stderr, "%v\n", reviewErr)
		return 2
	default:
		fmt.Fprintf(os.Stderr, "%v\n", reviewErr)
		return 1
	}
}

func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}
