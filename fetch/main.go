package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/DeafMist/tweet-radar/internal/analysis"
	"github.com/DeafMist/tweet-radar/internal/backend"
	"github.com/DeafMist/tweet-radar/internal/config"
	"github.com/DeafMist/tweet-radar/internal/logger"
	"github.com/DeafMist/tweet-radar/internal/models"
	"github.com/DeafMist/tweet-radar/internal/report"
	"github.com/DeafMist/tweet-radar/internal/store"
)

func main() {
	_ = godotenv.Load()

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s <term>\n", os.Args[0])
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log := logger.New("fetch")
	cfg, err := config.LoadFetch()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	s, err := backend.Open(ctx, cfg.Common, log)
	if err != nil {
		log.Error("store unavailable", slog.Any("err", err))
		os.Exit(1)
	}

	sinks, closeSinks := report.Open(cfg.Report)
	err = run(ctx, analysis.New(s, log, sinks...), flag.Arg(0), os.Stdout)

	if cerr := closeSinks(); cerr != nil {
		log.Warn("close report sinks", slog.Any("err", cerr))
	}
	if cerr := s.Close(context.Background()); cerr != nil {
		log.Warn("close store", slog.Any("err", cerr))
	}

	if err != nil {
		switch {
		case errors.Is(err, analysis.ErrInvalidTerm):
			log.Error("bad search term", slog.Any("err", err))
		case errors.Is(err, store.ErrUnavailable):
			log.Error("store unavailable", slog.Any("err", err))
		case errors.Is(err, analysis.ErrPublish):
			log.Error("report not delivered", slog.Any("err", err))
		default:
			log.Error("fetch failed", slog.Any("err", err))
		}
		os.Exit(1)
	}
}

type reporter interface {
	Run(ctx context.Context, term string) (models.Report, error)
}

// run builds the report for term and echoes it as indented JSON. A report
// that some sink failed to receive is still echoed before the error is
// returned.
func run(ctx context.Context, a reporter, term string, out io.Writer) error {
	rep, runErr := a.Run(ctx, term)
	if runErr != nil && !errors.Is(runErr, analysis.ErrPublish) {
		return runErr
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if _, err := fmt.Fprintln(out, string(data)); err != nil {
		return fmt.Errorf("echo report: %w", err)
	}
	return runErr
}
