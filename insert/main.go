package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/DeafMist/tweet-radar/internal/backend"
	"github.com/DeafMist/tweet-radar/internal/config"
	"github.com/DeafMist/tweet-radar/internal/ingest"
	"github.com/DeafMist/tweet-radar/internal/logger"
	"github.com/DeafMist/tweet-radar/internal/models"
	"github.com/DeafMist/tweet-radar/internal/store"
)

type tweetStore interface {
	ingest.Inserter
	Close(ctx context.Context) error
}

func main() {
	_ = godotenv.Load()

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s <tweets.tsv>\n", os.Args[0])
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log := logger.New("insert")
	cfg, err := config.LoadInsert()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	s, err := backend.Open(ctx, cfg.Common, log)
	if err != nil {
		log.Error("open store", slog.Any("err", err))
		os.Exit(1)
	}

	sum, err := run(ctx, log, s, cfg, flag.Arg(0), os.Stdout)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrMissingColumns):
			log.Error("input file rejected", slog.Any("err", err))
		case errors.Is(err, store.ErrUnavailable):
			log.Error("store unavailable", slog.Any("err", err))
		default:
			log.Error("insert failed", slog.Any("err", err), slog.Int("inserted", sum.Inserted))
		}
		os.Exit(1)
	}
}

// run loads path into s and always closes s before returning.
func run(ctx context.Context, log *slog.Logger, s tweetStore, cfg *config.Insert, path string, out io.Writer) (models.InsertSummary, error) {
	loader := ingest.NewLoader(s, log, ingest.Options{
		ProgressEvery:  cfg.ProgressEvery,
		RateLimit:      cfg.RateLimit,
		DedupeCapacity: cfg.DedupeCapacity,
	})

	sum, loadErr := loader.LoadFile(ctx, path)
	closeErr := s.Close(context.Background())
	if loadErr != nil {
		return sum, loadErr
	}
	if closeErr != nil {
		return sum, fmt.Errorf("close store: %w", closeErr)
	}

	fmt.Fprintln(out, "Data inserted successfully.")
	fmt.Fprintf(out, "rows=%d inserted=%d duplicates=%d rejected=%d\n",
		sum.Rows, sum.Inserted, sum.Duplicates, sum.Rejected)
	return sum, nil
}
