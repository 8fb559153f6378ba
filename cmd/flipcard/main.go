package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/flipcard/internal/cardstore"
	"github.com/conorfennell/flipcard/internal/config"
	"github.com/conorfennell/flipcard/internal/persist"
	"github.com/conorfennell/flipcard/internal/session"
	"github.com/conorfennell/flipcard/internal/srs"
	"github.com/conorfennell/flipcard/internal/storage"
	decksync "github.com/conorfennell/flipcard/internal/sync"
	"github.com/conorfennell/flipcard/internal/web"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("flipcard stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.Database.Path)

	decks, err := db.LoadAllDecks(ctx)
	if err != nil {
		return err
	}
	cards := cardstore.New()
	cards.Load(decks)
	logger.Info("decks loaded", "decks", len(decks))

	params := srs.DefaultParams()
	params.DisableFuzz = cfg.SRS.DisableFuzz
	var schedOpts []srs.Option
	if cfg.SRS.Seed != 0 {
		schedOpts = append(schedOpts, srs.WithRand(rand.New(rand.NewSource(cfg.SRS.Seed))))
	}
	sched := srs.New(params, schedOpts...)

	writer := persist.NewWriter(db, logger)
	ctl := session.NewController(cards, sched, writer, logger)
	syncer := decksync.New(db, cards, writer, cfg.Sources.ReposDir, logger)

	srv := web.NewServer(web.Deps{
		Cards:   cards,
		Session: ctl,
		Writer:  writer,
		DB:      db,
		Syncer:  syncer,
		Logger:  logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The writer outlives the HTTP server so the last saves still land.
	writerCtx, stopWriter := context.WithCancel(context.Background())
	defer stopWriter()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writer.Run(writerCtx)
	})
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)

		srv.Close()
		stopWriter()
		return err
	})

	return g.Wait()
}
