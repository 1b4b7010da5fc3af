package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap/zapcore"

	"github.com/davout/gekko/params"
	"github.com/davout/gekko/pkg/api"
	"github.com/davout/gekko/pkg/book"
	"github.com/davout/gekko/pkg/engine"
	"github.com/davout/gekko/pkg/storage"
	"github.com/davout/gekko/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, zapcore.InfoLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("starting", "pair", cfg.Market.Pair, "listen", cfg.Node.ListenAddr)

	store, err := storage.NewPebbleStore(filepath.Join(cfg.Node.DataDir, "book"))
	if err != nil {
		sugar.Fatalw("storage_open_failed", "err", err)
	}
	defer store.Close()

	// Restore the book from the last snapshot, or start empty.
	var b *book.Book
	snapshot, found, err := store.LoadSnapshot(cfg.Market.Pair)
	if err != nil {
		sugar.Fatalw("snapshot_load_failed", "err", err)
	}
	if found {
		b, err = book.Deserialize(snapshot, logger, util.RealClock{})
		if err != nil {
			sugar.Fatalw("snapshot_restore_failed", "err", err)
		}
		sugar.Infow("book_restored",
			"pair", b.Pair(),
			"bids", b.Bids().Len(),
			"asks", b.Asks().Len(),
			"events", b.Tape().Len(),
		)
	} else {
		b = book.NewBook(cfg.Market.Pair, cfg.Market.BasePrecision, logger, util.RealClock{})
		sugar.Infow("book_created", "pair", b.Pair())
	}

	// The server is wired in via a closure so the engine can feed it
	// tape events while the server submits requests to the engine.
	var server *api.Server
	eng := engine.New(b, logger, engine.Options{
		Store:            store,
		OnEvent:          func(e *book.Event) { server.PublishEvent(e) },
		ExpirySweep:      cfg.Engine.ExpirySweep,
		SnapshotInterval: cfg.Engine.SnapshotInterval,
		QueueSize:        cfg.Engine.QueueSize,
	})
	server = api.NewServer(eng, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	go func() {
		if err := server.Start(cfg.Node.ListenAddr); err != nil {
			sugar.Fatalw("api_failed", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	sugar.Infow("shutting_down")

	cancel()
	if err := <-done; err != nil {
		sugar.Errorw("engine_shutdown_error", "err", err)
	}
}
