package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ocentra/matchproof/internal/config"
	"github.com/ocentra/matchproof/internal/infra/db"
	httpinfra "github.com/ocentra/matchproof/internal/infra/http"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	store, err := db.NewStore(cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	srv := httpinfra.NewServer(cfg, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		// Drain the open batch before the process dies so pending
		// match hashes still reach the ledger.
		if err := srv.Close(context.Background()); err != nil {
			logger.WithError(err).Error("batch drain on shutdown failed")
		}
		os.Exit(0)
	}()

	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
