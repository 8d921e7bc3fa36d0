package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/david/jd-copilot/internal/ai"
	"github.com/david/jd-copilot/internal/api"
	"github.com/david/jd-copilot/internal/auth"
	"github.com/david/jd-copilot/internal/config"
	"github.com/david/jd-copilot/internal/db"
	"github.com/david/jd-copilot/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	completer, err := ai.NewCompleter(cfg)
	if err != nil {
		if !errors.Is(err, ai.ErrMissingCredential) {
			log.Fatalf("LLM provider setup failed: %v", err)
		}
		log.Printf("Analysis disabled: %v", err)
	}

	store := db.NewStore(pool)
	tracker.NewRefresher(store).Watch(ctx, cfg.RefreshInterval, cfg.RefreshBatchSize)

	srv := api.NewServer(cfg, api.Deps{
		Store:     store,
		Auth:      auth.NewService(pool),
		Completer: completer,
		Embedder:  ai.NewEmbedder(cfg),
	})

	go func() {
		log.Printf("Server starting on port %s...", cfg.Port)
		if err := srv.Start(cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
