package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/soradev/hearth/internal/config"
	"github.com/soradev/hearth/internal/engine"
	"github.com/soradev/hearth/internal/handler"
	"github.com/soradev/hearth/internal/model/character"
	"github.com/soradev/hearth/internal/registry"
	"github.com/soradev/hearth/internal/service/conversation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	roster := character.Seed()
	if cfg.Chat.CharactersFile != "" {
		loaded, err := character.LoadFile(cfg.Chat.CharactersFile)
		if err != nil {
			log.Fatalf("failed to load character roster: %v", err)
		}
		roster = loaded
		log.Printf("loaded %d characters from %s", len(roster), cfg.Chat.CharactersFile)
	}
	characterStore := character.NewMemoryStore(roster)

	eng := engine.NewClient(cfg.Engine.Endpoint, cfg.Engine.Model, cfg.Engine.Timeout)
	if err := eng.Ping(ctx); err != nil {
		log.Printf("warning: inference engine not reachable yet: %v", err)
	} else {
		log.Printf("inference engine ready at %s (model %s)", cfg.Engine.Endpoint, cfg.Engine.Model)
	}

	reg := registry.New(characterStore, eng)
	conv := conversation.New(reg, eng, cfg.Chat.HistoryLimit)

	go runSessionReaper(ctx, reg, cfg.Chat.SessionIdleTTL)

	router := handler.NewRouter(characterStore, reg, conv, eng)

	startServer(ctx, cfg.Server, router)
}

// runSessionReaper drops sessions nobody has touched for a full idle TTL.
func runSessionReaper(ctx context.Context, reg *registry.Registry, idleTTL time.Duration) {
	ticker := time.NewTicker(idleTTL / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.EvictIdle(idleTTL)
		}
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Hearth backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
