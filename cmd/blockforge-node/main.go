package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VeltarosLabs/blockforge/internal/api"
	"github.com/VeltarosLabs/blockforge/internal/blockchain"
	"github.com/VeltarosLabs/blockforge/internal/clock"
	"github.com/VeltarosLabs/blockforge/internal/config"
	"github.com/VeltarosLabs/blockforge/internal/logging"
	"github.com/VeltarosLabs/blockforge/pkg/version"
)

func main() {
	parsed, err := config.ParseNodeFlags(os.Args[1:])
	if err != nil {
		os.Exit(exitWithError(err))
	}
	cfg := parsed.Config

	log := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	engine, err := cfg.Mining.Engine()
	if err != nil {
		os.Exit(exitWithError(err))
	}
	digest, err := cfg.Mining.PayloadDigest()
	if err != nil {
		os.Exit(exitWithError(err))
	}

	chain := blockchain.New(engine, log)
	builder := blockchain.NewBuilder(blockchain.BuilderConfig{
		Clock:  clock.System{},
		Digest: digest,
		Miner:  blockchain.NewMiner(engine, cfg.Mining.MaxAttempts, log),
		Log:    log,
	})

	v := version.Get()
	log.Info("node starting",
		"version", v.Version,
		"commit", v.Commit,
		"consensus", engine.Describe(),
		"maxAttempts", cfg.Mining.MaxAttempts,
		"digest", cfg.Mining.Digest,
	)

	if !cfg.API.Enabled {
		log.Warn("api disabled; nothing to serve")
		waitForShutdown(log)
		return
	}

	srv, err := api.NewServer(api.Config{
		Chain:       chain,
		Builder:     builder,
		Log:         log,
		MineTimeout: cfg.Mining.Timeout,
		DigestName:  cfg.Mining.Digest,
		Security: api.SecurityConfig{
			AllowedOrigins: cfg.API.AllowedOrigins,
			APIKey:         cfg.API.APIKey,
		},
		MineLimiter: api.NewLimiter(cfg.API.MineRate, cfg.API.MineBurst, 1),
	})
	if err != nil {
		os.Exit(exitWithError(err))
	}

	httpSrv := startAPI(log, cfg.API, srv.Handler())
	defer func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer ccancel()
		_ = httpSrv.Shutdown(cctx)
	}()

	waitForShutdown(log)
	log.Info("shutdown complete", "height", chain.Len(), "valid", chain.Validate())
}

func startAPI(log *slog.Logger, cfg config.APIConfig, h http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	go func() {
		log.Info("api listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server error", "err", err)
		}
	}()

	return srv
}

func waitForShutdown(log *slog.Logger) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	s := <-ch
	log.Info("shutdown signal received", "signal", s.String())
}

func exitWithError(err error) int {
	_, _ = os.Stderr.WriteString("blockforge-node error: " + err.Error() + "\n")
	return 1
}
