package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lookbook/server/internal/api"
	"lookbook/server/internal/auth"
	"lookbook/server/internal/breaker"
	"lookbook/server/internal/config"
	"lookbook/server/internal/files"
	"lookbook/server/internal/generation"
	"lookbook/server/internal/store"
	"lookbook/server/internal/telemetry"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	log := telemetry.NewLogger(cfg.ReleaseMode)
	defer log.Sync()

	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Errorw("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	ns, err := files.NewNamespace(cfg.UploadDir)
	if err != nil {
		log.Errorw("failed to prepare upload dir", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}

	breakerCfg := breaker.DefaultConfig()
	breakerCfg.Timeout = cfg.BreakerTimeout
	breakerCfg.FailureThreshold = cfg.BreakerThreshold
	breakerCfg.ResetTimeout = cfg.BreakerReset

	users := store.NewUserRepo(db, breakerCfg)
	gens := store.NewGenerationRepo(db, breakerCfg)

	authSvc := auth.NewService(users, cfg.JWTSecret, cfg.TokenTTL, cfg.BcryptCost)
	backend := generation.NewSimulated(ns, cfg.FaultProbability, cfg.MinDelay, cfg.MaxDelay)
	genSvc := generation.NewService(gens, ns, backend, log)

	srv := api.NewServer(authSvc, genSvc, ns, log, cfg.ReleaseMode)

	httpSrv := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infow("server_start", "addr", cfg.Addr, "uploads", ns.Base())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("server exited with error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("shutdown failed", "error", err)
	}
}
