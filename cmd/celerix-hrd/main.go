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

	"github.com/celerix-dev/celerix-hr/internal/api"
	"github.com/celerix-dev/celerix-hr/internal/config"
	"github.com/celerix-dev/celerix-hr/internal/index"
	"github.com/celerix-dev/celerix-hr/internal/logging"
	"github.com/celerix-dev/celerix-hr/internal/repositories/repomanager"
	"github.com/celerix-dev/celerix-hr/internal/server"
	"github.com/celerix-dev/celerix-hr/internal/vault"
	"github.com/celerix-dev/celerix-hr/pkg/sdk"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(ctx, "daemon stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	store, closeStore, err := sdk.Open(ctx, cfg.StoreOptions(logger))
	if err != nil {
		return err
	}
	defer func() {
		// Finalize pending disk writes before exiting.
		if err := closeStore(); err != nil {
			logger.Error(context.Background(), "closing store failed", "error", err)
		}
	}()

	keys, err := index.ParseLayout(cfg.Layout)
	if err != nil {
		return err
	}
	opts := repomanager.Options{Keys: keys, Log: logger, MaxGroupSize: cfg.MaxGroupSize}
	cipher, err := cfg.Cipher()
	if err != nil {
		return err
	}
	if cipher != nil {
		opts.Cipher = cipher
	}
	repos := repomanager.New(store, opts)
	logger.Info(ctx, "engine started", "backend", cfg.Backend, "layout", keys.Name(), "biometric_encryption", cipher != nil)

	// TCP store protocol
	router := server.NewRouter(store, logger)
	if cfg.TLS {
		cert, err := vault.GenerateSelfSignedCert()
		if err != nil {
			return err
		}
		router.SetCertificate(cert)
	}

	// HTTP API
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors())
	api.NewHandler(repos, logger).Register(r.Group("/api"))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "API route not found"})
	})
	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(gctx, "HTTP API listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := router.Listen(cfg.TCPPort); !errors.Is(err, server.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutdown signal received, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), router.Stop())
	})
	return g.Wait()
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
