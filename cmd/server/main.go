package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cruxstack/email-reachability-go/internal/api"
	"github.com/cruxstack/email-reachability-go/internal/checker"
	"github.com/cruxstack/email-reachability-go/internal/config"
	"github.com/cruxstack/email-reachability-go/internal/metrics"
	"github.com/cruxstack/email-reachability-go/internal/ratelimit"
)

var envPath string

func init() {
	flag.StringVar(&envPath, "env", ".env", "path to an optional .env file")
	flag.Parse()
}

func main() {
	if _, err := os.Stat(envPath); err == nil {
		_ = godotenv.Load(envPath)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}
	cfg.InstallLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	c, err := checker.NewChecker(ctx, cfg, m)
	if err != nil {
		log.Fatal("failed to init checker", "error", err)
	}
	c.Start(ctx)

	limiter, err := ratelimit.New(ctx, cfg)
	if err != nil {
		log.Fatal("failed to init rate limiter", "error", err)
	}
	if mem, ok := limiter.(*ratelimit.MemoryLimiter); ok {
		go mem.Run(ctx, cfg.RateLimitSweep)
	}

	router := api.NewRouter(api.NewService(c, limiter, m), api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Gatherer:    reg,
		PortStatus:  c.PortStatus,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	// addresses in a batch run concurrently, so one address bounds the batch
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.MaxCheckDuration()+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
