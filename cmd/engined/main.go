package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantfold/orderpilot/params"
	"github.com/quantfold/orderpilot/pkg/api"
	"github.com/quantfold/orderpilot/pkg/pipeline"
	"github.com/quantfold/orderpilot/pkg/scheduler"
	"github.com/quantfold/orderpilot/pkg/storage"
	"github.com/quantfold/orderpilot/pkg/util"
	"github.com/quantfold/orderpilot/pkg/venue"
)

// shutdownGrace bounds how long in-flight order runs may drain after a
// termination signal.
const shutdownGrace = 10 * time.Second

func main() {
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/engined.log"
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	// ---- Record store ----
	var store storage.Store
	if cfg.Store.Path != "" {
		ps, err := storage.NewPebbleStore(cfg.Store.Path)
		if err != nil {
			sugar.Fatalw("store_open_failed", "path", cfg.Store.Path, "err", err)
		}
		store = ps
		sugar.Infow("store_opened", "backend", "pebble", "path", cfg.Store.Path)
	} else {
		store = storage.NewMemStore()
		sugar.Infow("store_opened", "backend", "memory")
	}
	defer store.Close()

	clock := util.RealClock{}

	// ---- Venues & routing ----
	sources := make([]venue.QuoteSource, 0, len(cfg.Venues))
	for _, v := range cfg.Venues {
		sources = append(sources, venue.NewSimSource(venue.SimConfig{
			Name:      v.Name,
			Fee:       v.Fee,
			Latency:   v.Latency,
			BasePrice: v.BasePrice,
			Jitter:    v.Jitter,
		}, clock))
		sugar.Infow("venue_configured",
			"venue", v.Name,
			"base_price", v.BasePrice.String(),
			"fee", v.Fee.String(),
			"latency_ms", v.Latency.Milliseconds())
	}
	router := venue.NewRouter(sugar, cfg.Pipeline.RouteTimeout, sources...)

	// ---- Pipeline ----
	gate := pipeline.NewPriceGate(sugar, router, pipeline.GateConfig{
		MaxAttempts: cfg.Gate.MaxAttempts,
		Delay:       cfg.Gate.Delay,
	}, clock)
	settler := pipeline.NewSimSettler(cfg.Settle.MinLatency, cfg.Settle.MaxLatency, clock)
	bc := pipeline.NewBroadcaster()
	defer bc.Close()
	machine := pipeline.NewMachine(sugar, store, gate, settler, bc, clock, cfg.Pipeline.BuildDelay)

	// ---- Scheduler ----
	sched := scheduler.New(sugar, scheduler.Config{
		Workers:    cfg.Scheduler.Workers,
		MaxRetries: cfg.Scheduler.MaxRetries,
		RetryBase:  cfg.Scheduler.RetryBase,
	}, machine, clock)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx)
	}()

	// ---- API server ----
	apiServer := api.NewServer(sugar, store, sched, bc)
	go func() {
		if err := apiServer.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("engined_started",
		"workers", cfg.Scheduler.Workers,
		"venues", len(cfg.Venues),
		"api_addr", cfg.API.Addr)

	<-ctx.Done()
	sugar.Info("shutdown_signal_received")

	// Bounded drain: in-flight runs abandon at their next suspension
	// point; whatever status was last persisted stands.
	select {
	case <-schedDone:
		sugar.Info("scheduler_drained")
	case <-time.After(shutdownGrace):
		sugar.Warn("shutdown_grace_elapsed")
	}
}
