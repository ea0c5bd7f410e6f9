// Entry point: loads config, wires stores and services, starts the HTTP
// server, the write-back queue consumer and the retry job.
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

	"dispatch/internal/config"
	httptransport "dispatch/internal/http"
	"dispatch/internal/infra"
	"dispatch/internal/jobs"
	"dispatch/internal/modules/courier"
	"dispatch/internal/modules/dispatch"
	"dispatch/internal/modules/location"
	"dispatch/internal/modules/order"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Error("db init failed", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	geoIndex := location.NewGeoIndex(redisClient)
	historyStore := location.NewHistoryStore(dbPool)
	queue := location.NewWriteBackQueue(historyStore, cfg.Queue, log)
	queue.Start()
	locationSvc := location.NewService(geoIndex, queue, log)

	courierStore := courier.NewStore(dbPool)
	orderStore := order.NewStore(dbPool)
	orderSvc := order.NewService(orderStore)

	dispatchSvc := dispatch.NewService(
		geoIndex,
		courierStore,
		orderStore,
		dispatch.NewScorer(cfg.Scoring),
		cfg.Dispatch,
		log,
	)

	retryJob := jobs.NewDispatchRetryJob(orderStore, dispatchSvc, cfg.Dispatch.RetryEverySec, log)
	if err := retryJob.Start(); err != nil {
		log.Error("retry job start failed", "error", err)
		os.Exit(1)
	}

	handler := httptransport.NewRouter(orderSvc, dispatchSvc, locationSvc, queue, log)
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("dispatch-api listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http server failed", "error", err)
	}

	retryJob.Stop()
	queue.Stop()
}
