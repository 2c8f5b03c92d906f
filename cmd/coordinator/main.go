package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"ride-dispatch/internal/dispatch/api"
	"ride-dispatch/internal/dispatch/app"
	"ride-dispatch/internal/dispatch/broadcast"
	"ride-dispatch/internal/dispatch/domain"
	"ride-dispatch/internal/dispatch/fare"
	"ride-dispatch/internal/dispatch/ledger"
	"ride-dispatch/internal/dispatch/presence"
	"ride-dispatch/internal/dispatch/push"
	"ride-dispatch/internal/dispatch/router"
	"ride-dispatch/internal/dispatch/sequence"
	"ride-dispatch/internal/shared/config"
	"ride-dispatch/internal/shared/db"
	"ride-dispatch/internal/shared/mq"
	"ride-dispatch/internal/shared/util"
)

func main() {
	log := util.New()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatal("Coordinator", "failed to load config", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.ConnectToDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatal("Coordinator", "database connection failed", err)
	}
	defer pool.Close()

	rmqConn, rmqCh, err := mq.ConnectToRMQ(&cfg.RabbitMQ)
	if err != nil {
		log.Fatal("Coordinator", "RabbitMQ connection failed", err)
	}
	defer rmqConn.Close()
	defer rmqCh.Close()

	if err := mq.DeclareExchange(rmqCh); err != nil {
		log.Fatal("Coordinator", "failed to declare exchange", err)
	}
	publisher := mq.NewPublisher(rmqCh)

	offlineGrace := parseDuration(log, cfg.Dispatch.OfflineGrace, 5*time.Minute)
	sweepInterval := parseDuration(log, cfg.Dispatch.SweepInterval, time.Minute)
	traceStaleness := parseDuration(log, cfg.Dispatch.TraceStaleness, 30*time.Minute)

	var store presence.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("Coordinator", "redis unreachable, presence mirror disabled")
		} else {
			store = presence.NewRedisStore(rdb, cfg.Redis.GeoKey)
			defer rdb.Close()
		}
	}

	var pusher domain.Pusher
	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := push.NewFCM(ctx, cfg.Firebase.CredentialsFile, log)
		if err != nil {
			log.Warn("Coordinator", "push channel disabled: "+err.Error())
		} else {
			pusher = fcm
		}
	}

	registry := presence.NewRegistry(store, log, offlineGrace, traceStaleness)
	go registry.RunSweeper(ctx, sweepInterval)

	rt := router.New(log)
	broadcaster := broadcast.New(rt, pusher, log)
	rideLedger := ledger.NewPostgres(pool)
	seq := sequence.NewPostgres(pool, cfg.Dispatch.SequenceFloor, cfg.Dispatch.SequenceCeil, log)
	quoter := fare.NewHTTP(cfg.Pricing.URL)

	service := app.NewService(rideLedger, seq, registry, rt, broadcaster, quoter, publisher, log)
	handler := api.NewWSHandler(service, rt, cfg.JWT.Secret, log)

	server := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: api.Routes(handler, pool, rmqConn, log),
	}
	metricsServer := &http.Server{
		Addr:    ":" + cfg.HTTP.MetricsPort,
		Handler: api.MetricsRoutes(),
	}

	go func() {
		log.Info("Coordinator", "metrics listening on :"+cfg.HTTP.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Coordinator", "metrics server failed", err)
		}
	}()

	go func() {
		log.OK("Coordinator", "listening on :"+cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Coordinator", "server failed", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Coordinator", "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Coordinator", "graceful shutdown failed", err)
	}
	metricsServer.Shutdown(shutdownCtx)
	log.OK("Coordinator", "stopped")
}

func parseDuration(log *util.Logger, raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn("Coordinator", "bad duration "+raw+", using default")
		return fallback
	}
	return d
}
