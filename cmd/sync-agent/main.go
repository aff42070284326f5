package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/carebridge/clinic-sync/internal/api"
	"github.com/carebridge/clinic-sync/internal/config"
	"github.com/carebridge/clinic-sync/internal/lock"
	"github.com/carebridge/clinic-sync/internal/remote"
	"github.com/carebridge/clinic-sync/internal/schedule"
	"github.com/carebridge/clinic-sync/internal/scheduler"
	"github.com/carebridge/clinic-sync/internal/storage"
	"github.com/carebridge/clinic-sync/internal/vitals"
)

const version = "0.3.0"

func main() {
	cfg, err := config.LoadAgent()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := newLogger(cfg.Env)
	defer log.Sync() //nolint:errcheck

	log.Info("sync-agent starting up",
		zap.String("env", cfg.Env),
		zap.String("api_addr", cfg.APIAddr),
		zap.Duration("sync_interval", cfg.SyncInterval))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(rootCtx, cfg.SQLitePath, log)
	if err != nil {
		log.Fatal("local store open error", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("error closing local store", zap.Error(err))
		}
	}()

	client := remote.NewClient(cfg.RemoteBaseURL,
		remote.StaticTokenSource(cfg.AuthToken),
		remote.WithTimeout(cfg.RemoteTimeout))

	locker, cleanup, err := buildLocker(cfg, log)
	if err != nil {
		log.Fatal("locker setup error", zap.Error(err))
	}
	defer cleanup()

	svc := schedule.NewService(store, client, locker, log)
	syncer := vitals.NewSyncer(store, client, log)

	sched := scheduler.New(log)
	sched.Register("vital-sync", cfg.SyncInterval, cfg.SyncRunTimeout, syncer.Run)

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(rootCtx)
	}()

	router := api.NewRouter(api.RouterConfig{
		Schedule: svc,
		Vitals:   store,
		Health:   store,
		Log:      log,
		Env:      cfg.Env,
		Version:  version,
	})

	server := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("local API listening", zap.String("addr", cfg.APIAddr))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("local API server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("local API shutdown error", zap.Error(err))
	}

	stop()
	<-schedDone
	log.Info("sync-agent stopped")
}

func buildLocker(cfg config.Agent, log *zap.Logger) (lock.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return lock.NewKeyedMutex(), func() {}, nil
	}

	rdb, err := lock.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	log.Info("using distributed room locker", zap.String("redis_addr", cfg.RedisAddr))

	cleanup := func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}
	return lock.NewRedisRoomLocker(rdb, cfg.LockTTL), cleanup, nil
}

func newLogger(env string) *zap.Logger {
	if env == "prod" {
		log, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		return log
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	return log
}
