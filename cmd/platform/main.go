package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradingfloor/platform/internal/barcache"
	"github.com/tradingfloor/platform/internal/config"
	"github.com/tradingfloor/platform/internal/platform/runtime"
	"github.com/tradingfloor/platform/pkg/logger"
)

func main() {
	redisAddr := flag.String("redis-addr", "", "Redis address (overrides REDIS_ADDR env)")
	configPath := flag.String("config", "", "path to a YAML config overlay (optional)")
	flag.Parse()

	var (
		cfg config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg = config.Load()
	}

	log := logger.NewDefault("platform")
	if err != nil {
		log.WithField("error", err).Fatal("load config")
	}

	if *redisAddr != "" {
		cfg.RedisAddr = *redisAddr
	}

	var redisClient barcache.Redis
	if cfg.RedisAddr != "" {
		redisClient = barcache.NewRedisClient(cfg.RedisAddr)
	}

	app := runtime.New(cfg, runtime.Dependencies{
		Redis: redisClient,
	}, log)

	if err := app.RegisterWorkers(); err != nil {
		log.WithField("error", err).Fatal("register workers")
	}

	rootCtx := context.Background()
	if err := app.Start(rootCtx); err != nil {
		log.WithField("error", err).Fatal("start application")
	}
	log.Info("lifecycle platform started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.WithField("error", err).Fatal("shutdown")
	}
}
