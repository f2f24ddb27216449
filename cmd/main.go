package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"blockd/internal/config"
	httpserver "blockd/internal/server/http"
	"blockd/pkg/blocks"
	"blockd/pkg/cfg"
	"blockd/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	env := cfg.String("APP_ENV", "dev")

	cleanup := logger.Setup(env, cfg.String("LOG_LEVEL", "info"))
	defer cleanup()

	configPath := cfg.String("APP_CONFIG", "config.yaml")

	conf, err := config.Build(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build config")
	}

	// вне прода не грузим баннер согласия и аналитику
	if env != "prod" && !conf.Blocks.SkipCookieScripts {
		conf.Blocks.SkipCookieScripts = cfg.Bool("SKIP_COOKIE_SCRIPTS", true)
	}

	ids := blocks.DefaultIDs()
	if env == "dev" {
		ids = blocks.DevelopmentIDs()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blockCache, cacheCleanup, err := httpserver.SetupCache(ctx, conf.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init cache")
	}
	defer cacheCleanup()

	srv, err := httpserver.New(conf, httpserver.Deps{
		Cache:  blockCache,
		IDs:    ids,
		Logger: logger.New("http"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build server")
	}

	go func() {
		if err := srv.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// wait for signal
	<-ctx.Done()
	// give some time for graceful shutdown
	time.Sleep(time.Second)
}
