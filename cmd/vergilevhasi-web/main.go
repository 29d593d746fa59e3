// Command vergilevhasi-web serves the tax plate upload page and the JSON
// extraction API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/alparslanahmed/vergilevhasi-ocr/internal/app"
	"github.com/alparslanahmed/vergilevhasi-ocr/internal/cache"
	"github.com/alparslanahmed/vergilevhasi-ocr/internal/observability"
	"github.com/alparslanahmed/vergilevhasi-ocr/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	parser, err := app.BuildParser(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build parser")
	}
	if closer, ok := parser.Engine().(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.WithError(err).Warn("OCR engine close")
			}
		}()
	}

	var resultCache *cache.Cache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis ping failed, results are cached once it is reachable")
		}
		resultCache = cache.NewCache(redisClient, cfg.CacheTTL)
		defer func() {
			if err := resultCache.Close(); err != nil {
				logger.WithError(err).Warn("Redis close")
			}
		}()
	}

	templates, err := web.NewEngine()
	if err != nil {
		logger.WithError(err).Fatal("Failed to parse templates")
	}
	metrics := observability.NewMetrics()

	handler := web.NewHandler(web.Params{
		Logger:         logger,
		Parser:         parser,
		Fetcher:        app.NewFetcher(cfg),
		Cache:          resultCache,
		Metrics:        metrics,
		Templates:      templates,
		MaxUploadBytes: cfg.UploadMaxBytes,
		ShowDownload:   cfg.ShowDownload,
		CacheSettings:  app.CacheSettings(cfg, parser),
	})

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Handler: handler,
		Cache:   resultCache,
		Metrics: metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":   cfg.AppAddr,
			"engine": parser.Engine().Name(),
		}).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
