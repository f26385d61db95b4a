package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/pos-terminal/internal/config"
	"github.com/example/pos-terminal/internal/feed"
	"github.com/example/pos-terminal/internal/gateway"
	httpapi "github.com/example/pos-terminal/internal/http"
	"github.com/example/pos-terminal/internal/lifecycle"
	"github.com/example/pos-terminal/internal/logging"
	"github.com/example/pos-terminal/internal/reader"
	"github.com/example/pos-terminal/internal/session"
	"github.com/example/pos-terminal/internal/shellcache"
	"github.com/example/pos-terminal/internal/trigger"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	sess := session.New()
	gw := gateway.New(cfg.APIBaseURL, sess, cfg.APITimeout, logging.Component(logger, "gateway"))

	var sink lifecycle.EventSink
	if len(cfg.KafkaBrokers) > 0 {
		producer := feed.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		sink = producer
	}

	lc := &lifecycle.Service{
		Gateway: gw,
		Session: sess,
		Feed:    sink,
		Logger:  logging.Component(logger, "lifecycle"),
	}

	readers := reader.NewRegistry(logging.Component(logger, "reader"))
	tc := &trigger.Controller{
		Source:        readers,
		Confirmer:     lc,
		Session:       sess,
		Logger:        logging.Component(logger, "trigger"),
		DetectTimeout: cfg.DetectTimeout,
	}

	var shell http.Handler
	if cfg.ShellOrigin != "" {
		var store shellcache.Store
		if cfg.RedisAddr != "" {
			store = shellcache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisCacheDB)
		} else {
			store = shellcache.NewMemoryStore()
		}
		h := shellcache.NewHandler(cfg.ShellOrigin, store, logging.Component(logger, "shellcache"))
		go h.Prime([]string{"/", "/app.js", "/manifest.json"})
		shell = h
	}

	srv := httpapi.NewServer(gw, lc, tc, readers, sess, shell, logger)
	server := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     srv,
		ReadTimeout: cfg.ReadTimeout,
		// Trigger activation blocks until detection; an open-ended scan
		// must not be cut, so a write timeout is only set when the detect
		// timeout bounds the wait.
		IdleTimeout: cfg.IdleTimeout,
	}
	if cfg.DetectTimeout > 0 {
		server.WriteTimeout = cfg.WriteTimeout + cfg.DetectTimeout
	}

	go func() {
		logger.Info("pos-terminal listening", "addr", cfg.HTTPAddr, "api_base", cfg.APIBaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
		return
	}
	logger.Info("stopped cleanly")
}
