// Command ventrixd runs the event broker: the HTTP control plane, the
// dispatch queue, the delivery worker, the retry scheduler, and the
// admin WebSocket feed, all in a single process.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Runic-Dev/ventrix/internal/api"
	"github.com/Runic-Dev/ventrix/internal/broker"
	"github.com/Runic-Dev/ventrix/internal/config"
	"github.com/Runic-Dev/ventrix/internal/inflight"
	"github.com/Runic-Dev/ventrix/internal/logger"
	"github.com/Runic-Dev/ventrix/internal/storage"
	"github.com/Runic-Dev/ventrix/internal/streaming"
)

func main() {
	log := logger.New("ventrixd")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", "error", err.Error())
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", "error", err.Error())
	}

	var store storage.Storage
	if cfg.Features.Persistence {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := storage.NewPostgres(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Fatal("failed to connect to postgres", "error", err.Error())
		}
		defer pg.Close()
		store = pg
		log.Info("persistence backend: postgres")
	} else {
		store = storage.NewMemory()
		log.Info("persistence backend: in-memory")
	}

	marker := inflight.NewMarker(cfg.RedisURL, cfg.InflightMarkerTTL, log)
	defer marker.Close()

	var hub *streaming.Hub
	var observer broker.DeliveryObserver
	if cfg.WebSocketEnabled {
		hub = streaming.NewHub(log)
		go hub.Run()
		observer = hub
	}

	b := broker.New(broker.Config{
		Store:             store,
		Observer:          observer,
		Inflight:          &broker.InflightGuard{Claimer: marker, Releaser: marker},
		ChannelCapacity:   cfg.ChannelCapacity,
		SubscriberTimeout: cfg.SubscriberTimeout,
		RetryCap:          cfg.RetryCap,
		SchedulerInterval: cfg.SchedulerInterval,
		Log:               log,
	})

	ctx, cancelBroker := context.WithCancel(context.Background())
	b.Start(ctx)

	handler := api.NewHandler(store, b.Publisher, cfg.Features.ValidateEventDef, log)
	router := api.NewRouter(handler, hub)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down")

		// Stop the HTTP server first so no publish handler is still
		// sending when the broker closes its dispatch queue.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("error during http shutdown", "error", err.Error())
		}

		b.Shutdown()
		cancelBroker()
		close(done)
	}()

	log.Info("ventrixd starting", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("http server failed", "error", err.Error())
	}

	<-done
	log.Info("ventrixd stopped")
}
