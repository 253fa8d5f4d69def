package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/diogoX451/callrelay/internal/api"
	"github.com/diogoX451/callrelay/internal/command"
	"github.com/diogoX451/callrelay/internal/config"
	"github.com/diogoX451/callrelay/internal/events"
	natsevents "github.com/diogoX451/callrelay/internal/events/nats"
	"github.com/diogoX451/callrelay/internal/logging"
	"github.com/diogoX451/callrelay/internal/metrics"
	"github.com/diogoX451/callrelay/internal/relay"
	"github.com/diogoX451/callrelay/internal/stream"
	"github.com/diogoX451/callrelay/pkg/types"
)

func main() {
	configPath := flag.String("config", types.Getenv("CALLRELAY_CONFIG", ""), "optional config file (yaml, toml, json)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.Init(logging.Options{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.LogFormat,
		File:   cfg.App.LogFile,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prom := metrics.NewProm()

	// Fan-out
	registry := stream.NewRegistry(
		stream.WithMetrics(prom),
		stream.WithClientBuffer(cfg.Relay.ClientBuffer),
	)
	eventRelay := relay.New(cfg.Relay.Subjects, registry, relay.WithMetrics(prom))
	go eventRelay.Run(ctx)

	// Bus: o supervisor reconecta sozinho, nunca derruba o processo
	bus := events.NewConnection(
		natsevents.Dialer(natsevents.Config{
			URL:            cfg.NATS.URL,
			Name:           cfg.NATS.Name,
			ConnectTimeout: cfg.NATS.ConnectTimeout,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
		}),
		events.WithReconnectWait(cfg.NATS.ReconnectWait),
		events.WithStateObserver(func(s events.State) {
			prom.SetBusConnected(s == events.Connected)
		}),
	)
	bus.OnConnected(eventRelay.Install)
	bus.Start(ctx)
	defer bus.Close()

	bridge := command.New(bus, cfg.APISubject(),
		command.WithTimeout(cfg.NATS.RequestTimeout),
		command.WithMetrics(prom),
	)

	server := api.NewServer(bridge, registry, bus,
		api.WithMetricsHandler(prom.Handler()),
		api.WithPublicDir(cfg.App.PublicDir),
	)

	// Sem WriteTimeout: /api/events é um stream longo
	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           server,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("Server is shutting down...")

		// derruba os streams SSE antes do Shutdown esperar por eles
		cancel()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()

		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Could not gracefully shutdown the server: %v", err)
		}
		close(done)
	}()

	log.Info("============================================================")
	log.Info("FreeSWITCH Call Control API")
	log.WithFields(log.Fields{
		"addr":    srv.Addr,
		"nats":    cfg.NATS.URL,
		"node_id": cfg.Relay.NodeID,
		"subject": bridge.Subject(),
	}).Info("Server is ready to handle requests")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v", srv.Addr, err)
	}

	<-done
	log.Info("Server stopped")
}
