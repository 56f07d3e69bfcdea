// Relay Agent — исполняет задачи, пришедшие через RabbitMQ.
//
// relay-agent:
//   - Читает конверты task_request из очереди tasks.requests
//   - Пересылает их HTTP исполнителям из dispatch.targets
//     или выполняет встроенные target (echo, delay, transform)
//   - Публикует task_response / error в ReplyTo запроса
//
// Агенты масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Relay/internal/builtin"
	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/dispatch"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/telemetry"
	"github.com/shaiso/Relay/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting relay-agent")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// RabbitMQ
	mqURL := cfg.Dispatch.AMQPURL
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}
	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	logger.Debug("topology ready", "topology", mq.TopologyInfo())

	// Исполнители: HTTP target из конфигурации, затем встроенные
	registry := worker.NewRegistry()
	httpCh := dispatch.NewHTTPChannel(dispatch.HTTPConfig{Source: cfg.Agent.Name})
	for _, t := range cfg.EnabledTargets() {
		if t.Endpoint == "" {
			continue
		}
		httpCh.AddTarget(dispatch.HTTPTarget{
			Name:      t.Name,
			Endpoint:  t.Endpoint,
			AuthToken: t.AuthToken,
			Timeout:   t.Timeout,
		})
		registry.Register(t.Name, worker.ExecutorFunc(httpCh.Forward), t.Timeout)
	}
	builtin.RegisterAgent(registry)

	w := worker.New(worker.Config{
		Name:        cfg.Agent.Name,
		Registry:    registry,
		Publisher:   mq.NewPublisher(mqConn, logger),
		Conn:        mqConn,
		Concurrency: cfg.Agent.Concurrency,
		Logger:      logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start agent", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		if w.IsStopped() || !mqConn.IsConnected() {
			rw.WriteHeader(http.StatusServiceUnavailable)
			rw.Write([]byte("unavailable"))
			return
		}
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":8082"
	if v := os.Getenv("RELAY_AGENT_ADDR"); v != "" {
		addr = v
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	w.Stop()
	logger.Info("relay-agent stopped")
}
