package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	waadapter "github.com/example/whatsapp-messaging/internal/adapters/whatsapp"
	"github.com/example/whatsapp-messaging/internal/config"
	"github.com/example/whatsapp-messaging/internal/kafka/consumer"
	"github.com/example/whatsapp-messaging/internal/kafka/producer"
	kafkapublisher "github.com/example/whatsapp-messaging/internal/kafka/publisher"
	"github.com/example/whatsapp-messaging/internal/logger"
	"github.com/example/whatsapp-messaging/internal/metrics"
	"github.com/example/whatsapp-messaging/internal/validator"
	"github.com/example/whatsapp-messaging/internal/worker"
)

const (
	serviceName     = "whatsapp-worker"
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		fail("config validate", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", serviceName).Logger()

	metricsServer := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           metricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	prod, err := producer.New(cfg.Kafka.Brokers, logger.Component(*baseLogger, serviceName, "kafka-producer"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka producer")
	}
	defer func() {
		if err := prod.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka producer")
		}
	}()

	cons, err := consumer.New(consumer.Config{
		Brokers:             cfg.Kafka.Brokers,
		GroupID:             cfg.Kafka.ConsumerGroup,
		Topic:               cfg.Kafka.RequestTopic,
		CommitOnSuccessOnly: cfg.Kafka.CommitOnSuccessOnly,
	}, logger.Component(*baseLogger, serviceName, "kafka-consumer"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka consumer")
	}

	statusPublisher := kafkapublisher.NewStatusPublisher(prod, cfg.Kafka.StatusTopic, logger.Component(*baseLogger, serviceName, "status-publisher"))
	dlqPublisher := kafkapublisher.NewDLQPublisher(prod, cfg.Kafka.DLQTopic, logger.Component(*baseLogger, serviceName, "dlq-publisher"))

	client, err := cfg.NewClient(logger.Component(*baseLogger, serviceName, "whatsapp-client"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise whatsapp client")
	}

	adapter, err := waadapter.NewAdapter(client, logger.Component(*baseLogger, serviceName, "whatsapp-adapter"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise whatsapp adapter")
	}

	dispatcher, err := worker.NewDispatcher(worker.Config{
		MsgMaxBytes: cfg.Worker.MsgMaxBytes,
		Concurrency: cfg.Worker.Concurrency,
	}, worker.Dependencies{
		Adapter:         adapter,
		Validator:       validator.New(cfg.Worker, logger.Component(*baseLogger, serviceName, "validator")),
		StatusPublisher: statusPublisher,
		DLQPublisher:    dlqPublisher,
		Logger:          log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise dispatcher")
	}

	// In-flight sends finish inside the session so their offsets are committed.
	cons.OnCleanup(dispatcher.Wait)

	errCh := make(chan error, 1)
	go func() {
		if err := cons.Consume(ctx, worker.KafkaHandler(dispatcher, cons)); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().
		Str("request_topic", cfg.Kafka.RequestTopic).
		Str("consumer_group", cfg.Kafka.ConsumerGroup).
		Int("concurrency", cfg.Worker.Concurrency).
		Str("metrics_addr", cfg.Metrics.Addr).
		Msg("whatsapp worker started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("consumer terminated with error")
		}
	}

	// Stop fetching, let in-flight sends finish, then release the group.
	stop()
	dispatcher.Wait()
	if err := cons.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close kafka consumer")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop metrics server")
	}
	log.Info().Msg("whatsapp worker stopped")
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("whatsapp worker init failed")
}
