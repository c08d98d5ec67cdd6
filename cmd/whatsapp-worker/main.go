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

	waadapter "github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/adapters/whatsapp"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/cloudapi"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/config"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/kafka/consumer"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/kafka/producer"
	kafkapublisher "github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/kafka/publisher"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/logger"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/models"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/worker"
	whatsappvalidator "github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/worker/validator/whatsapp"
)

const serviceName = "whatsapp-worker"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorker()
	if err != nil {
		fail("config load", err)
	}

	log, err := logger.New(serviceName, cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}

	prod, err := producer.New(cfg.Kafka.Brokers, logger.Component(log, "kafka-producer"), producer.WithClientID(serviceName))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka producer")
	}
	defer func() {
		if err := prod.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka producer")
		}
	}()

	cons, err := consumer.New(cfg.Kafka.Brokers, cfg.ConsumerGroup, logger.Component(log, "kafka-consumer"), cfg.Retry.CommitOnSuccessOnly, consumer.WithClientID(serviceName))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka consumer")
	}
	defer func() {
		if err := cons.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka consumer")
		}
	}()

	statusPublisher := kafkapublisher.NewStatusPublisher(prod, cfg.Topics.Status, logger.Component(log, "status-publisher"))
	dlqPublisher := kafkapublisher.NewDLQPublisher(prod, cfg.Topics.DLQ, logger.Component(log, "dlq-publisher"))

	providerTimeout := time.Duration(cfg.Timeouts.ProviderTimeoutSeconds) * time.Second
	client, err := cloudapi.NewClient(cfg.Cloud, logger.Component(log, "cloudapi"),
		cloudapi.WithHTTPClient(&http.Client{Timeout: 2 * providerTimeout}))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise cloud api client")
	}

	adapter, err := waadapter.NewAdapter(client, logger.Component(log, "whatsapp-adapter"), waadapter.WithAttemptTimeout(providerTimeout))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise whatsapp adapter")
	}

	validator := whatsappvalidator.New(cfg.Validation, logger.Component(log, "whatsapp-validator"))

	engine, err := worker.NewEngine(worker.Config{
		Channel:           models.ChannelWhatsApp,
		MsgMaxBytes:       cfg.Validation.MsgMaxBytes,
		MaxAttempts:       cfg.Retry.MaxAttempts,
		BaseBackoff:       time.Duration(cfg.Retry.BaseBackoffSeconds) * time.Second,
		MaxBackoff:        time.Duration(cfg.Retry.MaxBackoffSeconds) * time.Second,
		WorkerConcurrency: cfg.Retry.WorkerConcurrency,
	}, worker.Dependencies{
		Adapter:         adapter,
		Validator:       validator,
		StatusPublisher: statusPublisher,
		DLQPublisher:    dlqPublisher,
		Committer:       worker.RecordCommitter,
		Logger:          logger.Component(log, "worker-engine"),
		Now:             time.Now,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise worker engine")
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := cons.Consume(ctx, []string{cfg.Topics.Request}, worker.KafkaHandler(engine, cons)); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	log.Info().
		Str("request_topic", cfg.Topics.Request).
		Str("graph_api_version", cfg.Cloud.Version()).
		Int("concurrency", cfg.Retry.WorkerConcurrency).
		Msg("whatsapp worker started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("consumer terminated with error")
		}
		stop()
	}

	engine.Wait()
	log.Info().Msg("in-flight messages drained")
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("whatsapp worker init failed")
}
