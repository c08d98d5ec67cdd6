package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/config"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/kafka/producer"
	kafkapublisher "github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/kafka/publisher"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/logger"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/webhook"
)

const (
	serviceName     = "whatsapp-webhook"
	shutdownTimeout = 15 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWebhook()
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

	pub := kafkapublisher.NewInboundPublisher(prod, cfg.Topics.Inbound, logger.Component(log, "inbound-publisher"))

	handler, err := webhook.NewHandler(cfg.Webhook.VerifyToken, pub, logger.Component(log, "webhook"),
		webhook.WithBusinessAccountID(cfg.Cloud.BusinessAccountID),
		webhook.WithReadiness(prod.IsReady),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise webhook handler")
	}

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info().
		Str("addr", srv.Addr).
		Str("inbound_topic", cfg.Topics.Inbound).
		Msg("whatsapp webhook started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server terminated with error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("whatsapp webhook init failed")
}
