package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PlateWorks/ServiceBox/config"
	"github.com/PlateWorks/ServiceBox/internal/auth/redissession"
	"github.com/PlateWorks/ServiceBox/internal/broker/kafka"
	"github.com/PlateWorks/ServiceBox/internal/services/garage"
	"github.com/PlateWorks/ServiceBox/internal/storage/pggarage"
	"github.com/PlateWorks/ServiceBox/internal/storage/sigstore/supahttp"
)

type serviceAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     serviceAPIOpts
	svc      *garage.Service
	consumer *kafka.Consumer
	producer *kafka.Producer
	closeDB  func()
}

func mustBootstrapServiceAPI() *serviceAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	httpAddr := cfg.ServiceBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.ServiceBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "service-api"
	}
	updatedTopic := cfg.Kafka.ServiceUpdatedTopicName
	if updatedTopic == "" {
		updatedTopic = "service.updated"
	}
	signatureTopic := cfg.Kafka.SignatureCapturedTopicName
	if signatureTopic == "" {
		signatureTopic = "signature.captured"
	}
	bucket := cfg.Storage.SignatureBucket
	if bucket == "" {
		bucket = "signatures"
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	sessions := redissession.New(redisAddr)

	blobs := supahttp.New(cfg.Storage.BaseURL, cfg.Storage.APIKey)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, signatureTopic, consumerGroup)

	svc := garage.New(st, sessions, blobs, producer, garage.Options{
		SignatureBucket: bucket,
		UpdatedTopic:    updatedTopic,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &serviceAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: serviceAPIOpts{
			httpAddr:       httpAddr,
			signatureTopic: signatureTopic,
			consumerGroup:  consumerGroup,
		},
		svc:      svc,
		consumer: consumer,
		producer: producer,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pggarage.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pggarage.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *serviceAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *serviceAPIApp) Run() error {
	return runServiceAPI(a.ctx, a.opts, a.svc, a.consumer)
}
