package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wse/elogist-sync/config"
	"github.com/wse/elogist-sync/internal/api/syncapi"
	"github.com/wse/elogist-sync/internal/broker/kafka"
	"github.com/wse/elogist-sync/internal/cache/rediscache"
	"github.com/wse/elogist-sync/internal/integrations/elogist"
	elogistfake "github.com/wse/elogist-sync/internal/integrations/elogist/fake"
	"github.com/wse/elogist-sync/internal/integrations/shop"
	"github.com/wse/elogist-sync/internal/payload"
	"github.com/wse/elogist-sync/internal/pickup"
	"github.com/wse/elogist-sync/internal/services/ordersync"
	"github.com/wse/elogist-sync/internal/storage/pgshop"
)

type syncAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     syncAPIOpts
	svc      *ordersync.Service
	api      *syncapi.API
	consumer *kafka.Consumer
	closeDB  func()
}

func mustBootstrapSyncAPI() *syncAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("config parse failed: %v", err))
	}

	httpAddr := cfg.Sync.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.Sync.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "sync-api"
	}
	topic := cfg.Kafka.OrderStatusChangedTopicName
	if topic == "" {
		topic = "order.status.changed"
	}
	recordTTL := time.Duration(cfg.Sync.RecordTTLSeconds) * time.Second
	if recordTTL <= 0 {
		recordTTL = 10 * time.Minute
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	sessions := rediscache.NewSessionStore(redisAddr)

	elogistClient := newElogistClient(cfg)
	shopClient := shop.New(cfg.Shop.BaseURL, cfg.Shop.ConsumerKey, cfg.Shop.ConsumerSecret)
	builder := payload.New(cfg.Elogist.ProjectID, pickup.New(sessions))

	svc := ordersync.New(st, shopClient, elogistClient, builder, rc, recordTTL)

	api := syncapi.New(syncapi.Opts{
		Orders:        svc,
		Repo:          st,
		Elogist:       elogistClient,
		WebhookAPIKey: cfg.Sync.WebhookAPIKey,
		FeedURL:       cfg.Feed.URL,
	})

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &syncAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: syncAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		svc:      svc,
		api:      api,
		consumer: consumer,
		closeDB:  st.Close,
	}
}

func newElogistClient(cfg *config.Config) elogist.Client {
	if cfg.Elogist.Mode == "fake" || cfg.Elogist.Endpoint == "" {
		return elogistfake.New()
	}
	return elogist.NewSOAPClient(cfg.Elogist.Endpoint, cfg.Elogist.Username,
		cfg.Elogist.Password, cfg.Elogist.ProjectID)
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgshop.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgshop.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *syncAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *syncAPIApp) Run() error {
	return runSyncAPI(a.ctx, a.opts, a.svc, a.api, a.consumer)
}
