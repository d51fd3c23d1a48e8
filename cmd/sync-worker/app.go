package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wse/elogist-sync/config"
	"github.com/wse/elogist-sync/internal/broker/kafka"
	"github.com/wse/elogist-sync/internal/cache/rediscache"
	"github.com/wse/elogist-sync/internal/feed"
	"github.com/wse/elogist-sync/internal/integrations/elogist"
	elogistfake "github.com/wse/elogist-sync/internal/integrations/elogist/fake"
	"github.com/wse/elogist-sync/internal/integrations/shop"
	"github.com/wse/elogist-sync/internal/models"
	"github.com/wse/elogist-sync/internal/services/feedsync"
	"github.com/wse/elogist-sync/internal/services/statuspoll"
	"github.com/wse/elogist-sync/internal/storage/pgshop"
)

const (
	defaultFeedSchedule       = "0 */2 * * *"
	defaultLogCleanupSchedule = "0 3 * * 0"
	defaultLogRetentionDays   = 30
)

// workerStorage is what the worker needs from postgres: the feed catalog,
// the state cursors and log maintenance.
type workerStorage interface {
	GetProductMapping(ctx context.Context, xmlGUID, variantID string) (*models.ProductMapping, error)
	UpsertProductMapping(ctx context.Context, m models.ProductMapping) (*models.ProductMapping, error)
	AppendLog(ctx context.Context, level, source, message string, context map[string]any) error
	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, key, value string) error
	CleanupLogs(ctx context.Context, olderThan time.Duration) (int64, error)
}

type workerFactories struct {
	newStorage     func(cfg *config.Config) (workerStorage, func(), error)
	newProducer    func(cfg *config.Config) statuspoll.Producer
	newLock        func(cfg *config.Config) feedsync.Locker
	newRateLimiter func(cfg *config.Config) feedsync.RateLimiter
	newElogist     func(cfg *config.Config) elogist.Client
	newShop        func(cfg *config.Config) feedsync.ShopCatalog
	newFetcher     func(cfg *config.Config) feedsync.Fetcher
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerStorage, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgshop.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) statuspoll.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newLock: func(cfg *config.Config) feedsync.Locker {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewSyncLock(redisAddr)
		},
		newRateLimiter: func(cfg *config.Config) feedsync.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newElogist: func(cfg *config.Config) elogist.Client {
			if cfg.Elogist.Mode == "fake" || cfg.Elogist.Endpoint == "" {
				return elogistfake.New()
			}
			return elogist.NewSOAPClient(cfg.Elogist.Endpoint, cfg.Elogist.Username,
				cfg.Elogist.Password, cfg.Elogist.ProjectID)
		},
		newShop: func(cfg *config.Config) feedsync.ShopCatalog {
			return shop.New(cfg.Shop.BaseURL, cfg.Shop.ConsumerKey, cfg.Shop.ConsumerSecret)
		},
		newFetcher: func(cfg *config.Config) feedsync.Fetcher {
			return feed.NewFetcher(cfg.Feed.URL)
		},
	}
}

// syncWorker holds the running pieces so the diagnostics HTTP server can
// reach them.
type syncWorker struct {
	poller  *statuspoll.Poller
	feedSvc *feedsync.Service
	cfg     *config.Config

	feedTrigger chan struct{}
}

// RunSyncWorker wires the feed sync cron, the log cleanup cron and the
// status poller, then blocks until the context is done.
func RunSyncWorker(ctx context.Context, cfg *config.Config, f workerFactories, onReady func(*syncWorker)) error {
	topic := cfg.Kafka.OrderStatusChangedTopicName
	if topic == "" {
		topic = "order.status.changed"
	}
	pollInterval := time.Duration(cfg.Sync.StatusPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 10 * time.Minute
	}
	feedSchedule := cfg.Feed.Schedule
	if feedSchedule == "" {
		feedSchedule = defaultFeedSchedule
	}
	cleanupSchedule := cfg.Sync.LogCleanupSchedule
	if cleanupSchedule == "" {
		cleanupSchedule = defaultLogCleanupSchedule
	}
	retentionDays := cfg.Sync.LogRetentionDays
	if retentionDays <= 0 {
		retentionDays = defaultLogRetentionDays
	}
	lockTTL := time.Duration(cfg.Feed.LockTTLSeconds) * time.Second
	writesPerMinute := int64(cfg.Feed.ShopWritesPerMinute)

	st, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	feedSvc := feedsync.New(f.newFetcher(cfg), st, f.newShop(cfg), f.newLock(cfg),
		f.newRateLimiter(cfg), st, lockTTL, writesPerMinute)

	p := statuspoll.New(f.newElogist(cfg), f.newProducer(cfg), st, topic).
		WithInterval(pollInterval)

	w := &syncWorker{
		poller:      p,
		feedSvc:     feedSvc,
		cfg:         cfg,
		feedTrigger: make(chan struct{}, 1),
	}

	runFeed := func() {
		stats, err := feedSvc.Run(ctx)
		switch {
		case err == feedsync.ErrSyncRunning:
			slog.Info("feed sync skipped, another run holds the lock")
		case err != nil:
			slog.Error("feed sync failed", "err", err)
		default:
			slog.Info("feed sync finished",
				"processed", stats.Processed, "imported", stats.Imported,
				"updated", stats.Updated, "variants", stats.Variants, "errors", stats.Errors)
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(feedSchedule, runFeed); err != nil {
		return fmt.Errorf("bad feed schedule %q: %w", feedSchedule, err)
	}
	if _, err := c.AddFunc(cleanupSchedule, func() {
		n, err := st.CleanupLogs(ctx, time.Duration(retentionDays)*24*time.Hour)
		if err != nil {
			slog.Error("log cleanup failed", "err", err)
			return
		}
		slog.Info("log cleanup done", "removed", n)
	}); err != nil {
		return fmt.Errorf("bad cleanup schedule %q: %w", cleanupSchedule, err)
	}
	c.Start()
	defer c.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.feedTrigger:
				runFeed()
			}
		}
	}()

	if onReady != nil {
		onReady(w)
	}

	return p.Run(ctx)
}

// TriggerFeed requests an immediate feed sync (best-effort, non-blocking).
func (w *syncWorker) TriggerFeed() {
	select {
	case w.feedTrigger <- struct{}{}:
	default:
	}
}
