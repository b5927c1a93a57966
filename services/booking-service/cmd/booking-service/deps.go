package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/agendafacil/libs/cache"
	"github.com/md-rashed-zaman/agendafacil/libs/db"
	"github.com/md-rashed-zaman/agendafacil/libs/kafkax"
	"github.com/md-rashed-zaman/agendafacil/libs/runtime"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
)

// deps are the shared collaborators every subcommand builds on.
type deps struct {
	pool       *db.Pool
	redis      *redis.Client
	repo       storage.Repository
	catalog    catalog.Reader
	cache      cache.Cache
	dispatcher notify.Dispatcher
	ready      []runtime.ReadyCheck
	closers    []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func buildDeps(ctx context.Context, s settings, logger *slog.Logger) (*deps, error) {
	d := &deps{}
	fail := func(err error) (*deps, error) {
		d.Close()
		return nil, err
	}

	if s.DatabaseURL != "" && (s.StorageDriver == "postgres" || s.CatalogDriver == "postgres") {
		pool, err := db.Open(ctx, s.DatabaseURL)
		if err != nil {
			return fail(fmt.Errorf("open postgres: %w", err))
		}
		d.pool = pool
		d.closers = append(d.closers, pool.Close)
		d.ready = append(d.ready, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	}

	switch s.StorageDriver {
	case "postgres":
		d.repo = storage.NewPostgres(d.pool)
	case "sqlite":
		lite, err := storage.OpenSQLite(ctx, s.SQLitePath)
		if err != nil {
			return fail(err)
		}
		d.repo = lite
		d.closers = append(d.closers, func() { _ = lite.Close() })
		d.ready = append(d.ready, runtime.ReadyCheck{Name: "sqlite", Check: lite.Ping})
	case "memory":
		logger.Warn("appointments kept in memory; they are lost on restart")
		d.repo = storage.NewMemory()
	}

	d.cache = cache.NewMemory()
	if s.RedisAddr != "" {
		d.redis = cache.NewRedisClient(s.RedisAddr, s.RedisPassword, s.RedisDB)
		d.closers = append(d.closers, func() { _ = d.redis.Close() })
		d.cache = cache.NewRedis(d.redis, s.Service+":")
		d.ready = append(d.ready, runtime.ReadyCheck{Name: "redis", Check: cache.ReadyCheck(d.redis)})
	}

	var base catalog.Reader
	switch s.CatalogDriver {
	case "postgres":
		base = catalog.NewPostgres(d.pool)
	case "memory":
		mem, err := catalog.LoadSeedFile(s.CatalogSeed)
		if err != nil {
			return fail(err)
		}
		base = mem
	}
	d.catalog = base
	if s.CatalogTTL > 0 && s.CatalogDriver == "postgres" {
		d.catalog = catalog.NewCached(base, d.cache, s.CatalogTTL, logger)
	}

	if len(s.KafkaBrokers) > 0 {
		w := kafkax.NewWriter(s.KafkaBrokers)
		d.closers = append(d.closers, func() { _ = w.Close() })
		d.dispatcher = notify.NewKafka(w, s.TopicPrefix)
		d.ready = append(d.ready, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(s.KafkaBrokers)})
	} else if s.WebhookURL != "" {
		d.dispatcher = notify.NewWebhook(s.WebhookURL, s.WebhookToken)
	} else {
		logger.Warn("no notification transport configured; notifications are only logged")
		d.dispatcher = notify.NewLog(logger)
	}
	return d, nil
}
