package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/agendafacil/libs/config"
)

type settings struct {
	Service  string
	HTTPPort string
	GRPCPort string

	StorageDriver string
	CatalogDriver string
	DatabaseURL   string
	SQLitePath    string
	CatalogSeed   string
	CatalogTTL    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	TopicPrefix  string
	WebhookURL   string
	WebhookToken string

	Granularity    int
	MaxOccurrences int
	JWTSecret      string
	RatePerMinute  int
	CORSOrigins    []string

	ReminderLead  time.Duration
	ReminderEvery time.Duration
}

func loadSettings() (settings, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	s := settings{
		Service:       config.String("SERVICE_NAME", "booking-service"),
		StorageDriver: strings.ToLower(config.String("STORAGE_DRIVER", "postgres")),
		CatalogDriver: strings.ToLower(config.String("CATALOG_DRIVER", "postgres")),
		DatabaseURL:   config.String("DATABASE_URL", ""),
		SQLitePath:    config.String("SQLITE_PATH", "booking.db"),
		CatalogSeed:   config.String("CATALOG_SEED_FILE", ""),
		RedisAddr:     config.String("REDIS_ADDR", ""),
		RedisPassword: config.String("REDIS_PASSWORD", ""),
		KafkaBrokers:  config.List("KAFKA_BROKERS"),
		TopicPrefix:   config.String("NOTIFY_TOPIC_PREFIX", ""),
		WebhookURL:    config.String("NOTIFY_WEBHOOK_URL", ""),
		WebhookToken:  config.String("NOTIFY_WEBHOOK_TOKEN", ""),
		JWTSecret:     config.String("JWT_SECRET", ""),
		CORSOrigins:   config.List("CORS_ALLOWED_ORIGINS"),
	}
	var err error
	s.HTTPPort, err = config.Port("PORT", "8083")
	collect(err)
	s.GRPCPort, err = config.Port("GRPC_PORT", "9093")
	collect(err)
	s.RedisDB, err = config.Int("REDIS_DB", 0)
	collect(err)
	s.CatalogTTL, err = config.Duration("CATALOG_CACHE_TTL", time.Second, time.Minute)
	collect(err)
	s.Granularity, err = config.Int("SLOT_GRANULARITY_MINUTES", 30)
	collect(err)
	s.MaxOccurrences, err = config.Int("MAX_OCCURRENCES", 52)
	collect(err)
	s.RatePerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 60)
	collect(err)
	s.ReminderLead, err = config.Duration("REMINDER_LEAD_MINUTES", time.Minute, 24*time.Hour)
	collect(err)
	s.ReminderEvery, err = config.Duration("REMINDER_POLL_SECONDS", time.Second, time.Minute)
	collect(err)

	switch s.StorageDriver {
	case "postgres", "sqlite", "memory":
	default:
		collect(fmt.Errorf("STORAGE_DRIVER must be postgres, sqlite or memory (got %q)", s.StorageDriver))
	}
	switch s.CatalogDriver {
	case "postgres":
	case "memory":
		if s.CatalogSeed == "" {
			collect(errors.New("CATALOG_SEED_FILE is required when CATALOG_DRIVER=memory"))
		}
	default:
		collect(fmt.Errorf("CATALOG_DRIVER must be postgres or memory (got %q)", s.CatalogDriver))
	}
	if (s.StorageDriver == "postgres" || s.CatalogDriver == "postgres") && s.DatabaseURL == "" {
		collect(errors.New("DATABASE_URL is required for the postgres drivers"))
	}
	if s.Granularity <= 0 || s.Granularity > 24*60 {
		collect(fmt.Errorf("SLOT_GRANULARITY_MINUTES must be within 1..1440 (got %d)", s.Granularity))
	}
	return s, errors.Join(errs...)
}
