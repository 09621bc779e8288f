package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/p2poffer/internal/blob/s3"
	"github.com/alanyoungcy/p2poffer/internal/cache/redis"
	"github.com/alanyoungcy/p2poffer/internal/config"
	"github.com/alanyoungcy/p2poffer/internal/domain"
	"github.com/alanyoungcy/p2poffer/internal/notify"
	"github.com/alanyoungcy/p2poffer/internal/platform/exchange"
	"github.com/alanyoungcy/p2poffer/internal/server/handler"
	"github.com/alanyoungcy/p2poffer/internal/store/postgres"
)

// Dependencies bundles the concrete integrations the modes run on. Optional
// ones are nil when their backend is disabled.
type Dependencies struct {
	Exchange domain.ExchangeGateway

	// Postgres
	AuditStore  domain.AuditStore
	AuditPruner domain.AuditPruner
	OfferStore  domain.OfferStore

	// Redis
	PriceCache  domain.PriceCache
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	// S3
	Archiver domain.Archiver

	Notifier *notify.Notifier

	// Pingers feeds the health check, keyed by backend name.
	Pingers map[string]handler.Pinger
}

// pingFunc adapts a health function to handler.Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// needsPostgres reports whether the mode requires a database connection.
func needsPostgres(cfg *config.Config) bool {
	return cfg.Database.Enabled || strings.EqualFold(cfg.Mode, "archive")
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Pingers: make(map[string]handler.Pinger)}
	mode := strings.ToLower(cfg.Mode)

	if mode == "server" {
		deps.Exchange = exchange.NewClient(exchange.Config{
			BaseURL:           cfg.Exchange.BaseURL,
			APIKey:            cfg.Exchange.APIKey,
			Timeout:           cfg.Exchange.Timeout.Duration,
			RequestsPerSecond: cfg.Exchange.RequestsPerSecond,
		})
	}

	// --- PostgreSQL ---
	var pgClient *postgres.Client
	if needsPostgres(cfg) {
		var err error
		pgClient, err = postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		audit := postgres.NewAuditStore(pgClient.Pool())
		deps.AuditStore = audit
		deps.AuditPruner = audit
		deps.OfferStore = postgres.NewOfferStore(pgClient.Pool())
		deps.Pingers["postgres"] = pgClient
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			PriceTTL:   cfg.Redis.PriceTTL.Duration,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Pingers["redis"] = redisClient
	}

	// --- S3 (archive mode only) ---
	if mode == "archive" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Pingers["s3"] = pingFunc(s3Client.Health)

		archiver := s3blob.NewAuditArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewChecker(s3Client),
			deps.AuditStore,
			logger,
		)
		if cfg.Archive.Prune {
			archiver.SetPruner(deps.AuditPruner)
		}
		deps.Archiver = archiver
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
