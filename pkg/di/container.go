package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"support-chat/backend/internal/chat"
	"support-chat/backend/internal/store"
	"support-chat/backend/internal/ws"
	"support-chat/backend/pkg/cache"
	"support-chat/backend/pkg/config"
	"support-chat/backend/pkg/health"
	"support-chat/backend/pkg/logger"
	"support-chat/backend/pkg/resilience"
	"support-chat/backend/pkg/secrets"
)

// Container holds all the dependencies for the application
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	Store       store.Store
	DB          *gorm.DB      // set only for the postgres backend
	Redis       *redis.Client // set only for the redis backend
	Registry    *chat.Registry
	Metrics     *chat.Metrics
	Hub         *ws.Hub
	Relay       *chat.Relay
	Health      *health.Checker
	ExportCache *cache.Cache // nil when the export cache is disabled
}

// New creates a new dependency injection container
func New(cfg *config.Config, log *logger.Logger) (*Container, error) {
	if cfg == nil {
		cfg = config.Get()
	}

	// Secrets manager resolves store credentials, falling back to env vars
	// when Vault is disabled.
	if err := secrets.Init(log); err != nil {
		log.Warn("secrets manager unavailable, using environment credentials", "error", err)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		cfg.Store.Postgres.Password = secrets.GetSecretWithDefault(ctx, "DB_PASSWORD", cfg.Store.Postgres.Password)
		cfg.Store.Redis.Password = secrets.GetSecretWithDefault(ctx, "REDIS_PASSWORD", cfg.Store.Redis.Password)
		cancel()
	}

	c := &Container{
		Config:   cfg,
		Logger:   log,
		Registry: chat.NewRegistry(),
		Metrics:  chat.NewMetrics(nil),
		Health:   health.NewChecker(log, 30*time.Second),
	}

	if err := c.initStore(); err != nil {
		return nil, err
	}

	c.Hub = ws.NewHub(log)
	c.Relay = chat.NewRelay(c.Store, c.Registry, c.Hub, log, c.Metrics)

	if cfg.Cache.Enabled {
		c.ExportCache = cache.NewCache()
	}

	c.Health.RegisterCheck("relay", false, func() (health.Status, string, error) {
		return health.StatusUp, fmt.Sprintf("guests=%d admins=%d", c.Registry.GuestCount(), c.Registry.AdminCount()), nil
	})

	return c, nil
}

// initStore selects and connects the message store backend. The durable
// backends sit behind a circuit breaker so a flapping database never wedges
// the relay.
func (c *Container) initStore() error {
	switch c.Config.Store.Backend {
	case config.StorePostgres:
		db, err := config.NewDB()
		if err != nil {
			return fmt.Errorf("failed to initialize postgres store: %w", err)
		}
		pg, err := store.NewPostgres(db)
		if err != nil {
			return fmt.Errorf("failed to migrate postgres store: %w", err)
		}
		c.DB = db
		c.Store = store.Guard(pg, c.storeBreaker())
		c.Health.RegisterStoreCheck(config.StorePostgres, func() error {
			return config.TestConnection(db)
		})

	case config.StoreRedis:
		client, err := config.NewRedis()
		if err != nil {
			return fmt.Errorf("failed to initialize redis store: %w", err)
		}
		c.Redis = client
		c.Store = store.Guard(store.NewRedis(client), c.storeBreaker())
		c.Health.RegisterStoreCheck(config.StoreRedis, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(ctx).Err()
		})

	case config.StoreMemory:
		c.Store = store.NewMemory()
		c.Health.RegisterStoreCheck(config.StoreMemory, func() error { return nil })

	default:
		return fmt.Errorf("unknown store backend %q", c.Config.Store.Backend)
	}

	c.Logger.Info("message store initialized", "backend", c.Config.Store.Backend)
	return nil
}

func (c *Container) storeBreaker() *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("message-store"), c.Logger)
}

// Close releases backend connections.
func (c *Container) Close() error {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			return err
		}
	}
	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
