package main

import (
	"errors"
	"fmt"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/auth"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/catalog"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/clickhouse"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/config"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/dal"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/mocks"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/pubsub"
)

// closer collects cleanup funcs and runs them in reverse
type closer []func()

func (c *closer) add(fn func()) { *c = append(*c, fn) }

func (c closer) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogFile == "" {
		return catalog.Default(), nil
	}
	c, err := catalog.LoadFile(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded catalog", "file", cfg.CatalogFile)
	return c, nil
}

// openStore connects the configured match store
func openStore(cfg *config.Config, c *catalog.Catalog) (dal.MatchDAL, error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		logger.Info("Using in-memory data store")
		return dal.NewMemoryDAL(c), nil
	case config.DriverSQLite:
		store, err := dal.NewSQLiteDAL(cfg.SQLiteFile, cfg.Table, c)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		logger.Info("Connected to SQLite database", "file", cfg.SQLiteFile, "table", cfg.Table)
		return store, nil
	case config.DriverPostgres:
		if cfg.DatabaseURL == "" {
			if cfg.IsDevelopment() {
				return mocks.NewMockPostgresDAL(cfg.SQLiteFile, cfg.Table, c)
			}
			return nil, errors.New("DATABASE_URL environment variable is required for postgres driver")
		}
		opts := dal.DefaultPostgresOptions()
		opts.Table = cfg.Table
		store, err := dal.NewPostgresDAL(cfg.DatabaseURL, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		logger.Info("Connected to Postgres database", "table", cfg.Table)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s (valid: memory, sqlite, postgres)", cfg.DBDriver)
	}
}

// openBus builds the event bus and its upstream
func openBus(cfg *config.Config, cleanup *closer) (*pubsub.Bus, error) {
	switch cfg.NATSMode {
	case config.NATSOff:
		logger.Info("Event bus is local only")
		return pubsub.New(), nil
	case config.NATSMock:
		up := pubsub.NewMemoryUpstream(pubsub.DefaultHistory)
		cleanup.add(up.Close)
		logger.Info("Using in-memory event upstream")
		return pubsub.NewWithUpstream(up), nil
	case config.NATSEmbedded:
		opts := pubsub.DefaultEmbeddedNATSOptions()
		opts.Subject = cfg.NATSSubject
		up, err := pubsub.NewEmbeddedNATSPubSub(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedded NATS: %w", err)
		}
		cleanup.add(up.Close)
		logger.Info("Embedded NATS server ready", "url", up.ServerURL())
		return pubsub.NewWithUpstream(up), nil
	case config.NATSRemote:
		up, err := pubsub.NewNATSPubSub(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize NATS: %w", err)
		}
		cleanup.add(up.Close)
		return pubsub.NewWithUpstream(up), nil
	default:
		return nil, fmt.Errorf("unknown NATS_MODE: %s", cfg.NATSMode)
	}
}

// openRecorder connects the analytics mirror, in memory without an address
func openRecorder(cfg *config.Config) (clickhouse.Recorder, error) {
	if cfg.ClickHouseAddr == "" {
		logger.Info("Using mock ClickHouse for player stats (no ClickHouse server required)")
		return mocks.NewMockClickHouseClient(), nil
	}
	rec, err := clickhouse.NewClient(cfg.ClickHouseAddr, cfg.ClickHouseDB, cfg.ClickHouseUser, cfg.ClickHousePassword)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ClickHouse: %w", err)
	}
	logger.Info("Connected to ClickHouse", "address", cfg.ClickHouseAddr, "database", cfg.ClickHouseDB)
	return rec, nil
}

func newAuthProvider(cfg *config.Config) auth.AuthProvider {
	if cfg.IsDevelopment() && cfg.DiscordClientID == "" {
		logger.Info("Using mock authentication for local development")
		return auth.NewMockAuth(auth.User{})
	}
	logger.Info("Using Discord sign in", "redirect_url", cfg.DiscordRedirectURL)
	return auth.NewDiscordAuth(&auth.DiscordConfig{
		ClientID:     cfg.DiscordClientID,
		ClientSecret: cfg.DiscordClientSecret,
		RedirectURL:  cfg.DiscordRedirectURL,
	})
}

