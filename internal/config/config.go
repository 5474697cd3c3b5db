// Package config loads service settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when present
const DefaultEnvFile = ".env"

// Store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// NATS modes
const (
	NATSEmbedded = "embedded"
	NATSRemote   = "remote"
	NATSMock     = "mock"
	NATSOff      = "off"
)

// Config is every setting the service reads
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Port        string `env:"PORT" envDefault:"3000"`
	GRPCPort    string `env:"GRPC_PORT" envDefault:"50051"`
	GRPCToken   string `env:"GRPC_TOKEN"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLiteFile  string `env:"SQLITE_FILE" envDefault:"dev.sqlite"`
	Table       string `env:"SUPABASE_TABLE" envDefault:"match_master"`
	DryRun      bool   `env:"DRY_RUN" envDefault:"true"`
	ResolveIDs  bool   `env:"RESOLVE_IDS" envDefault:"true"`

	GuildLabel       string        `env:"GUILD_LABEL" envDefault:"Guild"`
	JSOCLabel        string        `env:"JSOC_LABEL" envDefault:"JSOC"`
	IdleTimeout      time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"15m"`
	SweepInterval    time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
	StrictRosterSize bool          `env:"STRICT_ROSTER_SIZE" envDefault:"false"`
	CatalogFile      string        `env:"CATALOG_FILE"`

	NATSMode    string `env:"NATS_MODE" envDefault:"embedded"`
	NATSURL     string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSSubject string `env:"NATS_SUBJECT" envDefault:"matchlog.events"`

	ClickHouseAddr     string `env:"CLICKHOUSE_ADDR"`
	ClickHouseDB       string `env:"CLICKHOUSE_DB" envDefault:"default"`
	ClickHouseUser     string `env:"CLICKHOUSE_USER" envDefault:"default"`
	ClickHousePassword string `env:"CLICKHOUSE_PASSWORD"`

	DiscordClientID     string `env:"DISCORD_CLIENT_ID"`
	DiscordClientSecret string `env:"DISCORD_CLIENT_SECRET"`
	DiscordRedirectURL  string `env:"DISCORD_REDIRECT_URL" envDefault:"http://localhost:3000/auth/callback"`

	CORSAllowOrigins  []string      `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"30"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	// EnvFile is the dotenv file that was loaded, empty when none was found
	EnvFile string `env:"-"`
}

// Load reads envFile (DefaultEnvFile when empty) if it exists, then parses
// the environment. Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}

	loaded := envFile
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
		loaded = ""
	}

	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	cfg.EnvFile = loaded
	return cfg, nil
}

// Parse reads the environment only
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// IsDevelopment reports whether mock auth and local defaults apply
func (c *Config) IsDevelopment() bool {
	return c.Environment == "" || c.Environment == "development"
}

// HTTPAddr is the listen address of the HTTP server
func (c *Config) HTTPAddr() string {
	return "0.0.0.0:" + c.Port
}

// GRPCAddr is the listen address of the gRPC server
func (c *Config) GRPCAddr() string {
	return "0.0.0.0:" + c.GRPCPort
}

// PersistsRawCodes reports whether unresolved catalog codes would reach a real
// store. mode_id and map_id are integer columns, so this setup is rejected.
func (c *Config) PersistsRawCodes() bool {
	return !c.ResolveIDs && !c.DryRun
}
