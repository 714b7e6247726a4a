package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/igor322/account-service/internal/infrastructure/db/mongo"
	"github.com/igor322/account-service/internal/infrastructure/db/postgres"
	"github.com/igor322/account-service/internal/infrastructure/db/redis"
)

// Supported values for STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	Port           string        `env:"PORT,            default=8080"`
	Env            string        `env:"ENV,             default=development"`
	LogLevel       string        `env:"LOG_LEVEL,       default=info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT, default=10s"`
	StoreDriver    string        `env:"STORE_DRIVER,    default=postgres"`

	// BcryptCost of 0 selects bcrypt.DefaultCost.
	BcryptCost int `env:"BCRYPT_COST, default=0"`

	Postgres PostgresConfig
	Mongo    MongoConfig
	Redis    RedisConfig
}

type PostgresConfig struct {
	Host        string        `env:"DB_HOST,              default=localhost"`
	Port        int           `env:"DB_PORT,              default=5432"`
	User        string        `env:"DB_USER,              default=postgres"`
	Password    string        `env:"DB_PASSWORD"`
	Database    string        `env:"DB_NAME,              default=accounts"`
	SSLMode     string        `env:"DB_SSLMODE,           default=disable"`
	MaxConns    int           `env:"DB_POOL_MAX,          default=5"`
	MaxIdle     int           `env:"DB_POOL_MAX_IDLE,     default=5"`
	IdleTimeout time.Duration `env:"DB_POOL_IDLE_TIMEOUT, default=20s"`
}

type MongoConfig struct {
	URI         string        `env:"MONGO_URI,               default=mongodb://localhost:27017"`
	Database    string        `env:"MONGO_DB,                default=accounts"`
	MaxPoolSize uint64        `env:"MONGO_POOL_MAX,          default=5"`
	IdleTimeout time.Duration `env:"MONGO_POOL_IDLE_TIMEOUT, default=20s"`
}

type RedisConfig struct {
	Enabled  bool          `env:"REDIS_ENABLED,   default=false"`
	Addr     string        `env:"REDIS_ADDR,      default=localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,        default=0"`
	PoolSize int           `env:"REDIS_POOL_SIZE, default=10"`
	CacheTTL time.Duration `env:"REDIS_CACHE_TTL, default=5m"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith resolves the configuration from l and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverMongo:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMongo, c.StoreDriver)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

// IsDevelopment reports whether the service runs with ENV=development.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c PostgresConfig) Options() postgres.Config {
	return postgres.Config{
		Host:         c.Host,
		Port:         c.Port,
		User:         c.User,
		Password:     c.Password,
		Database:     c.Database,
		SSLMode:      c.SSLMode,
		MaxConns:     c.MaxConns,
		MaxIdleConns: c.MaxIdle,
		IdleTimeout:  c.IdleTimeout,
	}
}

func (c MongoConfig) Options() mongo.Config {
	return mongo.Config{
		URI:         c.URI,
		Database:    c.Database,
		MaxPoolSize: c.MaxPoolSize,
		IdleTimeout: c.IdleTimeout,
	}
}

func (c RedisConfig) Options() redis.Config {
	return redis.Config{Addr: c.Addr, Password: c.Password, DB: c.DB, PoolSize: c.PoolSize}
}
