package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"catalog_gateway/internal/breaker"
	"catalog_gateway/internal/catalog"
	"catalog_gateway/internal/family"
	"catalog_gateway/internal/fetcher"
	"catalog_gateway/internal/incremental"
	"catalog_gateway/internal/storage"
	"catalog_gateway/internal/syncjob"
)

// Config holds configuration for the catalog gateway.
type Config struct {
	HTTPPort  string
	JWTSecret []byte
	Database  DatabaseConfig
	Redis     RedisConfig
	Catalog   CatalogConfig
	Fetch     fetcher.Config
	Breaker   breaker.Config
	Sync      SyncConfig
	Logging   LoggingConfig
}

// DatabaseConfig holds database connection settings. An empty URL selects
// the in-memory origin store.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings. An empty Address selects
// the in-memory cache and queue.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CatalogConfig holds the cache hierarchy and catalog shaping settings
type CatalogConfig struct {
	L1TTL            time.Duration
	L2TTL            time.Duration
	EntryTTL         time.Duration // per-model and provider index entries
	RefreshThreshold time.Duration
	FetchDeadline    time.Duration
	DefaultLimit     int
	MaxLimit         int
	MemoryCacheSize  int

	FamilyPolicy   string
	FamilyMapPath  string            // YAML provider/model -> family id map for the curated policy
	FamilyMap      map[string]string // loaded from FamilyMapPath
	CriticalFields []string
	OverridesPath  string // empty uses the embedded table

	ProvidersFile  string // optional YAML seed upserted at startup
	ProviderReload time.Duration
	CredentialsKey string // base64 key opening sealed provider API keys
}

// SyncConfig holds background sync settings
type SyncConfig struct {
	Schedule        string // cron spec, takes precedence over Interval
	Interval        time.Duration
	CleanupInterval time.Duration
	JobTimeout      time.Duration
	FetchDeadline   time.Duration
	Workers         int
	QueueName       string
	QueueCapacity   int
}

// LoggingConfig selects the log level and encoder
type LoggingConfig struct {
	Level  string
	Format string
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvList(key string, defaultValue []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LoadEnvFile loads a .env file into the process environment when one
// exists. Variables already set are left alone.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cat := catalog.DefaultConfig()
	brk := breaker.DefaultConfig()
	fch := fetcher.DefaultConfig()
	snc := syncjob.DefaultConfig()

	cfg := &Config{
		HTTPPort:  getEnvString("HTTP_PORT", "8080"),
		JWTSecret: []byte(os.Getenv("JWT_SECRET")),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:      os.Getenv("REDIS_ADDRESS"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Catalog: CatalogConfig{
			L1TTL:            getEnvDuration("CATALOG_L1_TTL", cat.L1TTL),
			L2TTL:            getEnvDuration("CATALOG_L2_TTL", cat.L2TTL),
			EntryTTL:         getEnvDuration("CATALOG_ENTRY_TTL", 24*time.Hour),
			RefreshThreshold: getEnvDuration("CATALOG_REFRESH_THRESHOLD", cat.RefreshThreshold),
			FetchDeadline:    getEnvDuration("CATALOG_FETCH_DEADLINE", cat.FetchDeadline),
			DefaultLimit:     getEnvInt("CATALOG_DEFAULT_LIMIT", cat.DefaultLimit),
			MaxLimit:         getEnvInt("CATALOG_MAX_LIMIT", cat.MaxLimit),
			MemoryCacheSize:  getEnvInt("CATALOG_MEMORY_CACHE_SIZE", 10000),
			FamilyPolicy:     getEnvString("CATALOG_FAMILY_POLICY", family.PolicyDisplayName),
			FamilyMapPath:    os.Getenv("CATALOG_FAMILY_MAP"),
			CriticalFields:   getEnvList("CATALOG_CRITICAL_FIELDS", incremental.DefaultCriticalFields),
			OverridesPath:    os.Getenv("CATALOG_PRICING_OVERRIDES"),
			ProvidersFile:    os.Getenv("CATALOG_PROVIDERS_FILE"),
			ProviderReload:   getEnvDuration("PROVIDER_RELOAD_INTERVAL", 5*time.Minute),
			CredentialsKey:   os.Getenv("PROVIDER_CREDENTIALS_KEY"),
		},
		Fetch: fetcher.Config{
			Workers:         getEnvInt("FETCH_WORKERS", fch.Workers),
			ProviderTimeout: getEnvDuration("FETCH_PROVIDER_TIMEOUT", fch.ProviderTimeout),
		},
		Breaker: breaker.Config{
			FailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", brk.FailureThreshold),
			Cooldown:         getEnvDuration("BREAKER_COOLDOWN", brk.Cooldown),
			MaxCooldown:      getEnvDuration("BREAKER_MAX_COOLDOWN", brk.MaxCooldown),
		},
		Sync: SyncConfig{
			Schedule:        os.Getenv("SYNC_SCHEDULE"),
			Interval:        getEnvDuration("SYNC_INTERVAL", snc.Interval),
			CleanupInterval: getEnvDuration("SYNC_CLEANUP_INTERVAL", snc.CleanupInterval),
			JobTimeout:      getEnvDuration("SYNC_JOB_TIMEOUT", snc.JobTimeout),
			FetchDeadline:   getEnvDuration("SYNC_FETCH_DEADLINE", snc.FetchDeadline),
			Workers:         getEnvInt("SYNC_WORKERS", snc.Workers),
			QueueName:       getEnvString("SYNC_QUEUE_NAME", "catalog:sync:queue"),
			QueueCapacity:   getEnvInt("SYNC_QUEUE_CAPACITY", 1000),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
	}

	familyMap, err := family.LoadCuratedMap(cfg.Catalog.FamilyMapPath)
	if err != nil {
		return nil, fmt.Errorf("CATALOG_FAMILY_MAP: %w", err)
	}
	cfg.Catalog.FamilyMap = familyMap

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if len(c.JWTSecret) == 0 {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Catalog.L1TTL <= 0 || c.Catalog.L2TTL <= 0 || c.Catalog.EntryTTL <= 0 {
		return fmt.Errorf("catalog TTLs must be positive")
	}
	if c.Catalog.RefreshThreshold >= c.Catalog.L2TTL {
		return fmt.Errorf("CATALOG_REFRESH_THRESHOLD (%s) must be below CATALOG_L2_TTL (%s)",
			c.Catalog.RefreshThreshold, c.Catalog.L2TTL)
	}
	if c.Catalog.DefaultLimit <= 0 || c.Catalog.MaxLimit < c.Catalog.DefaultLimit {
		return fmt.Errorf("invalid catalog page limits: default %d, max %d",
			c.Catalog.DefaultLimit, c.Catalog.MaxLimit)
	}
	if _, err := incremental.NewDetector(c.Catalog.CriticalFields); err != nil {
		return err
	}
	if _, err := c.FamilyPolicy(); err != nil {
		return err
	}
	if len(c.Catalog.FamilyMap) > 0 && c.Catalog.FamilyPolicy != family.PolicyCurated {
		return fmt.Errorf("CATALOG_FAMILY_MAP requires CATALOG_FAMILY_POLICY=%s", family.PolicyCurated)
	}
	if c.Sync.Schedule != "" {
		if _, err := cron.ParseStandard(c.Sync.Schedule); err != nil {
			return fmt.Errorf("invalid SYNC_SCHEDULE %q: %w", c.Sync.Schedule, err)
		}
	}
	if c.Sync.JobTimeout <= c.Sync.FetchDeadline {
		return fmt.Errorf("SYNC_JOB_TIMEOUT (%s) must exceed SYNC_FETCH_DEADLINE (%s)",
			c.Sync.JobTimeout, c.Sync.FetchDeadline)
	}
	return nil
}

// UseRedis reports whether a Redis address is configured.
func (c *Config) UseRedis() bool {
	return c.Redis.Address != ""
}

// FamilyPolicy builds the configured family policy, including the curated map.
func (c *Config) FamilyPolicy() (family.Policy, error) {
	return family.NewPolicy(c.Catalog.FamilyPolicy, c.Catalog.FamilyMap)
}

// CatalogSettings converts the catalog section for the cache hierarchy.
func (c *Config) CatalogSettings() catalog.Config {
	return catalog.Config{
		L1TTL:            c.Catalog.L1TTL,
		L2TTL:            c.Catalog.L2TTL,
		RefreshThreshold: c.Catalog.RefreshThreshold,
		FetchDeadline:    c.Catalog.FetchDeadline,
		DefaultLimit:     c.Catalog.DefaultLimit,
		MaxLimit:         c.Catalog.MaxLimit,
	}
}

// SyncSettings converts the sync section for the background service.
func (c *Config) SyncSettings() syncjob.Config {
	return syncjob.Config{
		Schedule:        c.Sync.Schedule,
		Interval:        c.Sync.Interval,
		CleanupInterval: c.Sync.CleanupInterval,
		JobTimeout:      c.Sync.JobTimeout,
		FetchDeadline:   c.Sync.FetchDeadline,
		Workers:         c.Sync.Workers,
	}
}

// DBSettings converts the database section for the origin store.
func (c *Config) DBSettings() storage.DBConfig {
	db := storage.DefaultDBConfig()
	db.DSN = c.Database.URL
	db.MaxOpenConns = c.Database.MaxOpenConns
	db.MaxIdleConns = c.Database.MaxIdleConns
	db.ConnMaxLifetime = c.Database.ConnMaxLifetime
	db.ConnMaxIdleTime = c.Database.ConnMaxIdleTime
	return db
}
