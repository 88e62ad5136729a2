package config

import (
	"fmt"
	"strconv"
	"time"

	"eddn-ingester/internal/shared/utils"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Feed        FeedConfig
	Queue       QueueConfig
	Worker      WorkerConfig
	Schema      SchemaConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Audit       AuditConfig
	Logging     LoggingConfig
	Ops         OpsConfig
}

type FeedConfig struct {
	Transport   string
	URL         string
	NATSSubject string
}

type QueueConfig struct {
	Capacity     int
	FullPolicy   string
	DepthRefresh time.Duration
}

type WorkerConfig struct {
	Count int
}

type SchemaConfig struct {
	Dir string
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	RetryDelay      time.Duration
	RunMigrations   bool
	MigrationsPath  string
}

type RedisConfig struct {
	Enabled      bool
	URL          string
	Host         string
	Port         string
	Password     string
	DB           int
	AuditStream  string
	StreamMaxLen int64
}

type AuditConfig struct {
	WriteTimeout       time.Duration
	RecordUnrecognized bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	JSONFormat bool
}

type OpsConfig struct {
	Enabled        bool
	Port           string
	AllowedOrigins []string
	CORSDebug      bool
	RateLimit      RateLimitConfig
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	TrustProxy        bool
}

// Load reads an optional .env file, then builds the configuration from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using system environment variables")
	}

	config := load()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func load() *Config {
	return &Config{
		Environment: utils.GetEnv("ENVIRONMENT", "development"),
		Feed:        loadFeedConfig(),
		Queue:       loadQueueConfig(),
		Worker:      loadWorkerConfig(),
		Schema:      loadSchemaConfig(),
		Database:    loadDatabaseConfig(),
		Redis:       loadRedisConfig(),
		Audit:       loadAuditConfig(),
		Logging:     loadLoggingConfig(),
		Ops:         loadOpsConfig(),
	}
}

func loadFeedConfig() FeedConfig {
	return FeedConfig{
		Transport:   utils.GetEnv("FEED_TRANSPORT", "zmq"),
		URL:         utils.GetEnv("FEED_URL", "tcp://eddn.edcd.io:9500"),
		NATSSubject: utils.GetEnv("FEED_NATS_SUBJECT", "eddn.relay"),
	}
}

func loadQueueConfig() QueueConfig {
	capacity, _ := strconv.Atoi(utils.GetEnv("QUEUE_CAPACITY", "1000"))
	refresh, _ := strconv.Atoi(utils.GetEnv("QUEUE_DEPTH_REFRESH_SECONDS", "5"))

	return QueueConfig{
		Capacity:     capacity,
		FullPolicy:   utils.GetEnv("QUEUE_FULL_POLICY", "block"),
		DepthRefresh: time.Duration(refresh) * time.Second,
	}
}

func loadWorkerConfig() WorkerConfig {
	count, _ := strconv.Atoi(utils.GetEnv("WORKER_COUNT", "4"))

	return WorkerConfig{Count: count}
}

func loadSchemaConfig() SchemaConfig {
	return SchemaConfig{Dir: utils.GetEnv("SCHEMA_DIR", "schemas")}
}

func loadDatabaseConfig() DatabaseConfig {
	maxOpenConns, _ := strconv.Atoi(utils.GetEnv("DB_MAX_OPEN_CONNS", "10"))
	maxIdleConns, _ := strconv.Atoi(utils.GetEnv("DB_MAX_IDLE_CONNS", "5"))
	connMaxLifetime, _ := strconv.Atoi(utils.GetEnv("DB_CONN_MAX_LIFETIME_MINUTES", "5"))
	retryDelay, _ := strconv.Atoi(utils.GetEnv("DB_RETRY_DELAY_SECONDS", "3"))

	return DatabaseConfig{
		Host:            utils.GetEnv("DB_HOST", "localhost"),
		Port:            utils.GetEnv("DB_PORT", "5432"),
		User:            utils.GetEnv("DB_USER", "postgres"),
		Password:        utils.GetEnv("DB_PASSWORD", "postgres"),
		Name:            utils.GetEnv("DB_NAME", "eddn"),
		SSLMode:         utils.GetEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: time.Duration(connMaxLifetime) * time.Minute,
		RetryDelay:      time.Duration(retryDelay) * time.Second,
		RunMigrations:   utils.GetEnv("DB_RUN_MIGRATIONS", "true") == "true",
		MigrationsPath:  utils.GetEnv("DB_MIGRATIONS_PATH", "migrations"),
	}
}

func loadRedisConfig() RedisConfig {
	db, _ := strconv.Atoi(utils.GetEnv("REDIS_DB", "0"))
	maxLen, _ := strconv.ParseInt(utils.GetEnv("REDIS_AUDIT_STREAM_MAXLEN", "100000"), 10, 64)

	return RedisConfig{
		Enabled:      utils.GetEnv("REDIS_ENABLED", "false") == "true",
		URL:          utils.GetEnv("REDIS_URL", ""),
		Host:         utils.GetEnv("REDIS_HOST", "localhost"),
		Port:         utils.GetEnv("REDIS_PORT", "6379"),
		Password:     utils.GetEnv("REDIS_PASSWORD", ""),
		DB:           db,
		AuditStream:  utils.GetEnv("REDIS_AUDIT_STREAM", "eddn:audit"),
		StreamMaxLen: maxLen,
	}
}

func loadAuditConfig() AuditConfig {
	timeout, _ := strconv.Atoi(utils.GetEnv("AUDIT_WRITE_TIMEOUT_SECONDS", "5"))

	return AuditConfig{
		WriteTimeout:       time.Duration(timeout) * time.Second,
		RecordUnrecognized: utils.GetEnv("AUDIT_UNRECOGNIZED", "true") == "true",
	}
}

func loadLoggingConfig() LoggingConfig {
	environment := utils.GetEnv("ENVIRONMENT", "development")
	format := utils.GetEnv("LOG_FORMAT", "text")

	return LoggingConfig{
		Level:      utils.GetEnv("LOG_LEVEL", "info"),
		Format:     format,
		JSONFormat: environment == "production" || format == "json",
	}
}

func loadOpsConfig() OpsConfig {
	rps, _ := strconv.ParseFloat(utils.GetEnv("OPS_RATE_LIMIT_RPS", "10"), 64)
	burst, _ := strconv.Atoi(utils.GetEnv("OPS_RATE_LIMIT_BURST", "20"))

	return OpsConfig{
		Enabled:        utils.GetEnv("OPS_ENABLED", "true") == "true",
		Port:           utils.GetEnv("OPS_PORT", "9090"),
		AllowedOrigins: utils.SplitList(utils.GetEnv("OPS_ALLOWED_ORIGINS", "*")),
		CORSDebug:      utils.GetEnv("CORS_DEBUG", "") == "true",
		RateLimit: RateLimitConfig{
			Enabled:           utils.GetEnv("OPS_RATE_LIMIT_ENABLED", "true") == "true",
			RequestsPerSecond: rps,
			BurstSize:         burst,
			TrustProxy:        utils.GetEnv("OPS_TRUST_PROXY", "false") == "true",
		},
	}
}

func (c *Config) validate() error {
	switch c.Feed.Transport {
	case "zmq", "nats":
	default:
		return fmt.Errorf("FEED_TRANSPORT must be zmq or nats, got %q", c.Feed.Transport)
	}

	if c.Feed.URL == "" {
		return fmt.Errorf("FEED_URL is required")
	}

	if c.Feed.Transport == "nats" && c.Feed.NATSSubject == "" {
		return fmt.Errorf("FEED_NATS_SUBJECT is required for the nats transport")
	}

	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("QUEUE_CAPACITY must be positive")
	}

	switch c.Queue.FullPolicy {
	case "block", "drop":
	default:
		return fmt.Errorf("QUEUE_FULL_POLICY must be block or drop, got %q", c.Queue.FullPolicy)
	}

	if c.Worker.Count <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive")
	}

	if c.Database.RetryDelay <= 0 {
		return fmt.Errorf("DB_RETRY_DELAY_SECONDS must be positive")
	}

	if c.Audit.WriteTimeout <= 0 {
		return fmt.Errorf("AUDIT_WRITE_TIMEOUT_SECONDS must be positive")
	}

	if c.Redis.Enabled && c.Redis.AuditStream == "" {
		return fmt.Errorf("REDIS_AUDIT_STREAM is required when Redis is enabled")
	}

	if c.Ops.RateLimit.Enabled && (c.Ops.RateLimit.RequestsPerSecond <= 0 || c.Ops.RateLimit.BurstSize <= 0) {
		return fmt.Errorf("OPS_RATE_LIMIT_RPS and OPS_RATE_LIMIT_BURST must be positive")
	}

	return nil
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
