package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
	LockDriverMemory      = "memory"
	LockDriverRedis       = "redis"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Payroll  PayrollConfig
	Bulk     BulkConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port               int
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string
	StorageDriver      string
	LockDriver         string
	RatesFile          string
	SeedFile           string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// KafkaConfig is optional. With no brokers, domain events are dropped.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type PayrollConfig struct {
	MaxWorkers        int
	RepositoryTimeout time.Duration
}

type BulkConfig struct {
	MaxWorkers       int
	RoundingUnit     int64
	RecoveryInterval time.Duration
	StaleAfter       time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	dbMaxConns, err := strconv.ParseInt(getEnv("DB_MAX_CONNS", "25"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "hris-payroll"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(dbMaxConns),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:               appPort,
		Env:                getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
		StorageDriver:      getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		LockDriver:         getEnv("LOCK_DRIVER", LockDriverMemory),
		RatesFile:          getEnv("STATUTORY_RATES_FILE", ""),
		SeedFile:           getEnv("MEMORY_SEED_FILE", ""),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Redis configuration
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	lockTTL, err := time.ParseDuration(getEnv("LOCK_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCK_TTL: %w", err)
	}

	config.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
		LockTTL:  lockTTL,
	}

	config.Kafka = KafkaConfig{
		Brokers: getEnvSlice("KAFKA_BROKERS"),
		Topic:   getEnv("KAFKA_TOPIC", "payroll.events"),
	}

	// Engine tuning
	payrollWorkers, err := strconv.Atoi(getEnv("PAYROLL_MAX_WORKERS", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_MAX_WORKERS: %w", err)
	}
	repoTimeout, err := time.ParseDuration(getEnv("PAYROLL_REPOSITORY_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_REPOSITORY_TIMEOUT: %w", err)
	}
	config.Payroll = PayrollConfig{
		MaxWorkers:        payrollWorkers,
		RepositoryTimeout: repoTimeout,
	}

	bulkWorkers, err := strconv.Atoi(getEnv("BULK_MAX_WORKERS", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid BULK_MAX_WORKERS: %w", err)
	}
	roundingUnit, err := strconv.ParseInt(getEnv("BULK_ROUNDING_UNIT", "1000"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid BULK_ROUNDING_UNIT: %w", err)
	}
	recoveryInterval, err := time.ParseDuration(getEnv("BULK_RECOVERY_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid BULK_RECOVERY_INTERVAL: %w", err)
	}
	staleAfter, err := time.ParseDuration(getEnv("BULK_STALE_AFTER", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid BULK_STALE_AFTER: %w", err)
	}
	config.Bulk = BulkConfig{
		MaxWorkers:       bulkWorkers,
		RoundingUnit:     roundingUnit,
		RecoveryInterval: recoveryInterval,
		StaleAfter:       staleAfter,
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.App.StorageDriver {
	case StorageDriverPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q", StorageDriverPostgres, StorageDriverMemory)
	}

	switch c.App.LockDriver {
	case LockDriverMemory, LockDriverRedis:
	default:
		return fmt.Errorf("LOCK_DRIVER must be %q or %q", LockDriverMemory, LockDriverRedis)
	}
	if c.App.LockDriver == LockDriverRedis && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when LOCK_DRIVER is redis")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Payroll.MaxWorkers < 1 {
		return fmt.Errorf("PAYROLL_MAX_WORKERS must be at least 1")
	}
	if c.Payroll.RepositoryTimeout <= 0 {
		return fmt.Errorf("PAYROLL_REPOSITORY_TIMEOUT must be positive")
	}
	if c.Bulk.MaxWorkers < 1 {
		return fmt.Errorf("BULK_MAX_WORKERS must be at least 1")
	}
	if c.Bulk.RoundingUnit < 1 {
		return fmt.Errorf("BULK_ROUNDING_UNIT must be at least 1")
	}
	if c.Bulk.RecoveryInterval <= 0 {
		return fmt.Errorf("BULK_RECOVERY_INTERVAL must be positive")
	}
	if c.Bulk.StaleAfter <= 0 {
		return fmt.Errorf("BULK_STALE_AFTER must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
