package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gremio-backoffice/internal/domain"
)

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout int
	Timeout     int
	Prefix      string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
	URLTTLHours     int
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects where generated reports are kept. Driver is "local" or "s3".
type StorageConfig struct {
	Driver       string
	ExportDir    string
	PublicPrefix string
	ExternalURL  string
	ExportTTL    time.Duration
	// CleanupSpec is a cron expression for purging old report files.
	CleanupSpec string
}

type AuthConfig struct {
	JWTSecret      string
	TenantHeader   string
	AllowedOrigins []string
}

type BillingConfig struct {
	InstallmentConcept string
	DefaultCutoffDay   int
}

type AppConfig struct {
	Port     string
	Env      string
	Log      LogConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	S3       S3Config
	Storage  StorageConfig
	Auth     AuthConfig
	Ledger   domain.LedgerAccounts
	Billing  BillingConfig
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int value %q: %v", s, err)
	}
	return i
}

func mustBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		log.Fatalf("invalid bool value %q: %v", s, err)
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load() AppConfig {
	return AppConfig{
		Port: getenv("APP_PORT", "8010"),
		Env:  getenv("APP_ENV", "local"),
		Log: LogConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
		Postgres: PostgresConfig{
			Host:         getenv("PG_HOST", "127.0.0.1"),
			Port:         mustAtoi(getenv("PG_PORT", "5432")),
			User:         getenv("PG_USER", "gremio"),
			Password:     getenv("PG_PASSWORD", ""),
			DBName:       getenv("PG_DB", "gremio"),
			SSLMode:      getenv("PG_SSLMODE", "disable"),
			MaxOpenConns: mustAtoi(getenv("PG_MAX_OPEN_CONNS", "20")),
			MaxIdleConns: mustAtoi(getenv("PG_MAX_IDLE_CONNS", "5")),
		},
		Redis: RedisConfig{
			Addr:        getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          mustAtoi(getenv("REDIS_DB", "0")),
			MaxRetries:  mustAtoi(getenv("REDIS_MAX_RETRIES", "5")),
			DialTimeout: mustAtoi(getenv("REDIS_DIAL_TIMEOUT", "10")),
			Timeout:     mustAtoi(getenv("REDIS_TIMEOUT", "5")),
			Prefix:      getenv("REDIS_PREFIX", "gremio_backoffice_"),
		},
		S3: S3Config{
			Endpoint:        getenv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getenv("S3_ACCESS_KEY", "minio"),
			SecretAccessKey: getenv("S3_SECRET_KEY", "minio123"),
			Bucket:          getenv("S3_BUCKET", "reportes"),
			Region:          getenv("S3_REGION", "us-east-1"),
			UseSSL:          mustBool(getenv("S3_USE_SSL", "false")),
			Prefix:          getenv("S3_PREFIX", ""),
			URLTTLHours:     mustAtoi(getenv("S3_URL_TTL_HOURS", "48")),
		},
		Storage: StorageConfig{
			Driver:       strings.ToLower(getenv("STORAGE_DRIVER", "local")),
			ExportDir:    getenv("EXPORT_DIR", "./exports"),
			PublicPrefix: getenv("FILES_PUBLIC_PREFIX", "/files"),
			ExternalURL:  strings.TrimRight(getenv("EXTERNAL_URL", ""), "/"),
			ExportTTL:    time.Duration(mustAtoi(getenv("EXPORT_TTL_MINUTES", "20"))) * time.Minute,
			CleanupSpec:  getenv("EXPORT_CLEANUP_CRON", "@every 10m"),
		},
		Auth: AuthConfig{
			JWTSecret:      getenv("JWT_SECRET", ""),
			TenantHeader:   getenv("TENANT_HEADER", "X-Tenant-ID"),
			AllowedOrigins: splitList(getenv("WS_ALLOWED_ORIGINS", "")),
		},
		Ledger: domain.LedgerAccounts{
			Cash:     getenv("LEDGER_CASH_ACCOUNT", "1.1.01"),
			Surplus:  getenv("LEDGER_SURPLUS_ACCOUNT", "4.9.01"),
			Shortage: getenv("LEDGER_SHORTAGE_ACCOUNT", "5.9.01"),
		},
		Billing: BillingConfig{
			InstallmentConcept: getenv("INSTALLMENT_CONCEPT", "CUOTA_CREDITO"),
			DefaultCutoffDay:   mustAtoi(getenv("DEFAULT_CUTOFF_DAY", strconv.Itoa(domain.DefaultCutoffDay))),
		},
	}
}

// Validate reports settings the server cannot start with.
func (c AppConfig) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Storage.Driver != "local" && c.Storage.Driver != "s3" {
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be local or s3, got %q", c.Storage.Driver))
	}
	if c.Billing.DefaultCutoffDay < 1 || c.Billing.DefaultCutoffDay > 31 {
		errs = append(errs, fmt.Errorf("DEFAULT_CUTOFF_DAY must be between 1 and 31, got %d", c.Billing.DefaultCutoffDay))
	}
	if c.Ledger.Cash == "" || c.Ledger.Surplus == "" || c.Ledger.Shortage == "" {
		errs = append(errs, errors.New("LEDGER_*_ACCOUNT codes must not be empty"))
	}
	if c.Storage.ExportTTL <= 0 {
		errs = append(errs, errors.New("EXPORT_TTL_MINUTES must be positive"))
	}
	return errors.Join(errs...)
}
