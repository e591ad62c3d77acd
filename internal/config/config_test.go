package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg := Load()

	assert.Equal(t, "8010", cfg.Port)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, 20*time.Minute, cfg.Storage.ExportTTL)
	assert.Equal(t, "X-Tenant-ID", cfg.Auth.TenantHeader)
	assert.Equal(t, 10, cfg.Billing.DefaultCutoffDay)
	assert.Equal(t, "1.1.01", cfg.Ledger.Cash)
	assert.Empty(t, cfg.Auth.AllowedOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("PG_PORT", "6543")
	t.Setenv("S3_USE_SSL", "true")
	t.Setenv("STORAGE_DRIVER", "S3")
	t.Setenv("EXTERNAL_URL", "https://gremio.example/")
	t.Setenv("EXPORT_TTL_MINUTES", "45")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("LEDGER_SHORTAGE_ACCOUNT", "5.1.09")
	t.Setenv("DEFAULT_CUTOFF_DAY", "25")
	t.Setenv("INSTALLMENT_CONCEPT", "ORDEN")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 6543, cfg.Postgres.Port)
	assert.True(t, cfg.S3.UseSSL)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, "https://gremio.example", cfg.Storage.ExternalURL)
	assert.Equal(t, 45*time.Minute, cfg.Storage.ExportTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Auth.AllowedOrigins)
	assert.Equal(t, "5.1.09", cfg.Ledger.Shortage)
	assert.Equal(t, 25, cfg.Billing.DefaultCutoffDay)
	assert.Equal(t, "ORDEN", cfg.Billing.InstallmentConcept)
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"missing secret", func(c *AppConfig) { c.Auth.JWTSecret = "" }, "JWT_SECRET"},
		{"bad driver", func(c *AppConfig) { c.Storage.Driver = "ftp" }, "STORAGE_DRIVER"},
		{"cutoff out of range", func(c *AppConfig) { c.Billing.DefaultCutoffDay = 32 }, "DEFAULT_CUTOFF_DAY"},
		{"empty account", func(c *AppConfig) { c.Ledger.Surplus = "" }, "LEDGER_"},
		{"zero ttl", func(c *AppConfig) { c.Storage.ExportTTL = 0 }, "EXPORT_TTL_MINUTES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
