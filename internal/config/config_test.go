package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("HTTP_PORT", "7090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("DOCUMENTS_DEFAULT_TAX_RATE", "0.10")
	t.Setenv("ACTIVITY_STORE", "memory")
	t.Setenv("ACCOUNTING_TIMEOUT", "15s")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 7090, cfg.HTTP.Port)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, StorageDriverMemory, cfg.DB.Driver)
	assert.Equal(t, 0.10, cfg.Documents.DefaultTaxRate)
	assert.Equal(t, ActivityStoreMemory, cfg.Activity.Store)
	assert.Equal(t, 15*time.Second, cfg.Accounting.Timeout)
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORAGE_DRIVER", "POSTGRES")
	t.Setenv("DB_DSN", "postgres://cnc@localhost/cnc")
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.test, ,https://admin.test")
	t.Setenv("DOCUMENTS_DEFAULT_TAX_RATE", "0.16")
	t.Setenv("ACTIVITY_STORE", "dynamodb")
	t.Setenv("ACTIVITY_TABLE", "activity")
	t.Setenv("DYNAMODB_ENDPOINT", "http://localhost:8000")
	t.Setenv("ACCOUNTING_BASE_URL", "https://books.test/api")
	t.Setenv("ACCOUNTING_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageDriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "postgres://cnc@localhost/cnc", cfg.DB.DSN)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, []string{"https://app.test", "https://admin.test"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 0.16, cfg.Documents.DefaultTaxRate)
	assert.Equal(t, ActivityStoreDynamoDB, cfg.Activity.Store)
	assert.Equal(t, "activity", cfg.Activity.Table)
	assert.Equal(t, "http://localhost:8000", cfg.Activity.DynamoDBEndpoint)
	assert.Equal(t, "https://books.test/api", cfg.Accounting.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Accounting.Timeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"postgres without dsn", map[string]string{"STORAGE_DRIVER": "postgres", "DB_DSN": ""}, "DB_DSN is required"},
		{"unknown driver", map[string]string{"STORAGE_DRIVER": "sqlite"}, "STORAGE_DRIVER must be"},
		{"missing secret", map[string]string{"JWT_ACCESS_SECRET": ""}, "JWT_ACCESS_SECRET is required"},
		{"tax out of range", map[string]string{"DOCUMENTS_DEFAULT_TAX_RATE": "1.5"}, "DOCUMENTS_DEFAULT_TAX_RATE"},
		{"unknown activity store", map[string]string{"ACTIVITY_STORE": "redis"}, "ACTIVITY_STORE must be"},
		{"dynamodb without table", map[string]string{"ACTIVITY_STORE": "dynamodb", "ACTIVITY_TABLE": " "}, "ACTIVITY_TABLE is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseList(t *testing.T) {
	assert.Nil(t, parseList("  "))
	assert.Equal(t, []string{"a", "b"}, parseList(" a, ,b "))
}
