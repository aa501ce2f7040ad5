package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	ActivityStoreMemory   = "memory"
	ActivityStoreDynamoDB = "dynamodb"
)

type HTTPConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type DocumentsConfig struct {
	DefaultTaxRate float64
	PublicBaseURL  string
}

type ActivityConfig struct {
	Store            string
	Table            string
	AWSRegion        string
	DynamoDBEndpoint string
}

type AccountingConfig struct {
	BaseURL   string
	Token     string
	CompanyID string
	Timeout   time.Duration
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Documents   DocumentsConfig
	Activity    ActivityConfig
	Accounting  AccountingConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 7090)
	v.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	v.SetDefault("DOCUMENTS_DEFAULT_TAX_RATE", 0.10)
	v.SetDefault("ACTIVITY_STORE", ActivityStoreMemory)
	v.SetDefault("ACTIVITY_TABLE", "work_order_activity")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("ACCOUNTING_TIMEOUT", "15s")

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			AllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			Driver:          strings.ToLower(v.GetString("STORAGE_DRIVER")),
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Documents: DocumentsConfig{
			DefaultTaxRate: v.GetFloat64("DOCUMENTS_DEFAULT_TAX_RATE"),
			PublicBaseURL:  v.GetString("PUBLIC_BASE_URL"),
		},
		Activity: ActivityConfig{
			Store:            strings.ToLower(v.GetString("ACTIVITY_STORE")),
			Table:            strings.TrimSpace(v.GetString("ACTIVITY_TABLE")),
			AWSRegion:        v.GetString("AWS_REGION"),
			DynamoDBEndpoint: v.GetString("DYNAMODB_ENDPOINT"),
		},
		Accounting: AccountingConfig{
			BaseURL:   v.GetString("ACCOUNTING_BASE_URL"),
			Token:     v.GetString("ACCOUNTING_TOKEN"),
			CompanyID: v.GetString("ACCOUNTING_COMPANY_ID"),
			Timeout:   v.GetDuration("ACCOUNTING_TIMEOUT"),
		},
	}

	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"*"}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.DB.Driver {
	case StorageDriverPostgres:
		if cfg.DB.DSN == "" {
			return fmt.Errorf("DB_DSN is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q", StorageDriverPostgres, StorageDriverMemory)
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Documents.DefaultTaxRate < 0 || cfg.Documents.DefaultTaxRate > 1 {
		return fmt.Errorf("DOCUMENTS_DEFAULT_TAX_RATE must be between 0 and 1")
	}
	switch cfg.Activity.Store {
	case ActivityStoreMemory:
	case ActivityStoreDynamoDB:
		if cfg.Activity.Table == "" {
			return fmt.Errorf("ACTIVITY_TABLE is required")
		}
	default:
		return fmt.Errorf("ACTIVITY_STORE must be %q or %q", ActivityStoreMemory, ActivityStoreDynamoDB)
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
