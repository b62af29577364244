package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort        string
	GRPCPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string

	ERP      ERPConfig
	Payment  PaymentConfig
	State    StateConfig
	Ledger   LedgerConfig
	Kafka    KafkaConfig
	Checkout CheckoutConfig
}

type ERPConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	// Timeout of 0 leaves ERP calls bounded only by the request context.
	Timeout   time.Duration
	ItemGroup string
}

type PaymentConfig struct {
	Gateway           string
	CashfreeReturnURL string
	RazorpayBaseURL   string
	RazorpayKeyID     string
	RazorpayKeySecret string
	MerchantName      string
}

type StateConfig struct {
	Store         string
	MongoURI      string
	MongoDatabase string
	MongoMaxPool  uint64
	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration
}

type LedgerConfig struct {
	Driver         string
	DSN            string
	MigrationsPath string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type CheckoutConfig struct {
	SubmissionTTL  time.Duration
	ReconcileGrace time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", "8080")
	v.SetDefault("grpc_port", "50060")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("erp_base_url", "http://localhost:8000")
	v.SetDefault("erp_api_key", "")
	v.SetDefault("erp_api_secret", "")
	v.SetDefault("erp_timeout", time.Duration(0))
	v.SetDefault("erp_item_group", "Lorem Paperback Book")

	v.SetDefault("payment_gateway", "cashfree")
	v.SetDefault("cashfree_return_url", "http://localhost:3000/checkout")
	v.SetDefault("razorpay_base_url", "https://api.razorpay.com")
	v.SetDefault("razorpay_key_id", "")
	v.SetDefault("razorpay_key_secret", "")
	v.SetDefault("merchant_name", "Loremshelf")

	v.SetDefault("state_store", "memory")
	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_database", "loremshelf")
	v.SetDefault("mongo_max_pool", 20)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("cache_ttl", 15*time.Minute)

	v.SetDefault("ledger_driver", "sqlite")
	v.SetDefault("ledger_dsn", "file:loremshelf.db?_pragma=busy_timeout(5000)")
	v.SetDefault("migrations_path", "./internal/ledger/migrations")

	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "storefront-orders")

	v.SetDefault("submission_ttl", 15*time.Minute)
	v.SetDefault("reconcile_grace", 10*time.Minute)
}

// Load reads .env (if present), an optional yaml file and the environment.
// Environment variables win over the file, the file wins over defaults.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		HTTPPort:        v.GetString("http_port"),
		GRPCPort:        v.GetString("grpc_port"),
		RequestTimeout:  v.GetDuration("request_timeout"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
		ERP: ERPConfig{
			BaseURL:   strings.TrimRight(v.GetString("erp_base_url"), "/"),
			APIKey:    v.GetString("erp_api_key"),
			APISecret: v.GetString("erp_api_secret"),
			Timeout:   v.GetDuration("erp_timeout"),
			ItemGroup: v.GetString("erp_item_group"),
		},
		Payment: PaymentConfig{
			Gateway:           strings.ToLower(v.GetString("payment_gateway")),
			CashfreeReturnURL: v.GetString("cashfree_return_url"),
			RazorpayBaseURL:   strings.TrimRight(v.GetString("razorpay_base_url"), "/"),
			RazorpayKeyID:     v.GetString("razorpay_key_id"),
			RazorpayKeySecret: v.GetString("razorpay_key_secret"),
			MerchantName:      v.GetString("merchant_name"),
		},
		State: StateConfig{
			Store:         strings.ToLower(v.GetString("state_store")),
			MongoURI:      v.GetString("mongo_uri"),
			MongoDatabase: v.GetString("mongo_database"),
			MongoMaxPool:  v.GetUint64("mongo_max_pool"),
			RedisAddr:     v.GetString("redis_addr"),
			RedisPassword: v.GetString("redis_password"),
			CacheTTL:      v.GetDuration("cache_ttl"),
		},
		Ledger: LedgerConfig{
			Driver:         strings.ToLower(v.GetString("ledger_driver")),
			DSN:            v.GetString("ledger_dsn"),
			MigrationsPath: v.GetString("migrations_path"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka_brokers")),
			Topic:   v.GetString("kafka_topic"),
		},
		Checkout: CheckoutConfig{
			SubmissionTTL:  v.GetDuration("submission_ttl"),
			ReconcileGrace: v.GetDuration("reconcile_grace"),
		},
	}
}

func (c *Config) Validate() error {
	switch c.Payment.Gateway {
	case "cashfree":
	case "razorpay":
		if c.Payment.RazorpayKeyID == "" || c.Payment.RazorpayKeySecret == "" {
			return errors.New("razorpay gateway requires RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET")
		}
	default:
		return fmt.Errorf("unknown payment gateway %q", c.Payment.Gateway)
	}

	switch c.State.Store {
	case "memory", "mongo":
	default:
		return fmt.Errorf("unknown state store %q", c.State.Store)
	}

	switch c.Ledger.Driver {
	case "postgres", "sqlite", "none":
	default:
		return fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver)
	}

	if c.ERP.BaseURL == "" {
		return errors.New("ERP_BASE_URL is required")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
