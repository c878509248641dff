package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// DefaultPath is used when ISURIDE_CONFIG is not set.
const DefaultPath = "config/config.yaml"

type Config struct {
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"database"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"database"`
	RabbitMQ struct {
		Host     string `yaml:"host"` // empty disables publishing
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"rabbitmq"`
	Redis struct {
		Addr     string `yaml:"addr"` // empty disables cache and lock
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		LocationTopic string   `yaml:"location_topic"`
	} `yaml:"kafka"`
	Services struct {
		DispatchServicePort int `yaml:"dispatch_service"`
		PaymentGatewayPort  int `yaml:"payment_gateway"`
	} `yaml:"services"`
	JWT struct {
		SecretKey string        `yaml:"secret_key"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"jwt"`
	Fare struct {
		Initial     int `yaml:"initial"`
		PerDistance int `yaml:"per_distance"`
	} `yaml:"fare"`
	Coupons struct {
		SignupCode     string `yaml:"signup_code"`
		SignupDiscount int    `yaml:"signup_discount"`
		InviteDiscount int    `yaml:"invite_discount"`
		RewardDiscount int    `yaml:"reward_discount"`
		InvitationCap  int    `yaml:"invitation_cap"`
	} `yaml:"coupons"`
	Matching struct {
		Interval time.Duration `yaml:"interval"`
		MaxDraws int           `yaml:"max_draws"`
	} `yaml:"matching"`
	Notification struct {
		RetryAfter time.Duration `yaml:"retry_after"`
	} `yaml:"notification"`
	Payment struct {
		Provider   string        `yaml:"provider"` // http | stripe
		GatewayURL string        `yaml:"gateway_url"`
		StripeKey  string        `yaml:"stripe_key"`
		Currency   string        `yaml:"currency"`
		MaxRetries int           `yaml:"max_retries"`
		RetryDelay time.Duration `yaml:"retry_delay"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"payment"`
}

// Path returns the config location, honoring ISURIDE_CONFIG.
func Path() string {
	if p := strings.TrimSpace(os.Getenv("ISURIDE_CONFIG")); p != "" {
		return p
	}
	return DefaultPath
}

// LoadFromFile loads config from a YAML file to a Config struct, applies env overrides and defaults, and validates required fields.
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := parseYAML(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyEnv overrides the deployment-specific values from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("ISURIDE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("ISURIDE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("ISURIDE_PAYMENT_GATEWAY_URL"); v != "" {
		cfg.Payment.GatewayURL = v
	}
	if v := os.Getenv("ISURIDE_JWT_SECRET"); v != "" {
		cfg.JWT.SecretKey = v
	}
	if v := os.Getenv("ISURIDE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ISURIDE_KAFKA_BROKERS"); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		cfg.Kafka.Brokers = brokers
	}
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host != "" && cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// Kafka
	if cfg.Kafka.LocationTopic == "" {
		cfg.Kafka.LocationTopic = "chair-locations"
	}

	// Services
	if cfg.Services.DispatchServicePort == 0 {
		cfg.Services.DispatchServicePort = 8080
	}
	if cfg.Services.PaymentGatewayPort == 0 {
		cfg.Services.PaymentGatewayPort = 12345
	}

	// JWT
	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 24 * time.Hour
	}

	// Fare
	if cfg.Fare.Initial == 0 {
		cfg.Fare.Initial = 500
	}
	if cfg.Fare.PerDistance == 0 {
		cfg.Fare.PerDistance = 100
	}

	// Coupons
	if cfg.Coupons.SignupCode == "" {
		cfg.Coupons.SignupCode = "CP_NEW2024"
	}
	if cfg.Coupons.SignupDiscount == 0 {
		cfg.Coupons.SignupDiscount = 3000
	}
	if cfg.Coupons.InviteDiscount == 0 {
		cfg.Coupons.InviteDiscount = 1500
	}
	if cfg.Coupons.RewardDiscount == 0 {
		cfg.Coupons.RewardDiscount = 1000
	}
	if cfg.Coupons.InvitationCap == 0 {
		cfg.Coupons.InvitationCap = 3
	}

	// Matching
	if cfg.Matching.Interval == 0 {
		cfg.Matching.Interval = 500 * time.Millisecond
	}
	if cfg.Matching.MaxDraws == 0 {
		cfg.Matching.MaxDraws = 10
	}

	// Notification
	if cfg.Notification.RetryAfter == 0 {
		cfg.Notification.RetryAfter = 30 * time.Millisecond
	}

	// Payment
	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "http"
	}
	if cfg.Payment.GatewayURL == "" {
		cfg.Payment.GatewayURL = "http://localhost:12345"
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "jpy"
	}
	if cfg.Payment.MaxRetries == 0 {
		cfg.Payment.MaxRetries = 5
	}
	if cfg.Payment.RetryDelay == 0 {
		cfg.Payment.RetryDelay = 100 * time.Millisecond
	}
	if cfg.Payment.Timeout == 0 {
		cfg.Payment.Timeout = 5 * time.Second
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	// DB
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "database.database is required")
	}

	// RabbitMQ (optional as a whole)
	if c.RabbitMQ.Host != "" {
		if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
			problems = append(problems, "rabbitmq.port must be in 1..65535")
		}
		if c.RabbitMQ.User == "" {
			problems = append(problems, "rabbitmq.user is required")
		}
	}

	// Services
	if c.Services.DispatchServicePort <= 0 || c.Services.DispatchServicePort > 65535 {
		problems = append(problems, "services.dispatch_service must be in 1..65535")
	}
	if c.Services.PaymentGatewayPort <= 0 || c.Services.PaymentGatewayPort > 65535 {
		problems = append(problems, "services.payment_gateway must be in 1..65535")
	}

	// Fare
	if c.Fare.Initial < 0 || c.Fare.PerDistance < 0 {
		problems = append(problems, "fare values must not be negative")
	}

	// Coupons
	if c.Coupons.SignupDiscount < 0 || c.Coupons.InviteDiscount < 0 || c.Coupons.RewardDiscount < 0 {
		problems = append(problems, "coupon discounts must not be negative")
	}
	if c.Coupons.InvitationCap < 0 {
		problems = append(problems, "coupons.invitation_cap must not be negative")
	}

	// Matching
	if c.Matching.MaxDraws < 0 {
		problems = append(problems, "matching.max_draws must not be negative")
	}
	if c.Matching.Interval < 0 {
		problems = append(problems, "matching.interval must not be negative")
	}

	// Payment
	switch c.Payment.Provider {
	case "http":
		if c.Payment.GatewayURL == "" {
			problems = append(problems, "payment.gateway_url is required for provider http")
		}
	case "stripe":
		if c.Payment.StripeKey == "" {
			problems = append(problems, "payment.stripe_key is required for provider stripe")
		}
	default:
		problems = append(problems, "payment.provider must be one of: http, stripe")
	}
	if c.Payment.MaxRetries < 0 {
		problems = append(problems, "payment.max_retries must not be negative")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
