package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// placeholderMarkers are substrings that mark a value copied from a template
// and never filled in for the deployment.
var placeholderMarkers = []string{"REPLACE_ME", "YourSecretKeyHere", "changeme"}

// Config структура конфигурации приложения
type Config struct {
	App     AppConfig
	Server  ServerConfig
	Logging LoggingConfig
	Stripe  StripeConfig
	Auth    AuthConfig
	Store   StoreConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
}

// AppConfig общие параметры приложения
type AppConfig struct {
	Env     string `validate:"oneof=development production test"`
	BaseURL string `validate:"required,url"`
}

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Port            string `validate:"required,numeric"`
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig конфигурация логгера
type LoggingConfig struct {
	Level  string
	Format string `validate:"oneof=console json"`
}

// StripeConfig конфигурация Stripe
type StripeConfig struct {
	SecretKey     string        `validate:"required"`
	WebhookSecret string        `validate:"required"`
	Timeout       time.Duration `validate:"gt=0"`
	PriceBasic    string
	PricePro      string
	PriceFamily   string
}

// AuthConfig параметры проверки JWT
type AuthConfig struct {
	JWTSecret string `validate:"required,min=16"`
}

// StoreConfig выбор хранилища записей
type StoreConfig struct {
	Driver string `validate:"oneof=postgres memory"`
	DSN    string `validate:"required_if=Driver postgres"`
}

// RedisConfig конфигурация кеша (пустой Addr отключает кеш)
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig публикация изменений записей (пустой Brokers отключает)
type KafkaConfig struct {
	Brokers    []string
	Topic      string `validate:"required_with=Brokers"`
	Partitions int    `validate:"gte=1"`
}

// Prices returns the plan → provider price reference mapping.
func (c StripeConfig) Prices() map[string]string {
	return map[string]string{
		"basic":  c.PriceBasic,
		"pro":    c.PricePro,
		"family": c.PriceFamily,
	}
}

// IsPlaceholder reports whether a configured value is unset or still a template placeholder.
func IsPlaceholder(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return true
	}
	for _, marker := range placeholderMarkers {
		if strings.Contains(v, marker) {
			return true
		}
	}
	return false
}

// Load загружает конфигурацию из .env (если есть) и переменных окружения и
// проверяет её. Ошибка означает, что процесс не должен стартовать.
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env is optional outside production
		_ = godotenv.Load()
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:     v.GetString("APP_ENV"),
			BaseURL: strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
		},
		Server: ServerConfig{
			Port:            v.GetString("PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
			Timeout:       v.GetDuration("STRIPE_TIMEOUT"),
			PriceBasic:    v.GetString("STRIPE_PRICE_ID_BASIC"),
			PricePro:      v.GetString("STRIPE_PRICE_ID_PRO"),
			PriceFamily:   v.GetString("STRIPE_PRICE_ID_FAMILY"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
		},
		Store: StoreConfig{
			Driver: v.GetString("STORE_DRIVER"),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("CACHE_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers:    SplitList(v.GetString("KAFKA_BROKERS")),
			Topic:      v.GetString("KAFKA_TOPIC"),
			Partitions: v.GetInt("KAFKA_TOPIC_PARTITIONS"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_BASE_URL", "http://localhost:9002")
	v.SetDefault("PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("STRIPE_TIMEOUT", 10*time.Second)
	v.SetDefault("STORE_DRIVER", "postgres")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", 5*time.Minute)
	v.SetDefault("KAFKA_TOPIC", "entitlement_changed")
	v.SetDefault("KAFKA_TOPIC_PARTITIONS", 3)
}

// SplitList разбирает список через запятую, пропуская пустые элементы
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate проверяет обязательные параметры и отсутствие заглушек в секретах.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	secrets := map[string]string{
		"STRIPE_SECRET_KEY":     c.Stripe.SecretKey,
		"STRIPE_WEBHOOK_SECRET": c.Stripe.WebhookSecret,
		"JWT_SECRET":            c.Auth.JWTSecret,
	}
	for name, value := range secrets {
		if IsPlaceholder(value) {
			return fmt.Errorf("invalid configuration: %s is a placeholder", name)
		}
	}
	return nil
}

// UnconfiguredPlans returns plans whose price reference is unset or a placeholder.
func (c *Config) UnconfiguredPlans() []string {
	var plans []string
	for _, plan := range []string{"basic", "pro", "family"} {
		if IsPlaceholder(c.Stripe.Prices()[plan]) {
			plans = append(plans, plan)
		}
	}
	return plans
}
