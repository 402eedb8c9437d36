// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек всех сервисов движка.
type Config struct {
	Env                     string `yaml:"env"`
	StorageConnectionString string `yaml:"storage_connection_string"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	RabbitMQ                `yaml:"rabbitmq"`
	Provider                `yaml:"provider"`
	ServiceToken            `yaml:"service_token"`
	Billing                 `yaml:"billing"`
	Collaborators           `yaml:"collaborators"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// RabbitMQ структура для настройки подключения к брокеру уведомлений.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"rabbitmq_url"`
	RabbitMQMaxRetries int           `yaml:"rabbitmq_max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"rabbitmq_retry_delay" env-default:"3s"`
}

// Provider структура с реквизитами ЮKassa.
type Provider struct {
	ShopID        string `yaml:"shop_id"`
	SecretKey     string `yaml:"secret_key" env:"YOOKASSA_SECRET_KEY"`
	WebhookSecret string `yaml:"webhook_secret" env:"YOOKASSA_WEBHOOK_SECRET"`
}

// ServiceToken структура для сервисных токенов внутреннего API.
type ServiceToken struct {
	TokenSecretKey string        `yaml:"token_secret_key" env:"SERVICE_TOKEN_SECRET"`
	TokenTTL       time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Billing структура с ценами продуктов и политикой продления подписки.
type Billing struct {
	FullReportPrice    int           `yaml:"full_report_price" env-default:"990"`
	CompatibilityPrice int           `yaml:"compatibility_price" env-default:"990"`
	SubscriptionPrice  int           `yaml:"subscription_price" env-default:"299"`
	Currency           string        `yaml:"currency" env-default:"RUB"`
	TrialDays          int           `yaml:"trial_days" env-default:"7"`
	BillingPeriodDays  int           `yaml:"billing_period_days" env-default:"30"`
	MaxChargeAttempts  int           `yaml:"max_charge_attempts" env-default:"3"`
	PendingOrderTTL    time.Duration `yaml:"pending_order_ttl" env-default:"24h"`
	SweepInterval      time.Duration `yaml:"sweep_interval" env-default:"24h"`
	ForecastInterval   time.Duration `yaml:"forecast_interval" env-default:"168h"`
}

// Collaborators структура с адресами внешних сервисов генерации отчётов.
type Collaborators struct {
	InterpreterURL string        `yaml:"interpreter_url"`
	RendererURL    string        `yaml:"renderer_url"`
	RequestTimeout time.Duration `yaml:"request_timeout" env-default:"30s"`
}

// MustLoad загружает конфиг из файла, указанного в CONFIG_PATH,
// и завершает процесс при любой ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
