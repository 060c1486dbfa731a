// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Stripe                  `yaml:"stripe"`
	Encryption              `yaml:"encryption"`
	GoogleOAuth             `yaml:"google_oauth"`
	RabbitMQ                `yaml:"rabbitmq"`
	SMTP                    `yaml:"smtp"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Stripe структура с учётными данными платёжного провайдера.
// Пустой SecretKey означает, что платежи не сконфигурированы: все вызовы
// адаптера будут возвращать ошибку конфигурации, но сервис поднимется.
type Stripe struct {
	SecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	PriceID       string `yaml:"price_id" env:"STRIPE_PRICE_ID"`
	SuccessURL    string `yaml:"success_url"`
	CancelURL     string `yaml:"cancel_url"`
}

// Encryption хранит ключ шифрования персональных данных в base64.
// Отсутствие ключа или ключ неверного размера — фатальная ошибка запуска.
type Encryption struct {
	PIIKeyBase64 string `yaml:"pii_key" env:"PII_ENCRYPTION_KEY"`
}

// GoogleOAuth структура для входа через Google.
type GoogleOAuth struct {
	ClientID     string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `yaml:"redirect_url"`
}

// RabbitMQ структура для подключения к брокеру уведомлений.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	MaxRetries int           `yaml:"max_retries" env-default:"10"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// SMTP структура для отправки писем воркером уведомлений.
type SMTP struct {
	SMTPHost     string `yaml:"host"`
	SMTPPort     string `yaml:"port"`
	SMTPUsername string `yaml:"username" env:"SMTP_USERNAME"`
	SMTPPassword string `yaml:"password" env:"SMTP_PASSWORD"`
	SMTPFrom     string `yaml:"from"`
}

// MustLoad функция для загрузки конфига, завершает процесс при любой ошибке:
// отсутствует CONFIG_PATH, нет файла, не парсится или невалиден ключ шифрования.
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
	if _, err := cfg.PIIKey(); err != nil {
		log.Fatalf("invalid PII encryption key: %s", err)
	}
	return &cfg
}

// PIIKey декодирует ключ шифрования персональных данных и проверяет его размер.
func (c *Config) PIIKey() ([]byte, error) {
	if c.PIIKeyBase64 == "" {
		return nil, fmt.Errorf("pii encryption key is not set")
	}
	key, err := base64.StdEncoding.DecodeString(c.PIIKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("pii encryption key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("pii encryption key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  User: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWTToken:\n"+
			"  TokenTTL: %s\n"+
			"Stripe:\n"+
			"  PriceID: %s\n"+
			"  SuccessURL: %s\n"+
			"  CancelURL: %s\n",
		c.Env,
		c.StorageConnectionString,
		c.AddressRedis,
		c.User,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.TokenTTL,
		c.PriceID,
		c.SuccessURL,
		c.CancelURL,
	)
}
