package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"3000"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
		Port       int    `envconfig:"BOT_PORT" default:"8080"`
	} `envconfig:""`

	// AdminUserID — единственная учётка, которой разрешено создавать
	// main-челленджи. Инжектится при старте, не глобальная переменная.
	AdminUserID string `envconfig:"ADMIN_USER_ID"`

	Store struct {
		Driver   string `envconfig:"STORE_DRIVER" default:"mongo"`
		MongoURI string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
		MongoDB  string `envconfig:"MONGO_DB" default:"challenge"`
		PGDSN    string `envconfig:"PG_DSN"`
	} `envconfig:""`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AMQP struct {
		URL      string `envconfig:"AMQP_URL"`
		Exchange string `envconfig:"AMQP_EXCHANGE" default:"challenge.events"`
	} `envconfig:""`

	Limits struct {
		FreeJoin      int `envconfig:"FREE_JOIN_LIMIT" default:"2"`
		FreeCreate    int `envconfig:"FREE_CREATE_LIMIT" default:"3"`
		PremiumCreate int `envconfig:"PREMIUM_CREATE_LIMIT" default:"5"`
	} `envconfig:""`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
