package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	JWT struct {
		Secret     string        `envconfig:"JWT_SECRET" default:"dev-secret"`
		Issuer     string        `envconfig:"JWT_ISSUER" default:"repa"`
		Audience   string        `envconfig:"JWT_AUDIENCE" default:"repa-users"`
		Expiration time.Duration `envconfig:"JWT_EXPIRATION" default:"12h"`
	} `envconfig:""`

	Business struct {
		Currency            string        `envconfig:"CURRENCY" default:"RUB"`
		DemoTTL             time.Duration `envconfig:"DEMO_TTL" default:"168h"`
		DemoMaxItems        int           `envconfig:"DEMO_MAX_ITEMS" default:"20"`
		PromoDefaultPercent int           `envconfig:"PROMO_DEFAULT_PERCENT" default:"10"`
		PromoTTLDays        int           `envconfig:"PROMO_TTL_DAYS" default:"30"`
	} `envconfig:""`

	Collect struct {
		StepDelay   time.Duration `envconfig:"COLLECT_STEP_DELAY" default:"250ms"`
		BatchSize   int           `envconfig:"COLLECT_BATCH_SIZE" default:"16"`
		MaxAttempts int           `envconfig:"COLLECT_MAX_ATTEMPTS" default:"5"`
	} `envconfig:""`

	Queues struct {
		Collect string `envconfig:"COLLECT_QUEUE_KEY" default:"collect_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения. Файл .env подхватывается, если есть.
func Load() AppConfig {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
