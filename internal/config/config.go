package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	_ "github.com/joho/godotenv/autoload"

	"movie-membership/internal/infrastructure/momo"
)

type Config struct {
	Env       string `env:"APP_ENV" env-default:"local"`
	App       App
	DB        DB
	Log       Log
	Auth      Auth
	Momo      Momo
	Kafka     Kafka
	Reconcile Reconcile
}

type App struct {
	Port       string `env:"PORT" env-default:"5000"`
	CORSOrigin string `env:"CORS_ORIGIN" env-default:"http://localhost:3000"`
}

type DB struct {
	Host     string `env:"BLUEPRINT_DB_HOST" env-default:"localhost"`
	Port     string `env:"BLUEPRINT_DB_PORT" env-default:"5432"`
	Database string `env:"BLUEPRINT_DB_DATABASE" env-required:"true"`
	Username string `env:"BLUEPRINT_DB_USERNAME" env-required:"true"`
	Password string `env:"BLUEPRINT_DB_PASSWORD"`
	Schema   string `env:"BLUEPRINT_DB_SCHEMA" env-default:"public"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"json"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET" env-required:"true"`
}

type Momo struct {
	Endpoint      string        `env:"MOMO_ENDPOINT" env-default:"https://test-payment.momo.vn"`
	PartnerCode   string        `env:"MOMO_PARTNER_CODE" env-default:"MOMO"`
	PartnerName   string        `env:"MOMO_PARTNER_NAME" env-default:"Test"`
	StoreID       string        `env:"MOMO_STORE_ID" env-default:"MomoTestStore"`
	AccessKey     string        `env:"MOMO_ACCESS_KEY" env-required:"true"`
	SecretKey     string        `env:"MOMO_SECRET_KEY" env-required:"true"`
	RequestType   string        `env:"MOMO_REQUEST_TYPE" env-default:"payWithMethod"`
	RedirectURL   string        `env:"MOMO_RETURN_URL" env-default:"http://localhost:3000/payment/result"`
	IPNURL        string        `env:"MOMO_IPN_URL" env-default:"http://localhost:5000/api/momo/ipn"`
	Lang          string        `env:"MOMO_LANG" env-default:"vi"`
	Timeout       time.Duration `env:"MOMO_TIMEOUT" env-default:"15s"`
	QueryOnReturn bool          `env:"MOMO_QUERY_ON_RETURN" env-default:"false"`
}

type Kafka struct {
	Brokers []string `env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `env:"KAFKA_PAYMENT_TOPIC" env-default:"payment-events"`
}

// Reconcile configures the stale-order sweeper; a zero interval disables it.
type Reconcile struct {
	Interval   time.Duration `env:"RECONCILE_INTERVAL" env-default:"0s"`
	StaleAfter time.Duration `env:"RECONCILE_STALE_AFTER" env-default:"15m"`
	BatchSize  int           `env:"RECONCILE_BATCH_SIZE" env-default:"50"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate catches required values that are present but blank.
func (c *Config) validate() error {
	switch {
	case c.Momo.AccessKey == "" || c.Momo.SecretKey == "":
		return fmt.Errorf("MOMO_ACCESS_KEY and MOMO_SECRET_KEY must not be empty")
	case c.Auth.JWTSecret == "":
		return fmt.Errorf("JWT_SECRET must not be empty")
	case c.Reconcile.Interval < 0:
		return fmt.Errorf("RECONCILE_INTERVAL must not be negative")
	}
	return nil
}

func (d DB) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.Schema,
	)
}

func (m Momo) Gateway() momo.Config {
	return momo.Config{
		Endpoint:    m.Endpoint,
		PartnerCode: m.PartnerCode,
		PartnerName: m.PartnerName,
		StoreID:     m.StoreID,
		AccessKey:   m.AccessKey,
		SecretKey:   m.SecretKey,
		Lang:        m.Lang,
		Timeout:     m.Timeout,
	}
}
