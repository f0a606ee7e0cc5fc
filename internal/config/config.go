package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config aggregates everything a service binary needs from the
// environment. All services share one schema; fields irrelevant to a
// given binary are simply ignored by it.
type Config struct {
	App      App
	Auth     Auth
	Database Database
	Redis    Redis
	Cache    Cache
	CORS     CORS
	Services Services
}

type App struct {
	Service      string `ignored:"true"`
	Host         string `envconfig:"APP_HOST" default:"0.0.0.0"`
	Port         int    `envconfig:"APP_PORT" default:"8000"`
	Environment  string `envconfig:"ENVIRONMENT" default:"development"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func (a App) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type Auth struct {
	SecretKey   string `envconfig:"SECRET_KEY" default:"dev-secret-change-me"`
	Algorithm   string `envconfig:"JWT_ALGORITHM" default:"HS512"`
	ExpireHours int    `envconfig:"ACCESS_TOKEN_EXPIRE_HOURS" default:"24"`
}

type Database struct {
	URL string `envconfig:"DATABASE_URL"`
}

type Redis struct {
	URL            string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	BookingStream  string `envconfig:"EVENT_STREAM" default:"booking-events"`
	DeletionStream string `envconfig:"DELETION_STREAM" default:"deletion-events"`
}

type Cache struct {
	SettingsTTLSeconds     int `envconfig:"CACHE_TTL_SETTINGS" default:"300"`
	AvailabilityTTLSeconds int `envconfig:"CACHE_TTL_AVAILABILITY" default:"300"`
}

type CORS struct {
	Origins          []string `envconfig:"CORS_ORIGINS" default:"*"`
	AllowCredentials bool     `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
}

// Services holds the base URLs used for synchronous cross-service
// calls and by the gateway for proxying.
type Services struct {
	Tenant   string `envconfig:"TENANT_SERVICE_URL" default:"http://localhost:8001"`
	User     string `envconfig:"USER_SERVICE_URL" default:"http://localhost:8002"`
	Resource string `envconfig:"RESOURCE_SERVICE_URL" default:"http://localhost:8003"`
	Booking  string `envconfig:"BOOKING_SERVICE_URL" default:"http://localhost:8004"`
}

// New loads configuration for the named service. A .env file in the
// working directory is honored when present. The database URL resolves
// <SERVICE>_DATABASE_URL first, then DATABASE_URL, so one compose file
// can point each service at its own database.
func New(service string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	cfg.App.Service = service

	if override := os.Getenv(strings.ToUpper(service) + "_DATABASE_URL"); override != "" {
		cfg.Database.URL = override
	}
	return cfg, nil
}
