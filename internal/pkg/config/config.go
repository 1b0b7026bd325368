package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/ManuelReschke/PayFox/internal/pkg/security"
)

type Config struct {
	App      App      `envPrefix:"APP_"`
	Database Database `envPrefix:"DB_"`
	Cache    Cache    `envPrefix:"CACHE_"`
	Gateway  Gateway  `envPrefix:"GATEWAY_"`
	Webhook  Webhook  `envPrefix:"WEBHOOK_"`
	Auth     Auth     `envPrefix:"AUTH_"`
}

type App struct {
	Env            string        `env:"ENV" envDefault:"prod"`
	Host           string        `env:"HOST" envDefault:"0.0.0.0"`
	Port           string        `env:"PORT" envDefault:"4000"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"20s"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"10m"`
	RateLimit      int           `env:"RATE_LIMIT" envDefault:"120"`
	// WebhookRejectLimit caps rejected webhook deliveries per client and
	// minute. Accepted deliveries are not counted.
	WebhookRejectLimit int `env:"WEBHOOK_REJECT_LIMIT" envDefault:"30"`
}

type Database struct {
	// Driver is "mysql" or "sqlite".
	Driver   string `env:"DRIVER" envDefault:"mysql"`
	Host     string `env:"HOST" envDefault:"127.0.0.1"`
	Port     string `env:"PORT" envDefault:"3306"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME" envDefault:"payfox"`
	// DSN overrides the generated connection string when set.
	DSN         string `env:"DSN"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`
}

type Cache struct {
	Host     string        `env:"HOST" envDefault:"localhost"`
	Port     int           `env:"PORT" envDefault:"6379"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	TTL      time.Duration `env:"TTL" envDefault:"5m"`
}

type Gateway struct {
	BaseURL     string        `env:"BASE_URL" envDefault:"https://api.mercadopago.com"`
	AccessToken string        `env:"ACCESS_TOKEN,required,notEmpty"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

type Webhook struct {
	Secret    string        `env:"SECRET,required,notEmpty"`
	Retention time.Duration `env:"RETENTION" envDefault:"720h"`
}

type Auth struct {
	// APIKeys maps an API key to a role name, e.g. "k1:admin,k2:client".
	APIKeys map[string]string `env:"API_KEYS"`
}

// Load parses the process environment. godotenv is expected to have run
// before so values from a .env file are visible here.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required for the sqlite driver")
	}
	for key, role := range c.Auth.APIKeys {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("AUTH_API_KEYS contains an empty key")
		}
		if _, ok := security.ParseRole(role); !ok {
			return fmt.Errorf("AUTH_API_KEYS: unknown role %q", role)
		}
	}
	return nil
}

func (a App) IsDev() bool {
	return a.Env == "dev"
}

func (a App) Addr() string {
	return a.Host + ":" + a.Port
}

// LoadDatabase parses only the DB_* variables. cmd/migrate uses it so schema
// changes do not need gateway credentials.
func LoadDatabase() (Database, error) {
	var db Database
	if err := env.ParseWithOptions(&db, env.Options{Prefix: "DB_"}); err != nil {
		return db, fmt.Errorf("parse database config: %w", err)
	}
	return db, nil
}

// MigrationURL returns the golang-migrate database URL. Only MySQL schemas
// are versioned; sqlite deployments rely on DB_AUTO_MIGRATE.
func (d Database) MigrationURL() (string, error) {
	if d.Driver != "mysql" {
		return "", fmt.Errorf("migrations are not supported for driver %q", d.Driver)
	}
	dsn := d.DSN
	if dsn == "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", d.User, d.Password, d.Host, d.Port, d.Name)
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return "mysql://" + dsn + sep + "multiStatements=true", nil
}
