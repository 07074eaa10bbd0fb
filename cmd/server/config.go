package main

import (
	"fmt"

	"github.com/ztruyen/ztc-auth/pkg/clientip"
	"github.com/ztruyen/ztc-auth/pkg/config"
	"github.com/ztruyen/ztc-auth/pkg/cookie"
	"github.com/ztruyen/ztc-auth/pkg/email"
	"github.com/ztruyen/ztc-auth/pkg/environment"
	"github.com/ztruyen/ztc-auth/pkg/httpserver"
	"github.com/ztruyen/ztc-auth/pkg/mongo"
	"github.com/ztruyen/ztc-auth/pkg/pg"
	"github.com/ztruyen/ztc-auth/pkg/redis"
	"github.com/ztruyen/ztc-auth/pkg/turnstile"
	"github.com/ztruyen/ztc-auth/svc/auth"
)

// Storage drivers.
const (
	driverMongo    = "mongo"
	driverPostgres = "postgres"
	driverMemory   = "memory"
)

// App is the whole process configuration.
type App struct {
	Env           string `env:"APP_ENV" envDefault:"development"`
	ServiceName   string `env:"SERVICE_NAME" envDefault:"ztc-auth"`
	LogLevel      string `env:"LOG_LEVEL"`
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"mongo"`

	// StateStore is "redis" or "memory". Memory only works with a single
	// instance.
	StateStore      string `env:"OAUTH_STATE_STORE" envDefault:"redis"`
	PasswordAlgo    string `env:"PASSWORD_ALGORITHM" envDefault:"bcrypt"`
	BcryptCost      int    `env:"PASSWORD_BCRYPT_COST" envDefault:"10"`
	MetricsEndpoint bool   `env:"METRICS_ENABLED" envDefault:"true"`

	HTTP      httpserver.Config
	Cookie    cookie.Config
	ClientIP  clientip.Config
	Auth      auth.Config
	Google    auth.GoogleConfig
	Facebook  auth.FacebookConfig
	Turnstile turnstile.Config
	Email     email.Config

	// Loaded only when the driver or state store needs them.
	mongo mongo.Config
	pg    pg.Config
	redis redis.Config
	env   environment.Environment
}

// loadConfig reads the environment (and .env when present). Sections with
// required variables are parsed only when they are in use.
func loadConfig(opts ...config.Option) (App, error) {
	var cfg App
	if err := config.Load(&cfg, opts...); err != nil {
		return App{}, err
	}
	cfg.env = environment.Parse(cfg.Env)

	switch cfg.StorageDriver {
	case driverMongo:
		if err := config.Load(&cfg.mongo, opts...); err != nil {
			return App{}, err
		}
	case driverPostgres:
		if err := config.Load(&cfg.pg, opts...); err != nil {
			return App{}, err
		}
	case driverMemory:
		if cfg.env.IsProduction() {
			return App{}, fmt.Errorf("storage driver %q is not allowed in production", driverMemory)
		}
	default:
		return App{}, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	switch cfg.StateStore {
	case "redis":
		if err := config.Load(&cfg.redis, opts...); err != nil {
			return App{}, err
		}
	case "memory":
	default:
		return App{}, fmt.Errorf("unknown oauth state store %q", cfg.StateStore)
	}

	if cfg.env.IsProduction() && cfg.Turnstile.Secret == "" {
		return App{}, fmt.Errorf("TURNSTILE_SECRET is required in %s", cfg.env)
	}
	return cfg, nil
}

// loadPGConfig reads only the Postgres section, for the migrate command.
func loadPGConfig(opts ...config.Option) (pg.Config, error) {
	var cfg pg.Config
	if err := config.Load(&cfg, opts...); err != nil {
		return pg.Config{}, err
	}
	return cfg, nil
}
