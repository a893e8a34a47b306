package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	internalconfig "github.com/VladimirHumeniuk/custiq-backend/internal/config"
)

type envConfig struct {
	Env                    string `env:"ENV" envDefault:"production"`
	DatabaseURL            string `env:"DATABASE_URL,required"`
	HTTPListenAddr         string `env:"HTTP_LISTEN_ADDR" envDefault:":8080"`
	MaintenanceAPISecret   string `env:"MAINTENANCE_API_SECRET,required"`
	StaleDefaultMinutes    int    `env:"STALE_DEFAULT_MINUTES" envDefault:"30"`
	SessionListMaxPageSize int    `env:"SESSION_LIST_MAX_PAGE_SIZE" envDefault:"100"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                    raw.Env,
		DatabaseURL:            raw.DatabaseURL,
		HTTPListenAddr:         raw.HTTPListenAddr,
		MaintenanceAPISecret:   raw.MaintenanceAPISecret,
		StaleDefaultMinutes:    raw.StaleDefaultMinutes,
		SessionListMaxPageSize: raw.SessionListMaxPageSize,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
