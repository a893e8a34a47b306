package config

import "fmt"

type Config struct {
	Env                    string
	DatabaseURL            string
	HTTPListenAddr         string
	MaintenanceAPISecret   string
	StaleDefaultMinutes    int
	SessionListMaxPageSize int
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.StaleDefaultMinutes < 5 || c.StaleDefaultMinutes > 60 {
		return fmt.Errorf("STALE_DEFAULT_MINUTES must be within [5, 60], got %d", c.StaleDefaultMinutes)
	}
	if c.SessionListMaxPageSize <= 0 {
		return fmt.Errorf("SESSION_LIST_MAX_PAGE_SIZE must be positive, got %d", c.SessionListMaxPageSize)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "HTTP_LISTEN_ADDR", value: c.HTTPListenAddr},
		{name: "MAINTENANCE_API_SECRET", value: c.MaintenanceAPISecret},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
