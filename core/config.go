package core

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout           = 5 * time.Minute
	DefaultTimeoutStatusCode = http.StatusGatewayTimeout
)

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedHeaders   []string `koanf:"allowed_headers" mapstructure:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials" mapstructure:"allow_credentials"`
}

type Config struct {
	ServiceName          string        `koanf:"service_name" mapstructure:"service_name"`
	Timeout              time.Duration `koanf:"timeout" mapstructure:"timeout"`
	TimeoutStatusCode    int           `koanf:"timeout_status_code" mapstructure:"timeout_status_code"`
	ConvertErrors        bool          `koanf:"convert_errors" mapstructure:"convert_errors"`
	PathPattern          string        `koanf:"path_pattern" mapstructure:"path_pattern"`
	MappedRequestHeaders []string      `koanf:"mapped_request_headers" mapstructure:"mapped_request_headers"`
	Consumes             []string      `koanf:"consumes" mapstructure:"consumes"`
	CORS                 CORSConfig    `koanf:"cors" mapstructure:"cors"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:          "gateway",
		Timeout:              DefaultTimeout,
		TimeoutStatusCode:    DefaultTimeoutStatusCode,
		PathPattern:          "/**",
		MappedRequestHeaders: []string{"*", HeaderCorrelationID},
		Consumes:             []string{"text/*", "application/json", MediaTypeAll},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedHeaders: []string{"*"},
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("core: timeout must be positive")
	}
	if c.TimeoutStatusCode < 100 || c.TimeoutStatusCode > 599 {
		return fmt.Errorf("core: timeout_status_code %d is invalid", c.TimeoutStatusCode)
	}
	if strings.TrimSpace(c.PathPattern) == "" {
		return fmt.Errorf("core: path_pattern is required")
	}
	return nil
}
