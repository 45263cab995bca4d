package core

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

func TestNewGateway_DefaultDependencies(t *testing.T) {
	gw, err := NewGateway(Config{},
		WithPublisher(&capturePublisher{}),
		WithConverters(jsonConverters{}),
	)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	deps := gw.Dependencies()
	if deps.Logger == nil {
		t.Fatalf("expected default logger")
	}
	if deps.LoggerProvider == nil {
		t.Fatalf("expected default logger provider")
	}
	if deps.ErrorFactory == nil || deps.ErrorMapper == nil {
		t.Fatalf("expected default error factory and mapper")
	}
	if deps.ConfigProvider == nil || deps.OptionsResolver == nil {
		t.Fatalf("expected default config provider and options resolver")
	}
	if deps.Registry == nil {
		t.Fatalf("expected default continuation registry")
	}

	cfg := gw.Config()
	if cfg.ServiceName != "gateway" {
		t.Fatalf("expected default service_name=gateway, got %q", cfg.ServiceName)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Fatalf("expected default timeout %s, got %s", DefaultTimeout, cfg.Timeout)
	}
	if cfg.TimeoutStatusCode != http.StatusGatewayTimeout {
		t.Fatalf("expected default timeout status 504, got %d", cfg.TimeoutStatusCode)
	}
}

func TestNewGateway_RequiresPublisherAndConverters(t *testing.T) {
	_, err := NewGateway(Config{}, WithConverters(jsonConverters{}))
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != GatewayErrorBadInput {
		t.Fatalf("expected bad input for missing publisher, got %v", err)
	}

	_, err = NewGateway(Config{}, WithPublisher(&capturePublisher{}))
	if !goerrors.As(err, &richErr) || richErr.TextCode != GatewayErrorBadInput {
		t.Fatalf("expected bad input for missing converters, got %v", err)
	}
}

func TestNewGateway_WithXOverrides(t *testing.T) {
	customLogger := stubLogger{}
	customProvider := stubLoggerProvider{logger: customLogger}
	customFactory := func(message string, category ...goerrors.Category) *goerrors.Error {
		return goerrors.New("custom:"+message, category...)
	}
	sentinel := errors.New("sentinel")
	customMapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	registry := NewContinuationRegistry()
	configProvider := &fixedConfigProvider{cfg: Config{ServiceName: "from-provider"}}
	optionsResolver := &fixedOptionsResolver{cfg: Config{ServiceName: "resolved", Timeout: time.Second}}

	gw, err := NewGateway(Config{ServiceName: "runtime"},
		WithLogger(customLogger),
		WithLoggerProvider(customProvider),
		WithErrorFactory(customFactory),
		WithErrorMapper(customMapper),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
		WithRegistry(registry),
		WithPublisher(&capturePublisher{}),
		WithConverters(jsonConverters{}),
	)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	deps := gw.Dependencies()
	if deps.Logger != customLogger {
		t.Fatalf("expected custom logger override")
	}
	if resolved := deps.LoggerProvider.GetLogger("gateway.override"); resolved != customLogger {
		t.Fatalf("expected logger provider to resolve custom logger")
	}
	if deps.ConfigProvider != configProvider {
		t.Fatalf("expected custom config provider override")
	}
	if deps.OptionsResolver != optionsResolver {
		t.Fatalf("expected custom options resolver override")
	}
	if deps.Registry != registry {
		t.Fatalf("expected custom registry override")
	}
	if got := deps.ErrorMapper(errors.New("x")); !errors.Is(got, sentinel) {
		t.Fatalf("expected custom error mapper, got %v", got)
	}
	if got := gw.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected options resolver output config, got %q", got)
	}
}

func TestNewGateway_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name":        "from-config",
		"timeout_status_code": 503,
		"consumes":            []string{"application/json"},
		"cors": map[string]any{
			"allowed_origins": []string{"https://app.example"},
		},
	}})

	gw, err := NewGateway(Config{ServiceName: "from-runtime", Timeout: 2 * time.Second},
		WithConfigProvider(provider),
		WithPublisher(&capturePublisher{}),
		WithConverters(jsonConverters{}),
	)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	cfg := gw.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime value to override config/default, got %q", cfg.ServiceName)
	}
	if cfg.Timeout != 2*time.Second {
		t.Fatalf("expected runtime timeout, got %s", cfg.Timeout)
	}
	if cfg.TimeoutStatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected config layer timeout status, got %d", cfg.TimeoutStatusCode)
	}
	if len(cfg.Consumes) != 1 || cfg.Consumes[0] != "application/json" {
		t.Fatalf("expected config layer consumes, got %#v", cfg.Consumes)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "https://app.example" {
		t.Fatalf("expected config layer cors origins, got %#v", cfg.CORS.AllowedOrigins)
	}
	if cfg.PathPattern != "/**" {
		t.Fatalf("expected default path pattern, got %q", cfg.PathPattern)
	}
}

func TestNewGateway_RejectsInvalidConfig(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"timeout_status_code": 42,
	}})
	_, err := NewGateway(Config{},
		WithConfigProvider(provider),
		WithPublisher(&capturePublisher{}),
		WithConverters(jsonConverters{}),
	)
	if err == nil {
		t.Fatalf("expected invalid timeout status to be rejected")
	}
}
