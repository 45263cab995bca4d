package gateway

import (
	"github.com/goliatone/go-gateway/codec"
	"github.com/goliatone/go-gateway/core"
	"github.com/goliatone/go-gateway/transport"
)

type Config = core.Config

type CORSConfig = core.CORSConfig

type Option = core.Option

type Gateway = core.Gateway

type GatewayDependencies = core.GatewayDependencies

type Message = core.Message
type Headers = core.Headers
type Exchange = core.Exchange
type InboundRequest = core.InboundRequest
type Continuation = core.Continuation
type ContinuationRegistry = core.ContinuationRegistry
type RequestPublisher = core.RequestPublisher
type RequestPublisherFunc = core.RequestPublisherFunc
type ConverterResolver = core.ConverterResolver
type MetricsRecorder = core.MetricsRecorder

type HTTPHandler = transport.HTTPHandler

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithRegistry        = core.WithRegistry
	WithPublisher       = core.WithPublisher
	WithConverters      = core.WithConverters
)

var (
	NewMessage = core.NewMessage
	NewReply   = core.NewReply
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// New builds a gateway with the default converter chain (bytes, text, JSON).
// A WithConverters option replaces it.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	all := make([]Option, 0, len(opts)+1)
	all = append(all, core.WithConverters(codec.NewDefaultRegistry()))
	all = append(all, opts...)
	return core.NewGateway(cfg, all...)
}

// NewHTTPHandler serves gw over HTTP using the gateway's resolved config.
func NewHTTPHandler(gw *Gateway, opts ...transport.HandlerOption) *HTTPHandler {
	return transport.NewHTTPHandler(gw, gw.Config(), opts...)
}
