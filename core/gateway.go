package core

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Gateway correlates inbound connections with replies delivered on a
// separate channel. HandleRequest is re-entered for every wake-up of the same
// Exchange; HandleReply is called once per reply-channel delivery.
type Gateway struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	registry        *ContinuationRegistry
	publisher       RequestPublisher
	converters      ConverterResolver
}

type GatewayDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	Registry        *ContinuationRegistry
	Publisher       RequestPublisher
	Converters      ConverterResolver
}

func NewGateway(cfg Config, opts ...Option) (*Gateway, error) {
	builder := defaultGatewayBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("gateway", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("gateway"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewContinuationRegistry()
	}
	if builder.publisher == nil {
		return nil, mapBuildError(builder.errorMapper, gatewayBadInput("core: request publisher is required", nil))
	}
	if builder.converters == nil {
		return nil, mapBuildError(builder.errorMapper, gatewayBadInput("core: converter resolver is required", nil))
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Gateway{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		registry:        builder.registry,
		publisher:       builder.publisher,
		converters:      builder.converters,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Gateway, error) {
	return NewGateway(cfg, opts...)
}

func (g *Gateway) Config() Config {
	if g == nil {
		return Config{}
	}
	return g.config
}

func (g *Gateway) Registry() *ContinuationRegistry {
	if g == nil {
		return nil
	}
	return g.registry
}

func (g *Gateway) Dependencies() GatewayDependencies {
	if g == nil {
		return GatewayDependencies{}
	}
	return GatewayDependencies{
		Logger:          g.logger,
		LoggerProvider:  g.loggerProvider,
		MetricsRecorder: g.metricsRecorder,
		ErrorFactory:    g.errorFactory,
		ErrorMapper:     g.errorMapper,
		ConfigProvider:  g.configProvider,
		OptionsResolver: g.optionsResolver,
		Registry:        g.registry,
		Publisher:       g.publisher,
		Converters:      g.converters,
	}
}

func (g *Gateway) HandleRequest(ctx context.Context, ex Exchange) (err error) {
	if g == nil {
		return gatewayInternal("core: gateway is nil", nil)
	}
	if ex == nil {
		return gatewayBadInput("core: exchange is required", nil)
	}
	startedAt := time.Now()

	continuation := ex.Continuation()
	first := continuation == nil
	var outbound Message
	if first {
		continuation = g.registry.Create(g.config.Timeout)
		ex.SetContinuation(continuation)
		outbound = g.requestMessage(ex.Request(), continuation)
	}

	result := continuation.Dispatch(ex.ResumeHandle())
	fields := map[string]any{
		HeaderCorrelationID: continuation.ID(),
		"outcome":           result.Outcome.String(),
		"method":            ex.Request().Method,
		"first":             first,
	}
	defer func() {
		if result.Outcome == OutcomeParked && err == nil {
			return
		}
		g.observeOperation(ctx, startedAt, "handle_request", err, fields)
	}()

	switch result.Outcome {
	case OutcomeParked:
		if !first {
			return nil
		}
		if pubErr := g.publisher.Publish(ctx, outbound); pubErr != nil {
			continuation.Discard()
			fields["outcome"] = "publish_failed"
			return g.fail(ctx, ex, gatewayWrapError(
				pubErr,
				goerrors.CategoryExternal,
				"core: publish request failed",
				http.StatusBadGateway,
				GatewayErrorPublishFailed,
				map[string]any{HeaderCorrelationID: continuation.ID()},
			))
		}
		g.recordCounter(ctx, MetricParked, 1, nil)
		return nil
	case OutcomeReplied:
		return g.writeReply(ctx, ex, *result.Reply)
	case OutcomeExpired:
		return g.writeTimeout(ctx, ex)
	default:
		return nil
	}
}

// Abandon releases the continuation of an exchange whose client went away
// before an outcome was produced. Later replies for it are dropped as stale.
func (g *Gateway) Abandon(ctx context.Context, ex Exchange) {
	if g == nil || ex == nil {
		return
	}
	continuation := ex.Continuation()
	if continuation == nil {
		return
	}
	continuation.Discard()
	g.logInfo(ctx, "client is gone, continuation abandoned", map[string]any{
		HeaderCorrelationID: continuation.ID(),
	})
}

func (g *Gateway) HandleReply(ctx context.Context, msg Message) error {
	if g == nil {
		return gatewayInternal("core: gateway is nil", nil)
	}
	correlationID := msg.CorrelationID()
	fields := map[string]any{
		HeaderCorrelationID: correlationID,
		HeaderMessageID:     msg.ID,
	}

	continuation, ok := g.registry.LookupString(correlationID)
	if !ok || continuation.IsExpired() {
		g.recordCounter(ctx, MetricReplyStale, 1, nil)
		fields["reason"] = ErrStaleCorrelation.Error()
		g.logInfo(ctx, "client is gone, reply dropped", fields)
		return nil
	}
	if !continuation.SetReply(msg) {
		g.recordCounter(ctx, MetricReplyDuplicate, 1, nil)
		fields["reason"] = ErrDoubleReply.Error()
		fields["state"] = continuation.Outcome().String()
		g.logWarn(ctx, "reply dropped", fields)
		return nil
	}
	g.logDebug(ctx, "reply delivered", fields)
	return nil
}

func (g *Gateway) requestMessage(req InboundRequest, continuation *Continuation) Message {
	headers := req.Headers.Clone()
	headers[HeaderCorrelationID] = strconv.FormatInt(continuation.ID(), 10)
	accept := req.Accept
	if len(accept) == 0 {
		accept = []string{MediaTypeAll}
	}
	headers[HeaderAccept] = append([]string(nil), accept...)
	headers[HeaderContentType] = accept[0]
	return NewMessage(req.Payload, headers)
}

func (g *Gateway) writeReply(ctx context.Context, ex Exchange, reply Message) error {
	status := replyStatus(reply)
	if reply.Payload == nil {
		return g.transportError(ex.WriteStatus(ctx, status))
	}
	body, mediaType, err := g.converters.Encode(
		reply.Payload,
		reply.Headers.String(HeaderContentType),
		ex.Request().Accept,
	)
	if err != nil {
		var convErr *goerrors.Error
		if !goerrors.As(err, &convErr) || convErr.TextCode != GatewayErrorConversionFailed {
			convErr = ConversionError(err, "core: could not convert reply", map[string]any{
				HeaderCorrelationID: reply.CorrelationID(),
				"accept":            ex.Request().Accept,
			})
		}
		return g.fail(ctx, ex, convErr)
	}
	return g.transportError(ex.WriteBody(ctx, status, mediaType, body))
}

func (g *Gateway) writeTimeout(ctx context.Context, ex Exchange) error {
	return g.transportError(ex.WriteStatus(ctx, g.config.TimeoutStatusCode))
}

// fail writes an error response for err and returns err to the caller. With
// ConvertErrors the error envelope becomes the response body.
func (g *Gateway) fail(ctx context.Context, ex Exchange, err error) error {
	rich := g.mapError(err)
	status := rich.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if g.config.ConvertErrors {
		envelope := rich.Clone().ToErrorResponse(false, nil)
		body, mediaType, encErr := g.converters.Encode(envelope, "application/json", ex.Request().Accept)
		if encErr == nil {
			if writeErr := ex.WriteBody(ctx, status, mediaType, body); writeErr != nil {
				return goerrors.Join(rich, g.transportError(writeErr))
			}
			return rich
		}
	}
	if writeErr := ex.WriteStatus(ctx, status); writeErr != nil {
		return goerrors.Join(rich, g.transportError(writeErr))
	}
	return rich
}

func (g *Gateway) mapError(err error) *goerrors.Error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureGatewayErrorEnvelope(rich)
	}
	if g.errorMapper != nil {
		if mapped := g.errorMapper(err); mapped != nil {
			return mapped
		}
	}
	return gatewayErrorMapper(err)
}

func (g *Gateway) transportError(err error) error {
	if err == nil {
		return nil
	}
	return gatewayWrapError(
		err,
		goerrors.CategoryExternal,
		"core: write response failed",
		http.StatusInternalServerError,
		GatewayErrorTransportFailed,
		nil,
	)
}

func replyStatus(reply Message) int {
	raw := reply.Headers.String(HeaderStatusCode)
	if raw == "" {
		return http.StatusOK
	}
	status, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || status < 100 || status > 599 {
		return http.StatusOK
	}
	return status
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
