package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-gateway/codec"
	"github.com/goliatone/go-gateway/core"
	glog "github.com/goliatone/go-logger/glog"
)

const defaultMaxRequestBodyBytes int64 = 10 << 20 // 10 MiB

var allowedMethods = []string{
	http.MethodPost,
	http.MethodGet,
	http.MethodDelete,
	http.MethodPut,
	http.MethodOptions,
}

// RequestGateway is the part of core.Gateway the HTTP handler drives.
type RequestGateway interface {
	HandleRequest(ctx context.Context, ex core.Exchange) error
	Abandon(ctx context.Context, ex core.Exchange)
}

type HandlerOption func(*HTTPHandler)

func WithLogger(logger core.Logger) HandlerOption {
	return func(h *HTTPHandler) {
		h.logger = glog.Ensure(logger)
	}
}

func WithMaxRequestBodyBytes(limit int64) HandlerOption {
	return func(h *HTTPHandler) {
		if limit > 0 {
			h.maxBodyBytes = limit
		}
	}
}

// HTTPHandler turns inbound HTTP requests into gateway exchanges. Each
// request goroutine parks on its exchange until the gateway resumes it with
// a reply or deadline, then re-enters HandleRequest.
type HTTPHandler struct {
	gateway       RequestGateway
	config        core.Config
	logger        core.Logger
	headers       HeaderMapper
	consumes      []codec.MediaType
	cors          corsPolicy
	maxBodyBytes  int64
	convertErrors bool
}

func NewHTTPHandler(gateway RequestGateway, cfg core.Config, opts ...HandlerOption) *HTTPHandler {
	h := &HTTPHandler{
		gateway:       gateway,
		config:        cfg,
		logger:        glog.Nop(),
		headers:       NewHeaderMapper(cfg.MappedRequestHeaders),
		consumes:      codec.ParseMediaTypes(cfg.Consumes),
		cors:          newCORSPolicy(cfg.CORS),
		maxBodyBytes:  defaultMaxRequestBodyBytes,
		convertErrors: cfg.ConvertErrors,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
	if !h.cors.apply(w, r, preflight) {
		h.reject(w, transportError("transport: origin not allowed", goerrors.CategoryAuthz,
			http.StatusForbidden, core.GatewayErrorBadInput, map[string]any{"origin": r.Header.Get("Origin")}))
		return
	}
	if preflight {
		w.WriteHeader(http.StatusOK)
		return
	}
	if !containsString(allowedMethods, r.Method) {
		w.Header().Set("Allow", strings.Join(allowedMethods, ", "))
		h.reject(w, transportError("transport: method not allowed", goerrors.CategoryBadInput,
			http.StatusMethodNotAllowed, core.GatewayErrorBadInput, map[string]any{"method": r.Method}))
		return
	}
	if !matchPath(h.config.PathPattern, r.URL.Path) {
		h.reject(w, transportError("transport: no route for path", goerrors.CategoryNotFound,
			http.StatusNotFound, core.GatewayErrorBadInput, map[string]any{"path": r.URL.Path}))
		return
	}

	inbound, rejection := h.inboundRequest(r)
	if rejection != nil {
		h.reject(w, rejection)
		return
	}
	h.serveExchange(r.Context(), newHTTPExchange(w, inbound))
}

func (h *HTTPHandler) serveExchange(ctx context.Context, ex *httpExchange) {
	for {
		if err := h.gateway.HandleRequest(ctx, ex); err != nil {
			h.logger.WithContext(ctx).Error("gateway request failed", "error", err.Error(), "path", ex.request.Path)
			if !ex.isWritten() {
				_ = ex.WriteStatus(ctx, http.StatusInternalServerError)
			}
			return
		}
		if ex.isWritten() {
			return
		}
		if continuation := ex.Continuation(); continuation == nil || continuation.State() == core.StateDisposed {
			_ = ex.WriteStatus(ctx, http.StatusInternalServerError)
			return
		}
		select {
		case <-ex.wake:
		case <-ctx.Done():
			h.gateway.Abandon(ctx, ex)
			return
		}
	}
}

func (h *HTTPHandler) inboundRequest(r *http.Request) (core.InboundRequest, *goerrors.Error) {
	inbound := core.InboundRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		Accept:      acceptList(r),
		Headers:     h.headers.Map(r),
	}
	if r.Body == nil || r.Body == http.NoBody {
		return inbound, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodyBytes+1))
	if err != nil {
		return inbound, transportWrapError(err, goerrors.CategoryBadInput, "transport: read request body",
			http.StatusBadRequest, nil)
	}
	if int64(len(body)) > h.maxBodyBytes {
		return inbound, transportError(
			fmt.Sprintf("transport: request body exceeds limit of %d bytes", h.maxBodyBytes),
			goerrors.CategoryBadInput,
			http.StatusRequestEntityTooLarge,
			core.GatewayErrorBadInput,
			map[string]any{"request_limit_b": h.maxBodyBytes},
		)
	}
	if len(body) == 0 {
		return inbound, nil
	}

	mediaType := codec.MediaOctetStream
	if inbound.ContentType != "" {
		parsed, err := codec.ParseMediaType(inbound.ContentType)
		if err != nil {
			return inbound, transportWrapError(err, goerrors.CategoryBadInput, "transport: invalid content type",
				http.StatusUnsupportedMediaType, map[string]any{"content_type": inbound.ContentType})
		}
		mediaType = parsed
	}
	if !h.consumesMedia(mediaType) {
		return inbound, transportError("transport: unsupported media type", goerrors.CategoryBadInput,
			http.StatusUnsupportedMediaType, core.GatewayErrorUnsupportedMedia,
			map[string]any{"content_type": mediaType.String()})
	}

	if textual(mediaType) {
		inbound.Payload = string(body)
	} else {
		inbound.Payload = body
	}
	return inbound, nil
}

func (h *HTTPHandler) consumesMedia(mediaType codec.MediaType) bool {
	for _, accepted := range h.consumes {
		if accepted.Includes(mediaType) {
			return true
		}
	}
	return false
}

// reject answers requests that never reach the gateway.
func (h *HTTPHandler) reject(w http.ResponseWriter, rich *goerrors.Error) {
	h.logger.Debug("request rejected", "status", rich.Code, "text_code", rich.TextCode, "error", rich.Message)
	if !h.convertErrors {
		w.WriteHeader(rich.Code)
		return
	}
	w.Header().Set("Content-Type", codec.MediaJSON.String())
	w.WriteHeader(rich.Code)
	if _, err := codec.NewJSONConverter().Write(w, rich.ToErrorResponse(false, nil), codec.MediaJSON); err != nil {
		h.logger.Warn("write rejection body failed", "error", err.Error())
	}
}

func acceptList(r *http.Request) []string {
	var out []string
	for _, value := range r.Header.Values("Accept") {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func textual(mediaType codec.MediaType) bool {
	return mediaType.Type == "text" || codec.MediaJSON.Includes(mediaType.WithoutParams())
}
