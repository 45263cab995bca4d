package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	GatewayErrorBadInput         = "GATEWAY_BAD_INPUT"
	GatewayErrorPublishFailed    = "GATEWAY_PUBLISH_FAILED"
	GatewayErrorConversionFailed = "GATEWAY_CONVERSION_FAILED"
	GatewayErrorTransportFailed  = "GATEWAY_TRANSPORT_FAILED"
	GatewayErrorTimeout          = "GATEWAY_TIMEOUT"
	GatewayErrorUnsupportedMedia = "GATEWAY_UNSUPPORTED_MEDIA_TYPE"
	GatewayErrorInternal         = "GATEWAY_INTERNAL_ERROR"
)

// Races resolved inside the registry. They are logged and counted, never
// returned to callers.
var (
	ErrStaleCorrelation = errors.New("core: stale correlation")
	ErrDoubleReply      = errors.New("core: reply already set")
)

func gatewayError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func gatewayWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	if source == nil {
		return gatewayError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func gatewayBadInput(message string, metadata map[string]any) *goerrors.Error {
	return gatewayError(message, goerrors.CategoryBadInput, http.StatusBadRequest, GatewayErrorBadInput, metadata)
}

func gatewayInternal(message string, metadata map[string]any) *goerrors.Error {
	return gatewayError(message, goerrors.CategoryInternal, http.StatusInternalServerError, GatewayErrorInternal, metadata)
}

func ConversionError(source error, message string, metadata map[string]any) *goerrors.Error {
	return gatewayWrapError(
		source,
		goerrors.CategoryOperation,
		message,
		http.StatusInternalServerError,
		GatewayErrorConversionFailed,
		metadata,
	)
}

func IsConversionError(err error) bool {
	var rich *goerrors.Error
	return goerrors.As(err, &rich) && rich.TextCode == GatewayErrorConversionFailed
}

func gatewayErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureGatewayErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "no suitable converter"), strings.Contains(msg, "could not convert"):
		return ConversionError(err, err.Error(), nil)
	case strings.Contains(msg, "broken pipe"), strings.Contains(msg, "connection reset"):
		return gatewayWrapError(err, goerrors.CategoryExternal, err.Error(),
			http.StatusInternalServerError, GatewayErrorTransportFailed, nil)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must be"):
		return gatewayBadInput(err.Error(), nil)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureGatewayErrorEnvelope(mapped)
}

func ensureGatewayErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = gatewayHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultGatewayTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultGatewayTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return GatewayErrorBadInput
	case goerrors.CategoryExternal:
		return GatewayErrorTransportFailed
	case goerrors.CategoryOperation:
		return GatewayErrorConversionFailed
	default:
		return GatewayErrorInternal
	}
}

func gatewayHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
