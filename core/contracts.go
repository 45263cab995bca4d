package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	HeaderCorrelationID = "correlation_id"
	HeaderContentType   = "content_type"
	HeaderAccept        = "accept"
	HeaderStatusCode    = "status_code"
	HeaderMessageID     = "message_id"
	HeaderTimestamp     = "timestamp"
)

const MediaTypeAll = "*/*"

type Headers map[string]any

func (h Headers) String(key string) string {
	if len(h) == 0 {
		return ""
	}
	raw, ok := h[key]
	if !ok || raw == nil {
		return ""
	}
	switch typed := raw.(type) {
	case string:
		return strings.TrimSpace(typed)
	case []string:
		return strings.TrimSpace(strings.Join(typed, ","))
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func (h Headers) Strings(key string) []string {
	if len(h) == 0 {
		return nil
	}
	switch typed := h[key].(type) {
	case []string:
		return append([]string(nil), typed...)
	case string:
		return splitList(typed)
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if value := strings.TrimSpace(fmt.Sprint(item)); value != "" {
				out = append(out, value)
			}
		}
		return out
	}
	return nil
}

func (h Headers) Clone() Headers {
	if len(h) == 0 {
		return Headers{}
	}
	out := make(Headers, len(h))
	for key, value := range h {
		if list, ok := value.([]string); ok {
			value = append([]string(nil), list...)
		}
		out[key] = value
	}
	return out
}

// Message is the unit carried on the request and reply channels. Payload is
// opaque to the gateway.
type Message struct {
	ID      string
	Payload any
	Headers Headers
}

func NewMessage(payload any, headers Headers) Message {
	out := headers.Clone()
	id := uuid.NewString()
	out[HeaderMessageID] = id
	out[HeaderTimestamp] = time.Now().UTC().UnixMilli()
	return Message{ID: id, Payload: payload, Headers: out}
}

// NewReply builds a reply to request, carrying its correlation id.
func NewReply(request Message, payload any, headers Headers) Message {
	out := headers.Clone()
	if correlationID := request.CorrelationID(); correlationID != "" {
		out[HeaderCorrelationID] = correlationID
	}
	return NewMessage(payload, out)
}

func (m Message) CorrelationID() string {
	return m.Headers.String(HeaderCorrelationID)
}

type InboundRequest struct {
	Method      string
	Path        string
	ContentType string
	Accept      []string
	Headers     Headers
	Payload     any
}

type ResumeHandle interface {
	// Resume must not block; it is called while the continuation lock is held.
	Resume()
}

type ResumeFunc func()

func (f ResumeFunc) Resume() {
	if f != nil {
		f()
	}
}

// Exchange is one inbound connection as seen by the gateway. The same
// Exchange is handed back to Gateway.HandleRequest on every wake-up.
type Exchange interface {
	Continuation() *Continuation
	SetContinuation(c *Continuation)
	Request() InboundRequest
	ResumeHandle() ResumeHandle
	WriteStatus(ctx context.Context, status int) error
	WriteBody(ctx context.Context, status int, contentType string, body []byte) error
}

type RequestPublisher interface {
	Publish(ctx context.Context, msg Message) error
}

type RequestPublisherFunc func(ctx context.Context, msg Message) error

func (f RequestPublisherFunc) Publish(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

type ReplyHandler interface {
	HandleReply(ctx context.Context, msg Message) error
}

type ConverterResolver interface {
	Encode(payload any, contentType string, accept []string) (body []byte, mediaType string, err error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if value := strings.TrimSpace(part); value != "" {
			out = append(out, value)
		}
	}
	return out
}
