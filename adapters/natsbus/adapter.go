package natsbus

import (
	"context"
	"fmt"
	"strings"

	gatewaycommand "github.com/goliatone/go-gateway/command"
	"github.com/goliatone/go-gateway/core"
	glog "github.com/goliatone/go-logger/glog"
	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nuid"
)

const (
	DefaultRequestSubject = "gateway.requests"
	ReplySubjectPrefix    = "gateway.replies."
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Conn is the subset of *nats.Conn the bus uses.
type Conn interface {
	Publish(subject string, data []byte) error
	PublishRequest(subject, reply string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// PayloadEncodingBytes marks an envelope whose payload was a []byte and
// travels as base64.
const PayloadEncodingBytes = "bytes"

type envelope struct {
	ID              string         `json:"id"`
	Headers         map[string]any `json:"headers,omitempty"`
	PayloadEncoding string         `json:"payload_encoding,omitempty"`
	Payload         any            `json:"payload,omitempty"`
}

type rawEnvelope struct {
	ID              string              `json:"id"`
	Headers         map[string]any      `json:"headers,omitempty"`
	PayloadEncoding string              `json:"payload_encoding,omitempty"`
	Payload         jsoniter.RawMessage `json:"payload,omitempty"`
}

// Encode renders a gateway message as a JSON envelope.
func Encode(msg core.Message) ([]byte, error) {
	env := envelope{ID: msg.ID, Headers: msg.Headers, Payload: msg.Payload}
	if _, ok := msg.Payload.([]byte); ok {
		env.PayloadEncoding = PayloadEncodingBytes
	}
	return json.Marshal(env)
}

// Decode parses a JSON envelope. Byte payloads come back as []byte, anything
// else as generic JSON values.
func Decode(data []byte) (core.Message, error) {
	var env rawEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return core.Message{}, fmt.Errorf("natsbus: decode envelope: %w", err)
	}
	msg := core.Message{ID: env.ID, Headers: core.Headers(env.Headers).Clone()}
	switch env.PayloadEncoding {
	case "":
		if len(env.Payload) == 0 {
			return msg, nil
		}
		var payload any
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return core.Message{}, fmt.Errorf("natsbus: decode payload: %w", err)
		}
		msg.Payload = payload
	case PayloadEncodingBytes:
		payload := []byte{}
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				return core.Message{}, fmt.Errorf("natsbus: decode byte payload: %w", err)
			}
		}
		msg.Payload = payload
	default:
		return core.Message{}, fmt.Errorf("natsbus: unknown payload encoding %q", env.PayloadEncoding)
	}
	return msg, nil
}

type Option func(*Bus)

func WithRequestSubject(subject string) Option {
	return func(b *Bus) {
		if subject = strings.TrimSpace(subject); subject != "" {
			b.requestSubject = subject
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(b *Bus) {
		b.logger = glog.Ensure(logger)
	}
}

// Bus carries gateway requests over NATS. Every Bus owns a unique reply
// subject so replies return to the node holding the continuation.
type Bus struct {
	conn           Conn
	requestSubject string
	replySubject   string
	logger         core.Logger
}

func New(conn Conn, opts ...Option) *Bus {
	bus := &Bus{
		conn:           conn,
		requestSubject: DefaultRequestSubject,
		replySubject:   ReplySubjectPrefix + nuid.Next(),
		logger:         glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(bus)
		}
	}
	return bus
}

func (b *Bus) RequestSubject() string { return b.requestSubject }

func (b *Bus) ReplySubject() string { return b.replySubject }

func (b *Bus) Publish(_ context.Context, msg core.Message) error {
	if b == nil || b.conn == nil {
		return fmt.Errorf("natsbus: connection is not configured")
	}
	data, err := Encode(msg)
	if err != nil {
		return fmt.Errorf("natsbus: encode request: %w", err)
	}
	return b.conn.PublishRequest(b.requestSubject, b.replySubject, data)
}

// SubscribeReplies feeds messages arriving on the reply subject into
// receiver.
func (b *Bus) SubscribeReplies(receiver gatewaycommand.ReplyReceiver) (*nats.Subscription, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("natsbus: connection is not configured")
	}
	if receiver == nil {
		return nil, fmt.Errorf("natsbus: reply receiver is required")
	}
	return b.conn.Subscribe(b.replySubject, func(m *nats.Msg) {
		ctx := context.Background()
		msg, err := Decode(m.Data)
		if err != nil {
			b.logger.Warn("reply dropped", "subject", m.Subject, "error", err.Error())
			return
		}
		if err := receiver.HandleReply(ctx, msg); err != nil {
			b.logger.Warn("reply handling failed", core.HeaderCorrelationID, msg.CorrelationID(), "error", err.Error())
		}
	})
}

// Serve answers requests on the request subject with process and publishes
// each answer to the requester's reply subject.
func (b *Bus) Serve(process gatewaycommand.RequestProcessorFunc) (*nats.Subscription, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("natsbus: connection is not configured")
	}
	if process == nil {
		return nil, fmt.Errorf("natsbus: request processor is required")
	}
	return b.conn.Subscribe(b.requestSubject, func(m *nats.Msg) {
		if m.Reply == "" {
			b.logger.Warn("request without reply subject dropped", "subject", m.Subject)
			return
		}
		request, err := Decode(m.Data)
		if err != nil {
			b.logger.Warn("request dropped", "subject", m.Subject, "error", err.Error())
			return
		}
		send := func(_ context.Context, reply core.Message) error {
			data, err := Encode(reply)
			if err != nil {
				return err
			}
			return b.conn.Publish(m.Reply, data)
		}
		cmd := gatewaycommand.NewProcessRequestCommand(process, send)
		if err := cmd.Execute(context.Background(), gatewaycommand.RequestMessage{Message: request}); err != nil {
			b.logger.Error("request processing failed", core.HeaderCorrelationID, request.CorrelationID(), "error", err.Error())
		}
	})
}

var (
	_ Conn                  = (*nats.Conn)(nil)
	_ core.RequestPublisher = (*Bus)(nil)
)
