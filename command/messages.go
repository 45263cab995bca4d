package command

import (
	"strings"

	"github.com/goliatone/go-gateway/core"
)

const (
	TypeRequest      = "gateway.command.request"
	TypeDeliverReply = "gateway.command.reply.deliver"
)

// RequestMessage carries a gateway request on the outbound channel.
type RequestMessage struct {
	Message core.Message
}

func (RequestMessage) Type() string { return TypeRequest }

func (m RequestMessage) Validate() error {
	if strings.TrimSpace(m.Message.CorrelationID()) == "" {
		return commandValidationError(core.HeaderCorrelationID, "correlation id is required")
	}
	return nil
}

// ReplyMessage carries a reply back to the gateway. Correlation is not
// validated here: unknown or missing ids are dropped by the gateway.
type ReplyMessage struct {
	Message core.Message
}

func (ReplyMessage) Type() string { return TypeDeliverReply }
