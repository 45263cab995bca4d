package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-gateway/core"
)

type ReplyReceiver interface {
	HandleReply(ctx context.Context, msg core.Message) error
}

type DeliverReplyCommand struct {
	receiver ReplyReceiver
}

func NewDeliverReplyCommand(receiver ReplyReceiver) *DeliverReplyCommand {
	return &DeliverReplyCommand{receiver: receiver}
}

func (c *DeliverReplyCommand) Execute(ctx context.Context, msg ReplyMessage) error {
	if c == nil || c.receiver == nil {
		return commandDependencyError("command: reply receiver is required")
	}
	return c.receiver.HandleReply(ctx, msg.Message)
}

// RequestProcessorFunc answers one request with a reply payload and optional
// reply headers such as status_code or content_type.
type RequestProcessorFunc func(ctx context.Context, request core.Message) (any, core.Headers, error)

// ReplySender puts a reply on the reply channel.
type ReplySender func(ctx context.Context, reply core.Message) error

// ProcessRequestCommand runs a processor for each request and sends its
// answer back with the request's correlation id.
type ProcessRequestCommand struct {
	process RequestProcessorFunc
	send    ReplySender
}

func NewProcessRequestCommand(process RequestProcessorFunc, send ReplySender) *ProcessRequestCommand {
	return &ProcessRequestCommand{process: process, send: send}
}

func (c *ProcessRequestCommand) Execute(ctx context.Context, msg RequestMessage) error {
	if c == nil || c.process == nil {
		return commandDependencyError("command: request processor is required")
	}
	if c.send == nil {
		return commandDependencyError("command: reply sender is required")
	}
	payload, headers, err := c.process(ctx, msg.Message)
	if err != nil {
		return commandWrapOperation(err, "command: request processor failed", msg.Message.CorrelationID())
	}
	reply := core.NewReply(msg.Message, payload, headers)
	if err := c.send(ctx, reply); err != nil {
		return err
	}
	storeResult(ctx, reply)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
