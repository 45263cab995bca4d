package gateway

import (
	"fmt"

	gatewaycommand "github.com/goliatone/go-gateway/command"
	gatewayquery "github.com/goliatone/go-gateway/query"
)

type Commands struct {
	DeliverReply   *gatewaycommand.DeliverReplyCommand
	ProcessRequest *gatewaycommand.ProcessRequestCommand
}

type Queries struct {
	ContinuationStatus   *gatewayquery.ContinuationStatusQuery
	PendingContinuations *gatewayquery.PendingContinuationsQuery
}

// Facade groups the command and query handlers bound to one gateway, ready
// to be registered on a go-command registry or dispatcher.
type Facade struct {
	gateway  *Gateway
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	process gatewaycommand.RequestProcessorFunc
	send    gatewaycommand.ReplySender
}

// WithRequestProcessor wires a ProcessRequest command for deployments that
// answer requests in process.
func WithRequestProcessor(process gatewaycommand.RequestProcessorFunc, send gatewaycommand.ReplySender) FacadeOption {
	return func(options *facadeOptions) {
		options.process = process
		options.send = send
	}
}

func NewFacade(gw *Gateway, opts ...FacadeOption) (*Facade, error) {
	if gw == nil {
		return nil, fmt.Errorf("gateway: gateway is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{gateway: gw}
	facade.commands = Commands{
		DeliverReply: gatewaycommand.NewDeliverReplyCommand(gw),
	}
	if cfg.process != nil {
		send := cfg.send
		if send == nil {
			send = gw.HandleReply
		}
		facade.commands.ProcessRequest = gatewaycommand.NewProcessRequestCommand(cfg.process, send)
	}
	facade.queries = Queries{
		ContinuationStatus:   gatewayquery.NewContinuationStatusQuery(gw.Registry()),
		PendingContinuations: gatewayquery.NewPendingContinuationsQuery(gw.Registry()),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Gateway() *Gateway {
	if f == nil {
		return nil
	}
	return f.gateway
}
