package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ReplyMessage]   = (*DeliverReplyCommand)(nil)
	_ gocmd.Commander[RequestMessage] = (*ProcessRequestCommand)(nil)
)
