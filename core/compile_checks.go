package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ ReplyHandler     = (*Gateway)(nil)
	_ ResumeHandle     = ResumeFunc(nil)
	_ RequestPublisher = RequestPublisherFunc(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
