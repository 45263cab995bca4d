package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-gateway/core"
)

var (
	_ gocmd.Querier[ContinuationStatusMessage, ContinuationStatus]     = (*ContinuationStatusQuery)(nil)
	_ gocmd.Querier[PendingContinuationsMessage, PendingContinuations] = (*PendingContinuationsQuery)(nil)
	_ ContinuationReader                                               = (*core.ContinuationRegistry)(nil)
)
