package query

import (
	"strings"

	"github.com/goliatone/go-gateway/core"
)

const (
	TypeContinuationStatus   = "gateway.query.continuation.status"
	TypePendingContinuations = "gateway.query.continuation.pending"
)

type ContinuationStatusMessage struct {
	CorrelationID string
}

func (ContinuationStatusMessage) Type() string { return TypeContinuationStatus }

func (m ContinuationStatusMessage) Validate() error {
	if strings.TrimSpace(m.CorrelationID) == "" {
		return queryValidationError(core.HeaderCorrelationID, "correlation id is required")
	}
	return nil
}

type PendingContinuationsMessage struct {
	// Limit caps the returned items; zero returns all.
	Limit int
}

func (PendingContinuationsMessage) Type() string { return TypePendingContinuations }

func (m PendingContinuationsMessage) Validate() error {
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}
