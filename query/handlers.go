package query

import (
	"context"
	"strconv"
	"time"

	"github.com/goliatone/go-gateway/core"
)

type ContinuationReader interface {
	LookupString(raw string) (*core.Continuation, bool)
	Snapshot() []*core.Continuation
}

type ContinuationStatus struct {
	CorrelationID string    `json:"correlation_id"`
	Found         bool      `json:"found"`
	State         string    `json:"state,omitempty"`
	Outcome       string    `json:"outcome,omitempty"`
	Expired       bool      `json:"expired"`
	Deadline      time.Time `json:"deadline,omitempty"`
}

type PendingContinuations struct {
	Total int                  `json:"total"`
	Items []ContinuationStatus `json:"items"`
}

type ContinuationStatusQuery struct {
	reader ContinuationReader
}

func NewContinuationStatusQuery(reader ContinuationReader) *ContinuationStatusQuery {
	return &ContinuationStatusQuery{reader: reader}
}

// Query reports an unknown correlation id as Found=false, not as an error.
func (q *ContinuationStatusQuery) Query(_ context.Context, msg ContinuationStatusMessage) (ContinuationStatus, error) {
	if q == nil || q.reader == nil {
		return ContinuationStatus{}, queryDependencyError("query: continuation reader is required")
	}
	continuation, ok := q.reader.LookupString(msg.CorrelationID)
	if !ok {
		return ContinuationStatus{CorrelationID: msg.CorrelationID}, nil
	}
	return describe(continuation), nil
}

type PendingContinuationsQuery struct {
	reader ContinuationReader
}

func NewPendingContinuationsQuery(reader ContinuationReader) *PendingContinuationsQuery {
	return &PendingContinuationsQuery{reader: reader}
}

func (q *PendingContinuationsQuery) Query(_ context.Context, msg PendingContinuationsMessage) (PendingContinuations, error) {
	if q == nil || q.reader == nil {
		return PendingContinuations{}, queryDependencyError("query: continuation reader is required")
	}
	live := q.reader.Snapshot()
	out := PendingContinuations{Total: len(live), Items: make([]ContinuationStatus, 0, len(live))}
	for _, continuation := range live {
		if msg.Limit > 0 && len(out.Items) >= msg.Limit {
			break
		}
		out.Items = append(out.Items, describe(continuation))
	}
	return out, nil
}

func describe(continuation *core.Continuation) ContinuationStatus {
	return ContinuationStatus{
		CorrelationID: strconv.FormatInt(continuation.ID(), 10),
		Found:         true,
		State:         continuation.State().String(),
		Outcome:       continuation.Outcome().String(),
		Expired:       continuation.IsExpired(),
		Deadline:      continuation.Deadline(),
	}
}
