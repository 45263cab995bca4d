package query

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/goliatone/go-gateway/core"
)

func TestContinuationStatusQuery_ReportsLiveAndUnknown(t *testing.T) {
	registry := core.NewContinuationRegistry()
	continuation := registry.Create(time.Minute)
	id := strconv.FormatInt(continuation.ID(), 10)

	qry := NewContinuationStatusQuery(registry)
	status, err := qry.Query(context.Background(), ContinuationStatusMessage{CorrelationID: id})
	if err != nil {
		t.Fatalf("query status: %v", err)
	}
	if !status.Found || status.State != "pending" || status.Expired {
		t.Fatalf("unexpected live status: %#v", status)
	}
	if status.Deadline.IsZero() {
		t.Fatalf("expected deadline in status")
	}

	status, err = qry.Query(context.Background(), ContinuationStatusMessage{CorrelationID: "999"})
	if err != nil {
		t.Fatalf("query unknown status: %v", err)
	}
	if status.Found || status.CorrelationID != "999" {
		t.Fatalf("expected unknown id to be reported absent, got %#v", status)
	}
}

func TestPendingContinuationsQuery_ListsOrderedWithLimit(t *testing.T) {
	registry := core.NewContinuationRegistry()
	for i := 0; i < 3; i++ {
		registry.Create(time.Minute)
	}

	qry := NewPendingContinuationsQuery(registry)
	result, err := qry.Query(context.Background(), PendingContinuationsMessage{Limit: 2})
	if err != nil {
		t.Fatalf("query pending: %v", err)
	}
	if result.Total != 3 || len(result.Items) != 2 {
		t.Fatalf("expected total 3 with 2 items, got %d/%d", result.Total, len(result.Items))
	}
	if result.Items[0].CorrelationID != "1" || result.Items[1].CorrelationID != "2" {
		t.Fatalf("expected id order, got %#v", result.Items)
	}

	result, err = qry.Query(context.Background(), PendingContinuationsMessage{})
	if err != nil {
		t.Fatalf("query pending: %v", err)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected all items without limit, got %d", len(result.Items))
	}
}
