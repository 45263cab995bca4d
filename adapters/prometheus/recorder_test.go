package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-gateway/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCountersUseFirstLabelSet(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewRecorder(registry)
	ctx := context.Background()

	recorder.IncCounter(ctx, core.MetricReplyStale, 1, nil)
	recorder.IncCounter(ctx, core.MetricReplyStale, 2, nil)
	recorder.IncCounter(ctx, "gateway.handle_request.total", 1, map[string]string{"operation": "handle_request", "status": "success"})
	recorder.IncCounter(ctx, "gateway.handle_request.total", 1, map[string]string{"status": "error", "extra": "ignored"})

	stale := recorder.counters[core.MetricReplyStale]
	if got := testutil.ToFloat64(stale.vec.WithLabelValues()); got != 3 {
		t.Fatalf("expected stale counter 3, got %v", got)
	}
	total := recorder.counters["gateway.handle_request.total"]
	if got := testutil.ToFloat64(total.vec.WithLabelValues("handle_request", "success")); got != 1 {
		t.Fatalf("expected success counter 1, got %v", got)
	}
	if got := testutil.ToFloat64(total.vec.WithLabelValues("", "error")); got != 1 {
		t.Fatalf("expected missing label recorded empty, got %v", got)
	}
	if len(recorder.Failures()) != 0 {
		t.Fatalf("unexpected registration failures: %v", recorder.Failures())
	}
}

func TestRecorderHistogramsAndSharedRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	ctx := context.Background()

	first := NewRecorder(registry, WithNamespace("edge"), WithBuckets([]float64{1, 10}))
	second := NewRecorder(registry, WithNamespace("edge"))
	first.ObserveHistogram(ctx, "gateway.handle_request.duration_ms", 3, map[string]string{"status": "success"})
	second.ObserveHistogram(ctx, "gateway.handle_request.duration_ms", 12, map[string]string{"status": "success"})

	if first.histograms["gateway.handle_request.duration_ms"].vec != second.histograms["gateway.handle_request.duration_ms"].vec {
		t.Fatalf("expected second recorder to reuse the registered vector")
	}
	if got := testutil.CollectAndCount(registry, "edge_gateway_handle_request_duration_ms"); got != 1 {
		t.Fatalf("expected one histogram series, got %d", got)
	}
}

func TestRecorderObservesGateway(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewRecorder(registry)
	gw, err := core.NewGateway(core.Config{Timeout: time.Second},
		core.WithPublisher(core.RequestPublisherFunc(func(context.Context, core.Message) error { return nil })),
		core.WithConverters(nopConverters{}),
		core.WithMetricsRecorder(recorder),
	)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	if err := gw.HandleReply(context.Background(), core.NewMessage("x", nil)); err != nil {
		t.Fatalf("handle reply: %v", err)
	}
	if got := testutil.ToFloat64(recorder.counters[core.MetricReplyStale].vec.WithLabelValues()); got != 1 {
		t.Fatalf("expected stale reply counted, got %v", got)
	}
}

func TestPendingGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	continuations := core.NewContinuationRegistry()
	if err := RegisterPendingGauge(registry, continuations); err != nil {
		t.Fatalf("register gauge: %v", err)
	}
	continuations.Create(time.Minute)
	continuations.Create(time.Minute)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 1 || families[0].GetMetric()[0].GetGauge().GetValue() != 2 {
		t.Fatalf("expected pending gauge 2, got %v", families)
	}
	if err := RegisterPendingGauge(registry, nil); err == nil {
		t.Fatalf("expected nil registry to fail")
	}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"gateway.reply.stale": "gateway_reply_stale",
		"9lives":              "_9lives",
		" a-b ":               "a_b",
	}
	for in, want := range cases {
		if got := sanitize(in); got != want {
			t.Fatalf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

type nopConverters struct{}

func (nopConverters) Encode(any, string, []string) ([]byte, string, error) {
	return nil, "", nil
}
