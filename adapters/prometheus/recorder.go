package prometheus

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-gateway/core"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultNamespace = "gateway"

// Recorder is a core.MetricsRecorder backed by Prometheus vectors. A vector
// is registered on first use of a metric name; its label set is fixed to the
// tag keys seen on that first observation. Later missing tags record as
// empty labels and unknown tags are ignored.
type Recorder struct {
	registerer prometheus.Registerer
	namespace  string
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*labeledCounter
	histograms map[string]*labeledHistogram
	failures   []error
}

type labeledCounter struct {
	vec    *prometheus.CounterVec
	labels []string
}

type labeledHistogram struct {
	vec    *prometheus.HistogramVec
	labels []string
}

type Option func(*Recorder)

func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		r.namespace = sanitize(namespace)
	}
}

func WithBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

func NewRecorder(registerer prometheus.Registerer, opts ...Option) *Recorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		registerer: registerer,
		buckets:    prometheus.ExponentialBuckets(1, 2, 16),
		counters:   map[string]*labeledCounter{},
		histograms: map[string]*labeledHistogram{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value <= 0 {
		return
	}
	counter := r.counter(name, tags)
	if counter == nil {
		return
	}
	counter.vec.WithLabelValues(labelValues(counter.labels, tags)...).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	histogram := r.histogram(name, tags)
	if histogram == nil {
		return
	}
	histogram.vec.WithLabelValues(labelValues(histogram.labels, tags)...).Observe(value)
}

// Failures returns registration errors; metrics that failed to register are
// dropped.
func (r *Recorder) Failures() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.failures...)
}

func (r *Recorder) counter(name string, tags map[string]string) *labeledCounter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.counters[name]; ok {
		return existing
	}
	labels := labelNames(tags)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      sanitize(name),
		Help:      fmt.Sprintf("Gateway counter %s.", name),
	}, labels)
	if err := r.registerer.Register(vec); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			r.failures = append(r.failures, err)
			return nil
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			r.failures = append(r.failures, err)
			return nil
		}
		vec = existing
	}
	out := &labeledCounter{vec: vec, labels: labels}
	r.counters[name] = out
	return out
}

func (r *Recorder) histogram(name string, tags map[string]string) *labeledHistogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.histograms[name]; ok {
		return existing
	}
	labels := labelNames(tags)
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      sanitize(name),
		Help:      fmt.Sprintf("Gateway histogram %s.", name),
		Buckets:   r.buckets,
	}, labels)
	if err := r.registerer.Register(vec); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			r.failures = append(r.failures, err)
			return nil
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			r.failures = append(r.failures, err)
			return nil
		}
		vec = existing
	}
	out := &labeledHistogram{vec: vec, labels: labels}
	r.histograms[name] = out
	return out
}

// RegisterPendingGauge exposes the number of live continuations.
func RegisterPendingGauge(registerer prometheus.Registerer, registry *core.ContinuationRegistry) error {
	if registry == nil {
		return fmt.Errorf("prometheus: continuation registry is required")
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return registerer.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: DefaultNamespace,
		Name:      "continuations_pending",
		Help:      "Continuations waiting for a reply or deadline.",
	}, func() float64 {
		return float64(registry.Len())
	}))
}

func labelNames(tags map[string]string) []string {
	out := make([]string, 0, len(tags))
	for key := range tags {
		if key = sanitize(key); key != "" {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

func labelValues(labels []string, tags map[string]string) []string {
	normalized := make(map[string]string, len(tags))
	for key, value := range tags {
		normalized[sanitize(key)] = value
	}
	out := make([]string, len(labels))
	for i, label := range labels {
		out[i] = normalized[label]
	}
	return out
}

// sanitize maps dotted metric names onto the Prometheus name charset.
func sanitize(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

var _ core.MetricsRecorder = (*Recorder)(nil)
