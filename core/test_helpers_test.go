package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) count(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, counter := range m.counters {
		if counter.name == name {
			total += counter.value
		}
	}
	return total
}

// wakeSignal is a non-blocking resume handle backed by a one slot channel.
type wakeSignal struct {
	ch chan struct{}
}

func newWakeSignal() *wakeSignal {
	return &wakeSignal{ch: make(chan struct{}, 1)}
}

func (w *wakeSignal) Resume() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

func (w *wakeSignal) wait(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-w.ch:
	case <-time.After(timeout):
		t.Fatalf("expected resume within %s", timeout)
	}
}

type writtenResponse struct {
	status      int
	contentType string
	body        []byte
}

type stubExchange struct {
	request      InboundRequest
	wake         *wakeSignal
	continuation *Continuation
	writeErr     error

	mu      sync.Mutex
	written []writtenResponse
}

func newStubExchange(req InboundRequest) *stubExchange {
	return &stubExchange{request: req, wake: newWakeSignal()}
}

func (e *stubExchange) Continuation() *Continuation     { return e.continuation }
func (e *stubExchange) SetContinuation(c *Continuation) { e.continuation = c }
func (e *stubExchange) Request() InboundRequest         { return e.request }
func (e *stubExchange) ResumeHandle() ResumeHandle      { return e.wake }

func (e *stubExchange) WriteStatus(_ context.Context, status int) error {
	return e.record(writtenResponse{status: status})
}

func (e *stubExchange) WriteBody(_ context.Context, status int, contentType string, body []byte) error {
	return e.record(writtenResponse{status: status, contentType: contentType, body: append([]byte(nil), body...)})
}

func (e *stubExchange) record(resp writtenResponse) error {
	if e.writeErr != nil {
		return e.writeErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.written = append(e.written, resp)
	return nil
}

func (e *stubExchange) responses() []writtenResponse {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]writtenResponse(nil), e.written...)
}

type capturePublisher struct {
	mu        sync.Mutex
	published []Message
	err       error
	onPublish func(Message)
}

func (p *capturePublisher) Publish(_ context.Context, msg Message) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	p.published = append(p.published, msg)
	hook := p.onPublish
	p.mu.Unlock()
	if hook != nil {
		hook(msg)
	}
	return nil
}

func (p *capturePublisher) last() (Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.published) == 0 {
		return Message{}, false
	}
	return p.published[len(p.published)-1], true
}

var errNoConverter = errors.New("no suitable converter")

// jsonConverters encodes strings as text/plain and everything else as JSON,
// refusing to write when the accept list excludes the chosen media type.
type jsonConverters struct{}

func (jsonConverters) Encode(payload any, contentType string, accept []string) ([]byte, string, error) {
	mediaType := "application/json"
	if text, ok := payload.(string); ok && contentType == "" {
		mediaType = "text/plain"
		if !acceptsMedia(accept, mediaType) {
			return nil, "", fmt.Errorf("%w for %T", errNoConverter, payload)
		}
		return []byte(text), mediaType, nil
	}
	if contentType != "" {
		mediaType = contentType
	}
	if !acceptsMedia(accept, mediaType) {
		return nil, "", fmt.Errorf("%w for %T", errNoConverter, payload)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}
	return body, mediaType, nil
}

func acceptsMedia(accept []string, mediaType string) bool {
	if len(accept) == 0 {
		return true
	}
	for _, candidate := range accept {
		if candidate == MediaTypeAll || candidate == mediaType {
			return true
		}
	}
	return false
}

func newTestGateway(t *testing.T, cfg Config, publisher RequestPublisher, opts ...Option) *Gateway {
	t.Helper()
	all := append([]Option{
		WithPublisher(publisher),
		WithConverters(jsonConverters{}),
		WithLogger(stubLogger{}),
	}, opts...)
	gw, err := NewGateway(cfg, all...)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gw
}
