package transport

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/goliatone/go-gateway/core"
)

// httpExchange adapts one http.Request/ResponseWriter pair to core.Exchange.
// The handler goroutine parks on wake between gateway dispatches.
type httpExchange struct {
	w       http.ResponseWriter
	request core.InboundRequest
	wake    chan struct{}

	mu           sync.Mutex
	continuation *core.Continuation
	written      bool
}

func newHTTPExchange(w http.ResponseWriter, request core.InboundRequest) *httpExchange {
	return &httpExchange{w: w, request: request, wake: make(chan struct{}, 1)}
}

func (e *httpExchange) Continuation() *core.Continuation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.continuation
}

func (e *httpExchange) SetContinuation(c *core.Continuation) {
	e.mu.Lock()
	e.continuation = c
	e.mu.Unlock()
}

func (e *httpExchange) Request() core.InboundRequest {
	return e.request
}

func (e *httpExchange) ResumeHandle() core.ResumeHandle {
	return core.ResumeFunc(e.Resume)
}

// Resume never blocks; one pending wake is enough to re-dispatch.
func (e *httpExchange) Resume() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *httpExchange) WriteStatus(_ context.Context, status int) error {
	if !e.markWritten() {
		return nil
	}
	e.w.WriteHeader(status)
	return nil
}

func (e *httpExchange) WriteBody(_ context.Context, status int, contentType string, body []byte) error {
	if !e.markWritten() {
		return nil
	}
	header := e.w.Header()
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	header.Set("Content-Length", strconv.Itoa(len(body)))
	e.w.WriteHeader(status)
	_, err := e.w.Write(body)
	return err
}

func (e *httpExchange) markWritten() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.written {
		return false
	}
	e.written = true
	return true
}

func (e *httpExchange) isWritten() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.written
}

var _ core.Exchange = (*httpExchange)(nil)
