package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-gateway/core"
	glog "github.com/goliatone/go-logger/glog"
	"gopkg.in/tomb.v2"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const (
	JobIDRequest = "gateway.request"
	JobIDReply   = "gateway.reply"
)

const (
	paramPayload   = "payload"
	paramHeaders   = "headers"
	paramMessageID = "message_id"
)

const defaultDequeueBackoff = 100 * time.Millisecond

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ToExecutionMessage maps a gateway message onto a go-job execution message.
// The message id doubles as the idempotency key so redelivered requests can
// be deduplicated by the queue.
func ToExecutionMessage(jobID string, msg core.Message) *job.ExecutionMessage {
	jobID = strings.TrimSpace(jobID)
	return &job.ExecutionMessage{
		JobID:      jobID,
		ScriptPath: jobID,
		Parameters: map[string]any{
			paramPayload:   msg.Payload,
			paramHeaders:   map[string]any(msg.Headers.Clone()),
			paramMessageID: msg.ID,
		},
		IdempotencyKey: strings.TrimSpace(msg.ID),
	}
}

// FromExecutionMessage maps a go-job execution message back into a gateway
// message.
func FromExecutionMessage(msg *job.ExecutionMessage) (core.Message, error) {
	if msg == nil {
		return core.Message{}, fmt.Errorf("gojob: execution message is required")
	}
	out := core.Message{
		Payload: msg.Parameters[paramPayload],
		Headers: core.Headers{},
	}
	switch headers := msg.Parameters[paramHeaders].(type) {
	case nil:
	case core.Headers:
		out.Headers = headers.Clone()
	case map[string]any:
		out.Headers = core.Headers(headers).Clone()
	default:
		return core.Message{}, fmt.Errorf("gojob: unsupported headers parameter %T", headers)
	}
	if id, ok := msg.Parameters[paramMessageID].(string); ok {
		out.ID = id
	}
	if out.ID == "" {
		out.ID = strings.TrimSpace(msg.IdempotencyKey)
	}
	return out, nil
}

// Publisher is a core.RequestPublisher that enqueues requests for go-job
// workers.
type Publisher struct {
	enqueuer queue.Enqueuer
	jobID    string
}

func NewPublisher(enqueuer queue.Enqueuer) *Publisher {
	return &Publisher{enqueuer: enqueuer, jobID: JobIDRequest}
}

func (p *Publisher) WithJobID(jobID string) *Publisher {
	if p == nil {
		return nil
	}
	if jobID = strings.TrimSpace(jobID); jobID != "" {
		p.jobID = jobID
	}
	return p
}

func (p *Publisher) Publish(ctx context.Context, msg core.Message) error {
	if p == nil || p.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	return p.enqueuer.Enqueue(ctx, ToExecutionMessage(p.jobID, msg))
}

// ReplySender enqueues replies on the reply queue drained by a ReplyPump.
func ReplySender(enqueuer queue.Enqueuer) func(ctx context.Context, reply core.Message) error {
	return func(ctx context.Context, reply core.Message) error {
		if enqueuer == nil {
			return fmt.Errorf("gojob: enqueuer is not configured")
		}
		return enqueuer.Enqueue(ctx, ToExecutionMessage(JobIDReply, reply))
	}
}

type ReplyReceiver interface {
	HandleReply(ctx context.Context, msg core.Message) error
}

// ReplyPump drains a reply queue into the gateway. Deliveries are acked once
// the gateway accepted them; receiver failures are nacked under the retry
// policy and undecodable deliveries go to the dead letter queue.
type ReplyPump struct {
	dequeuer queue.Dequeuer
	receiver ReplyReceiver
	policy   RetryPolicy
	logger   core.Logger
	backoff  time.Duration

	mu       sync.Mutex
	tomb     *tomb.Tomb
	attempts map[string]int
}

type ReplyPumpOption func(*ReplyPump)

func WithRetryPolicy(policy RetryPolicy) ReplyPumpOption {
	return func(p *ReplyPump) {
		p.policy = policy
	}
}

func WithPumpLogger(logger core.Logger) ReplyPumpOption {
	return func(p *ReplyPump) {
		p.logger = glog.Ensure(logger)
	}
}

func WithDequeueBackoff(backoff time.Duration) ReplyPumpOption {
	return func(p *ReplyPump) {
		if backoff > 0 {
			p.backoff = backoff
		}
	}
}

func NewReplyPump(dequeuer queue.Dequeuer, receiver ReplyReceiver, opts ...ReplyPumpOption) *ReplyPump {
	pump := &ReplyPump{
		dequeuer: dequeuer,
		receiver: receiver,
		logger:   glog.Nop(),
		backoff:  defaultDequeueBackoff,
		attempts: map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(pump)
		}
	}
	return pump
}

func (p *ReplyPump) Start(ctx context.Context) error {
	if p == nil || p.dequeuer == nil || p.receiver == nil {
		return fmt.Errorf("gojob: reply pump requires a dequeuer and a receiver")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tomb != nil && p.tomb.Alive() {
		return fmt.Errorf("gojob: reply pump already running")
	}
	t, runCtx := tomb.WithContext(ctx)
	p.tomb = t
	t.Go(func() error {
		return p.run(runCtx, t)
	})
	return nil
}

// Stop halts the pump and waits for the in-flight delivery to finish.
func (p *ReplyPump) Stop() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	t := p.tomb
	p.mu.Unlock()
	if t == nil {
		return nil
	}
	t.Kill(nil)
	return t.Wait()
}

func (p *ReplyPump) run(ctx context.Context, t *tomb.Tomb) error {
	for {
		delivery, err := p.dequeuer.Dequeue(ctx)
		if err != nil {
			select {
			case <-t.Dying():
				return nil
			default:
			}
			p.logger.WithContext(ctx).Warn("reply dequeue failed", "error", err.Error())
			select {
			case <-t.Dying():
				return nil
			case <-time.After(p.backoff):
			}
			continue
		}
		if delivery == nil {
			continue
		}
		p.handle(ctx, delivery)
	}
}

func (p *ReplyPump) handle(ctx context.Context, delivery queue.Delivery) {
	msg, err := FromExecutionMessage(delivery.Message())
	if err != nil {
		p.logger.WithContext(ctx).Error("reply delivery rejected", "error", err.Error())
		p.nack(ctx, delivery, "", queue.NackOptions{DeadLetter: true, Reason: err.Error()})
		return
	}
	if err := p.receiver.HandleReply(ctx, msg); err != nil {
		p.logger.WithContext(ctx).Warn("reply handling failed",
			core.HeaderCorrelationID, msg.CorrelationID(),
			"error", err.Error(),
		)
		p.nack(ctx, delivery, msg.ID, queue.NackOptions{Requeue: true, Reason: err.Error()})
		return
	}
	p.forget(msg.ID)
	if err := delivery.Ack(ctx); err != nil {
		p.logger.WithContext(ctx).Warn("reply ack failed", "error", err.Error())
	}
}

func (p *ReplyPump) nack(ctx context.Context, delivery queue.Delivery, key string, opts queue.NackOptions) {
	attempt := 0
	if key != "" {
		p.mu.Lock()
		p.attempts[key]++
		attempt = p.attempts[key]
		p.mu.Unlock()
	}
	normalized := p.policy.NormalizeAttempt(opts, attempt)
	if !normalized.Requeue {
		p.forget(key)
	}
	if err := delivery.Nack(ctx, normalized); err != nil {
		p.logger.WithContext(ctx).Warn("reply nack failed", "error", err.Error())
	}
}

func (p *ReplyPump) forget(key string) {
	if key == "" {
		return
	}
	p.mu.Lock()
	delete(p.attempts, key)
	p.mu.Unlock()
}

// WorkerEvent is a go-job worker event seen through gateway messages.
type WorkerEvent struct {
	JobID     string
	Message   core.Message
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type WorkerHook interface {
	OnStart(ctx context.Context, event WorkerEvent)
	OnSuccess(ctx context.Context, event WorkerEvent)
	OnFailure(ctx context.Context, event WorkerEvent)
	OnRetry(ctx context.Context, event WorkerEvent)
}

// WorkerHookAdapter lets gateway-side hooks observe go-job workers that
// process requests.
type WorkerHookAdapter struct {
	hook WorkerHook
}

func NewWorkerHookAdapter(hook WorkerHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnStart(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnSuccess(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnFailure(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnRetry(ctx, mapWorkerEvent(event))
}

func mapWorkerEvent(event worker.Event) WorkerEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	out := WorkerEvent{
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
	if message != nil {
		out.JobID = message.JobID
		if mapped, err := FromExecutionMessage(message); err == nil {
			out.Message = mapped
		}
	}
	return out
}

var (
	_ core.RequestPublisher = (*Publisher)(nil)
	_ ReplyReceiver         = (*core.Gateway)(nil)
	_ worker.Hook           = (*WorkerHookAdapter)(nil)
)
