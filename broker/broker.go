package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/logging"
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// DefaultTimeout bounds RouteAndWait calls that pass a zero timeout.
	DefaultTimeout time.Duration
	// Logger receives routing diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
	// Notifier receives session.error_handled events for failed deliveries.
	Notifier core.Notifier
}

// Stats is a snapshot of the broker's delivery counters.
type Stats struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	TimedOut  int64 `json:"timed_out"`
}

// Broker routes messages to exactly one capability-matched agent. It holds
// no message state of its own; durable queuing is an external collaborator's
// concern.
type Broker struct {
	registry *Registry

	defaultTimeout time.Duration
	logger         logging.Logger
	notifier       core.Notifier

	// cursor tracks the round-robin position per capability-set key so that
	// repeated routes with the same requirements rotate over the id-sorted
	// candidate list.
	mu     sync.Mutex
	cursor map[string]int

	delivered atomic.Int64
	failed    atomic.Int64
	timedOut  atomic.Int64
}

// New constructs a Broker over the given registry with optional overrides.
func New(registry *Registry, optFns ...func(o *Options)) *Broker {
	opts := Options{
		DefaultTimeout: 30 * time.Second,
		Logger:         logging.NoOpLogger{},
		Notifier:       core.NoopNotifier{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Broker{
		registry:       registry,
		defaultTimeout: opts.DefaultTimeout,
		logger:         opts.Logger,
		notifier:       opts.Notifier,
		cursor:         make(map[string]int),
	}
}

// Route delivers the message to a capable agent without waiting for the
// reply. Selection errors (no capable agent) surface synchronously; delivery
// errors are logged and counted but not returned.
func (b *Broker) Route(ctx context.Context, msg core.Message) error {
	target, err := b.selectAgent(msg)
	if err != nil {
		return err
	}

	go func() {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.defaultTimeout)
		defer cancel()

		if _, err := b.deliver(callCtx, target, msg); err != nil {
			b.failed.Add(1)
			b.logger.Warn("fire-and-forget delivery failed", "agent_id", target.ID(), "message_id", msg.ID(), "error", err)
			b.notifier.Notify(core.NewLifecycleEvent(core.EventErrorHandled, msg.Sender(), map[string]any{
				"message_id": msg.ID(),
				"agent":      core.AgentInfo{ID: target.ID(), Capabilities: target.Capabilities()},
				"error":      err.Error(),
			}))
			return
		}
		b.delivered.Add(1)
	}()

	return nil
}

// RouteAndWait delivers the message to a capable agent and blocks until the
// agent replies, the timeout elapses, or ctx is cancelled. A zero timeout
// falls back to the broker default. The call returns within timeout plus
// scheduling slack for any unreachable agent; on expiry the error is a
// *core.TimeoutError, never a hang.
func (b *Broker) RouteAndWait(ctx context.Context, msg core.Message, timeout time.Duration) (core.Reply, error) {
	target, err := b.selectAgent(msg)
	if err != nil {
		return core.Reply{}, err
	}

	if timeout <= 0 {
		timeout = b.defaultTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		reply core.Reply
		err   error
	}
	resCh := make(chan result, 1)

	start := time.Now()

	go func() {
		reply, err := b.deliver(callCtx, target, msg)
		resCh <- result{reply: reply, err: err}
	}()

	select {
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return core.Reply{}, ctx.Err()
		}
		b.timedOut.Add(1)
		b.logger.Warn("route timed out", "agent_id", target.ID(), "message_id", msg.ID(), "timeout", timeout)
		return core.Reply{}, &core.TimeoutError{AgentID: target.ID(), Timeout: timeout}
	case res := <-resCh:
		if res.err != nil {
			b.failed.Add(1)
			return core.Reply{}, res.err
		}
		b.delivered.Add(1)
		b.logger.Debug("route completed", "agent_id", target.ID(), "message_id", msg.ID(), "duration", time.Since(start))
		return res.reply, nil
	}
}

// Stats returns a snapshot of the delivery counters.
func (b *Broker) Stats() Stats {
	return Stats{
		Delivered: b.delivered.Load(),
		Failed:    b.failed.Load(),
		TimedOut:  b.timedOut.Load(),
	}
}

// deliver invokes the agent, converting panics into errors so a misbehaving
// agent cannot take down the owning session worker.
func (b *Broker) deliver(ctx context.Context, target core.Agent, msg core.Message) (reply core.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent %s panicked handling message %s: %v", target.ID(), msg.ID(), r)
		}
	}()

	reply, err = target.Handle(ctx, msg)
	if err != nil {
		return core.Reply{}, fmt.Errorf("agent %s failed: %w", target.ID(), err)
	}

	reply.AgentID = target.ID()
	reply.MessageID = msg.ID()
	if reply.Received.IsZero() {
		reply.Received = time.Now().UTC()
	}

	return reply, nil
}

// selectAgent resolves the target for a message: the candidate list is the
// registry's id-sorted snapshot, and a per-capability-set cursor rotates
// round-robin over it.
func (b *Broker) selectAgent(msg core.Message) (core.Agent, error) {
	required := msg.RequiredCapabilities()

	candidates := b.registry.Candidates(required)
	if len(candidates) == 0 {
		return nil, &core.NoCapableAgentError{Capabilities: required}
	}

	key := strings.Join(required, ",")

	b.mu.Lock()
	idx := b.cursor[key] % len(candidates)
	b.cursor[key] = idx + 1
	b.mu.Unlock()

	return candidates[idx], nil
}
