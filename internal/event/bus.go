package event

import (
	"cmp"
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/scanboard/internal/event/topic"
)

// job is one queued async delivery.
type job struct {
	ctx   context.Context
	sub   *Subscription
	topic topic.Topic
	event any
}

// Bus routes published events to subscriptions in priority order. Sync
// subscriptions run in the publisher's goroutine; async subscriptions run on
// a single worker so that their deliveries keep publish order.
type Bus struct {
	config busConfig

	mu      sync.RWMutex
	subs    []*Subscription
	nextSeq uint64

	// life guards running and the queue channel.
	life    sync.RWMutex
	running bool
	queue   chan job
	done    chan struct{}

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	errors    atomic.Uint64
	panics    atomic.Uint64
}

// NewBus creates a stopped bus.
func NewBus(opts ...BusOption) *Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.panicHandler == nil {
		config.panicHandler = LogPanics(config.logger)
	}
	return &Bus{config: config}
}

// Start starts the async worker.
func (b *Bus) Start() error {
	b.life.Lock()
	defer b.life.Unlock()
	if b.running {
		return ErrBusAlreadyRunning
	}
	b.queue = make(chan job, b.config.queueSize)
	b.done = make(chan struct{})
	b.running = true
	go b.work(b.queue, b.done)
	return nil
}

// Stop stops accepting events and waits for queued async deliveries, or
// until ctx is done.
func (b *Bus) Stop(ctx context.Context) error {
	b.life.Lock()
	if !b.running {
		b.life.Unlock()
		return ErrBusNotRunning
	}
	b.running = false
	close(b.queue)
	done := b.done
	b.life.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the bus accepts events.
func (b *Bus) IsRunning() bool {
	b.life.RLock()
	defer b.life.RUnlock()
	return b.running
}

// Subscribe registers handler for events whose topic matches pattern.
func (b *Bus) Subscribe(pattern topic.Topic, handler Handler, opts ...SubscriptionOption) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !pattern.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTopic, pattern)
	}

	config := SubscriptionConfig{Priority: PriorityNormal, DeliveryMode: DeliverySync}
	for _, opt := range opts {
		opt(&config)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSeq++
	sub := &Subscription{
		id:      uuid.NewString(),
		pattern: pattern,
		handler: handler,
		config:  config,
		seq:     b.nextSeq,
	}
	b.subs = append(b.subs, sub)
	slices.SortStableFunc(b.subs, func(x, y *Subscription) int {
		if c := cmp.Compare(x.config.Priority, y.config.Priority); c != 0 {
			return c
		}
		return cmp.Compare(x.seq, y.seq)
	})
	return sub, nil
}

// SubscribeFunc is Subscribe for a function handler.
func (b *Bus) SubscribeFunc(pattern topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (*Subscription, error) {
	return b.Subscribe(pattern, fn, opts...)
}

// Unsubscribe cancels and removes sub.
func (b *Bus) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return ErrSubscriptionNotFound
	}
	sub.Cancel()
	b.mu.Lock()
	defer b.mu.Unlock()
	i := slices.Index(b.subs, sub)
	if i < 0 {
		return ErrSubscriptionNotFound
	}
	b.subs = slices.Delete(b.subs, i, i+1)
	return nil
}

// Publish delivers ev to every matching subscription in priority order.
// Handler errors and panics are counted and logged, never returned.
func (b *Bus) Publish(ctx context.Context, ev any) error {
	t := topicOf(ev)
	if t == "" {
		return ErrInvalidEvent
	}

	b.life.RLock()
	if !b.running {
		b.life.RUnlock()
		return ErrBusNotRunning
	}
	b.published.Add(1)

	var dropErr error
	var direct []*Subscription
	for _, sub := range b.matching(t, ev) {
		if sub.config.DeliveryMode != DeliveryAsync {
			direct = append(direct, sub)
			continue
		}
		select {
		case b.queue <- job{ctx: context.WithoutCancel(ctx), sub: sub, topic: t, event: ev}:
		default:
			b.dropped.Add(1)
			dropErr = ErrQueueFull
		}
	}
	b.life.RUnlock()

	// Sync handlers run outside the lifecycle lock so they may publish.
	for _, sub := range direct {
		b.deliver(ctx, sub, t, ev)
	}
	return dropErr
}

// matching returns the subscriptions for t, pruning cancelled ones.
func (b *Bus) matching(t topic.Topic, ev any) []*Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = slices.DeleteFunc(b.subs, func(s *Subscription) bool {
		return s.State() == SubscriptionStateCancelled
	})
	var out []*Subscription
	for _, s := range b.subs {
		if s.accepts(t, ev) {
			out = append(out, s)
		}
	}
	return out
}

// deliver runs one handler with panic recovery.
func (b *Bus) deliver(ctx context.Context, sub *Subscription, t topic.Topic, ev any) {
	if sub.State() == SubscriptionStateCancelled {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			b.config.panicHandler(ev, &PanicError{
				SubscriptionID: sub.id,
				Topic:          t.String(),
				Value:          r,
				Stack:          string(debug.Stack()),
			})
		}
	}()

	if err := sub.handler.Handle(ctx, ev); err != nil {
		b.errors.Add(1)
		b.config.logger.Warn("event handler failed", "topic", t, "subscription", sub.id, "err", err)
		return
	}
	b.delivered.Add(1)
}

func (b *Bus) work(queue <-chan job, done chan<- struct{}) {
	defer close(done)
	for j := range queue {
		b.deliver(j.ctx, j.sub, j.topic, j.event)
	}
}

// Stats returns current bus statistics.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	subs := 0
	for _, s := range b.subs {
		if s.State() != SubscriptionStateCancelled {
			subs++
		}
	}
	b.mu.RUnlock()

	b.life.RLock()
	depth := 0
	if b.running {
		depth = len(b.queue)
	}
	b.life.RUnlock()

	return Stats{
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Dropped:     b.dropped.Load(),
		Errors:      b.errors.Load(),
		Panics:      b.panics.Load(),
		Subscribers: subs,
		QueueDepth:  depth,
	}
}
