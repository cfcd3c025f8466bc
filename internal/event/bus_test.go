package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshills/scanboard/internal/event/topic"
)

func startBus(t *testing.T, opts ...BusOption) *Bus {
	t.Helper()
	b := NewBus(opts...)
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		if b.IsRunning() {
			_ = b.Stop(context.Background())
		}
	})
	return b
}

func TestBus_Lifecycle(t *testing.T) {
	b := NewBus()
	if err := b.Publish(context.Background(), NewEvent(TopicCueChanged, 1, "test")); !errors.Is(err, ErrBusNotRunning) {
		t.Errorf("Publish() before Start error = %v, want %v", err, ErrBusNotRunning)
	}
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := b.Start(); !errors.Is(err, ErrBusAlreadyRunning) {
		t.Errorf("second Start() error = %v, want %v", err, ErrBusAlreadyRunning)
	}
	if err := b.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := b.Stop(context.Background()); !errors.Is(err, ErrBusNotRunning) {
		t.Errorf("second Stop() error = %v, want %v", err, ErrBusNotRunning)
	}
}

func TestBus_PriorityOrder(t *testing.T) {
	b := startBus(t)
	var order []string
	add := func(name string, p Priority) {
		_, err := b.SubscribeFunc(TopicSelectionCommitted, func(context.Context, any) error {
			order = append(order, name)
			return nil
		}, WithPriority(p))
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
	}
	add("low", PriorityLow)
	add("critical", PriorityCritical)
	add("normal-1", PriorityNormal)
	add("normal-2", PriorityNormal)

	if err := b.Publish(context.Background(), NewEvent(TopicSelectionCommitted, "a", "test")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	want := []string{"critical", "normal-1", "normal-2", "low"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %v, want %v", i, order[i], want[i])
		}
	}
}

func TestBus_WildcardAndFilter(t *testing.T) {
	b := startBus(t)
	var got []topic.Topic
	_, _ = b.SubscribeFunc("cue.*", func(_ context.Context, ev any) error {
		got = append(got, topicOf(ev))
		return nil
	}, WithFilter(func(ev any) bool {
		e, ok := ev.(Event[int])
		return ok && e.Payload > 0
	}))

	ctx := context.Background()
	_ = b.Publish(ctx, NewEvent(TopicCueChanged, 1, "test"))
	_ = b.Publish(ctx, NewEvent(TopicCueChanged, 0, "test"))
	_ = b.Publish(ctx, NewEvent(TopicSelectionCommitted, 1, "test"))

	if len(got) != 1 || got[0] != TopicCueChanged {
		t.Errorf("delivered = %v, want [%v]", got, TopicCueChanged)
	}
}

func TestBus_TypedHandler(t *testing.T) {
	b := startBus(t)
	var payload string
	_, _ = b.Subscribe(TopicSelectionCommitted, AsHandlerFunc(func(_ context.Context, ev Event[string]) error {
		payload = ev.Payload
		return nil
	}))
	_ = b.Publish(context.Background(), NewEvent(TopicSelectionCommitted, 42, "test"))
	if payload != "" {
		t.Errorf("typed handler saw mismatched payload %q", payload)
	}
	_ = b.Publish(context.Background(), NewEvent(TopicSelectionCommitted, "yes", "test"))
	if payload != "yes" {
		t.Errorf("payload = %q, want %q", payload, "yes")
	}
}

func TestBus_PanicRecovery(t *testing.T) {
	var recovered *PanicError
	b := startBus(t, WithPanicHandler(func(_ any, err *PanicError) {
		recovered = err
	}))
	var after bool
	_, _ = b.SubscribeFunc(TopicSelectionCommitted, func(context.Context, any) error {
		panic("boom")
	}, WithPriority(PriorityCritical))
	_, _ = b.SubscribeFunc(TopicSelectionCommitted, func(context.Context, any) error {
		after = true
		return nil
	})

	if err := b.Publish(context.Background(), NewEvent(TopicSelectionCommitted, 1, "test")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if recovered == nil || !errors.Is(recovered, ErrHandlerPanic) {
		t.Fatalf("panic handler got %v, want PanicError", recovered)
	}
	if recovered.Value != "boom" {
		t.Errorf("PanicError.Value = %v, want boom", recovered.Value)
	}
	if !after {
		t.Error("handler after the panicking one was not run")
	}
	if s := b.Stats(); s.Panics != 1 || s.Delivered != 1 {
		t.Errorf("Stats() = %+v, want 1 panic and 1 delivery", s)
	}
}

func TestBus_Async(t *testing.T) {
	b := startBus(t)
	var mu sync.Mutex
	var got []int
	_, _ = b.Subscribe(TopicCueChanged, AsHandlerFunc(func(_ context.Context, ev Event[int]) error {
		mu.Lock()
		got = append(got, ev.Payload)
		mu.Unlock()
		return nil
	}), WithDeliveryMode(DeliveryAsync))

	for i := range 5 {
		_ = b.Publish(context.Background(), NewEvent(TopicCueChanged, i, "test"))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 5 {
		t.Fatalf("async deliveries = %v, want 5", got)
	}
	for i, v := range got {
		if v != i {
			t.Errorf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := startBus(t)
	var many int
	sub, _ := b.SubscribeFunc(TopicCueChanged, func(context.Context, any) error { many++; return nil })

	ctx := context.Background()
	_ = b.Publish(ctx, NewEvent(TopicCueChanged, 1, "test"))
	_ = b.Publish(ctx, NewEvent(TopicCueChanged, 2, "test"))
	if err := b.Unsubscribe(sub); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	_ = b.Publish(ctx, NewEvent(TopicCueChanged, 3, "test"))

	if many != 2 {
		t.Errorf("unsubscribed handler ran %d times, want 2", many)
	}
	if err := b.Unsubscribe(sub); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("second Unsubscribe() error = %v, want %v", err, ErrSubscriptionNotFound)
	}
	if s := b.Stats(); s.Subscribers != 0 {
		t.Errorf("Stats().Subscribers = %d, want 0", s.Subscribers)
	}
}

func TestBus_Errors(t *testing.T) {
	b := startBus(t)
	if _, err := b.Subscribe("cue..x", HandlerFunc(func(context.Context, any) error { return nil })); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(bad topic) error = %v, want %v", err, ErrInvalidTopic)
	}
	if _, err := b.Subscribe(TopicCueChanged, nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("Subscribe(nil) error = %v, want %v", err, ErrNilHandler)
	}
	if err := b.Publish(context.Background(), "no topic"); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("Publish(untyped) error = %v, want %v", err, ErrInvalidEvent)
	}

	_, _ = b.SubscribeFunc(TopicCueChanged, func(context.Context, any) error { return errors.New("nope") })
	_ = b.Publish(context.Background(), Envelope{Topic: TopicCueChanged})
	if s := b.Stats(); s.Errors != 1 {
		t.Errorf("Stats().Errors = %d, want 1", s.Errors)
	}
}

func TestNewEventAt(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewEventAt(TopicSelectionCommitted, "x", "bridge", at)
	b := NewEventAt(TopicSelectionCommitted, "x", "bridge", at)
	if a.Metadata.ID == "" || a.Metadata.ID == b.Metadata.ID {
		t.Errorf("event IDs %q and %q should be unique and non-empty", a.Metadata.ID, b.Metadata.ID)
	}
	if !a.Metadata.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v", a.Metadata.Timestamp, at)
	}
	if c := a.WithCorrelation("run-1"); c.Metadata.CorrelationID != "run-1" || a.Metadata.CorrelationID != "" {
		t.Error("WithCorrelation() should copy, not mutate")
	}
}
