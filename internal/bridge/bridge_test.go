package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshills/scanboard/internal/access"
	"github.com/dshills/scanboard/internal/catalog"
	"github.com/dshills/scanboard/internal/event"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type call struct {
	name    string
	gesture string
	data    map[string]any
}

type fakeDispatcher struct {
	calls []call
	err   error
	panic any
}

func (f *fakeDispatcher) ApplyRules(name, gesture string, data map[string]any) error {
	f.calls = append(f.calls, call{name, gesture, data})
	if f.panic != nil {
		panic(f.panic)
	}
	return f.err
}

func commit(serial uint64, t *catalog.Target) access.Commit {
	return access.Commit{
		Serial:  serial,
		Target:  t,
		Trigger: access.TriggerSwitch,
		Time:    t0.Add(time.Duration(serial) * time.Second),
		Epoch:   7,
	}
}

func TestCommitDispatchesOncePerSerial(t *testing.T) {
	d := &fakeDispatcher{}
	b := New(d)
	target := &catalog.Target{ID: "yes", Label: "Yes", Action: catalog.ActionRef{Name: "say", Data: map[string]any{"text": "yes"}}}

	b.Commit(commit(1, target))
	b.Commit(commit(1, target))
	b.Commit(commit(2, target))

	if len(d.calls) != 2 {
		t.Fatalf("ApplyRules() called %d times, want 2", len(d.calls))
	}
	c := d.calls[0]
	if c.name != "say" || c.gesture != GesturePress || c.data["text"] != "yes" {
		t.Errorf("ApplyRules() = %+v, want say/press/yes", c)
	}

	s := b.Stats()
	if s.Dispatched != 2 || s.Duplicates != 1 || s.PerAction["say"] != 2 {
		t.Errorf("Stats() = %+v", s)
	}
	last, ok := b.Last()
	if !ok || last.Serial != 2 || last.Target != "yes" || last.Epoch != 7 {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
}

func TestCommitOnClickOverridesDispatcher(t *testing.T) {
	d := &fakeDispatcher{}
	b := New(d)
	clicked := 0
	target := &catalog.Target{ID: "menu", Action: catalog.ActionRef{Name: "open"}, OnClick: func() { clicked++ }}

	b.Commit(commit(1, target))

	if clicked != 1 {
		t.Errorf("OnClick ran %d times, want 1", clicked)
	}
	if len(d.calls) != 0 {
		t.Errorf("dispatcher called %v, want no calls", d.calls)
	}
	if s := b.Stats(); s.Clicked != 1 || s.Dispatched != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestCommitRecoversPanics(t *testing.T) {
	tests := []struct {
		name      string
		dispatch  *fakeDispatcher
		onClick   func()
		wantPanic bool
	}{
		{name: "dispatcher error", dispatch: &fakeDispatcher{err: errors.New("no rule")}},
		{name: "dispatcher panic", dispatch: &fakeDispatcher{panic: "bad rule"}, wantPanic: true},
		{name: "onclick panic", dispatch: &fakeDispatcher{}, onClick: func() { panic("bad click") }, wantPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(tt.dispatch)
			target := &catalog.Target{ID: "x", OnClick: tt.onClick}
			b.Commit(commit(1, target))
			b.Commit(commit(2, target))

			s := b.Stats()
			if s.Failures != 2 {
				t.Errorf("Stats().Failures = %d, want 2", s.Failures)
			}
			wantPanics := uint64(0)
			if tt.wantPanic {
				wantPanics = 2
			}
			if s.Panics != wantPanics {
				t.Errorf("Stats().Panics = %d, want %d", s.Panics, wantPanics)
			}
		})
	}
}

func TestCommitDefaultsActionToTargetID(t *testing.T) {
	d := &fakeDispatcher{}
	New(d).Commit(commit(1, &catalog.Target{ID: "hello"}))
	if len(d.calls) != 1 || d.calls[0].name != "hello" {
		t.Errorf("ApplyRules() calls = %+v, want name hello", d.calls)
	}
}

func TestCommitPublishesSelection(t *testing.T) {
	bus := event.NewBus()
	if err := bus.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer bus.Stop(context.Background())

	var mu sync.Mutex
	var got []Selection
	var ids []string
	_, err := bus.Subscribe(event.TopicSelectionCommitted, event.AsHandlerFunc(
		func(_ context.Context, ev event.Event[Selection]) error {
			mu.Lock()
			got = append(got, ev.Payload)
			ids = append(ids, ev.Metadata.CorrelationID)
			mu.Unlock()
			return nil
		}))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	var failures int
	_, _ = bus.SubscribeFunc(event.TopicDispatchFailed, func(_ context.Context, ev any) error {
		failures++
		if mp, ok := ev.(event.MetadataProvider); ok {
			ids = append(ids, mp.EventMetadata().CorrelationID)
		}
		return nil
	})

	b := New(&fakeDispatcher{err: errors.New("nope")}, WithBus(bus))
	b.Commit(commit(3, &catalog.Target{ID: "no", Label: "No"}))

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Target != "no" || got[0].Serial != 3 || got[0].Label != "No" {
		t.Fatalf("published = %+v", got)
	}
	if failures != 1 {
		t.Errorf("failure events = %d, want 1", failures)
	}
	if len(ids) != 2 || ids[0] != "7/3" || ids[1] != "7/3" {
		t.Errorf("correlation IDs = %q, want both 7/3", ids)
	}
}

func TestBridgeWithEngine(t *testing.T) {
	cat, err := catalog.New(&catalog.Group{
		Label: "root",
		Children: []*catalog.Group{
			{Label: "A", Targets: []*catalog.Target{
				{ID: "a1", Action: catalog.ActionRef{Name: "say", Data: map[string]any{"text": "a1"}}},
				{ID: "a2", Action: catalog.ActionRef{Name: "say", Data: map[string]any{"text": "a2"}}},
			}},
			{Label: "B", Targets: []*catalog.Target{
				{ID: "b1", Action: catalog.ActionRef{Name: "say", Data: map[string]any{"text": "b1"}}},
			}},
		},
	})
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}

	d := &fakeDispatcher{}
	b := New(d)
	e := access.NewEngine(access.WithStart(t0), access.WithCommitHandler(b.Commit))
	if err := e.Load(cat, access.DefaultConfig()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	e.Advance(t0.Add(time.Second))
	e.Handle(access.RawEvent{Kind: access.RawDown, Element: "b1", Time: t0.Add(1500 * time.Millisecond)})
	e.Handle(access.RawEvent{Kind: access.RawUp, Element: "b1", Time: t0.Add(1550 * time.Millisecond)})
	e.Handle(access.RawEvent{Kind: access.RawDown, Element: "b1", Time: t0.Add(1550 * time.Millisecond)})

	if len(d.calls) != 1 {
		t.Fatalf("ApplyRules() called %d times, want 1", len(d.calls))
	}
	if d.calls[0].data["text"] != "b1" {
		t.Errorf("dispatched %v, want b1", d.calls[0].data)
	}
}

func TestStagedDispatcherFollowsEpoch(t *testing.T) {
	oldD, newD := &fakeDispatcher{}, &fakeDispatcher{}
	b := New(oldD)
	target := &catalog.Target{ID: "t", Action: catalog.ActionRef{Name: "say"}}
	at := func(serial, epoch uint64) access.Commit {
		c := commit(serial, target)
		c.Epoch = epoch
		return c
	}

	b.Stage(9, newD)
	b.Commit(at(1, 7))
	b.Commit(at(2, 9))
	b.Activate(9)
	b.Commit(at(3, 9))
	b.Commit(at(4, 8))

	if len(oldD.calls) != 1 {
		t.Errorf("old dispatcher called %d times, want 1", len(oldD.calls))
	}
	if len(newD.calls) != 3 {
		t.Errorf("new dispatcher called %d times, want 3", len(newD.calls))
	}

	b.Stage(11, oldD)
	b.Unstage(11)
	b.Commit(at(5, 11))
	if len(newD.calls) != 4 {
		t.Errorf("after Unstage new dispatcher called %d times, want 4", len(newD.calls))
	}
	if st := b.Stats(); st.Failures != 0 || st.Dispatched != 5 {
		t.Errorf("Stats() = %+v, want 5 dispatched and no failures", st)
	}
}
