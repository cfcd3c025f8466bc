package schedule

import (
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func TestQueueFiresInDeadlineOrder(t *testing.T) {
	q := New()
	var order []string

	q.Schedule("c", at(300), func(time.Time) { order = append(order, "c") })
	q.Schedule("a", at(100), func(time.Time) { order = append(order, "a") })
	q.Schedule("b", at(200), func(time.Time) { order = append(order, "b") })

	if n := q.Advance(at(250)); n != 2 {
		t.Fatalf("Advance() fired %d, want 2", n)
	}
	if got := len(order); got != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order = %v, want [a b]", order)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}

	q.Advance(at(300))
	if len(order) != 3 || order[2] != "c" {
		t.Errorf("order = %v, want [a b c]", order)
	}
}

func TestQueueTiesFireInScheduleOrder(t *testing.T) {
	q := New()
	var order []string
	for _, k := range []string{"x", "y", "z"} {
		k := k
		q.Schedule(k, at(100), func(time.Time) { order = append(order, k) })
	}
	q.Advance(at(100))
	if len(order) != 3 || order[0] != "x" || order[1] != "y" || order[2] != "z" {
		t.Errorf("order = %v, want [x y z]", order)
	}
}

func TestQueueScheduleReplacesKey(t *testing.T) {
	q := New()
	var fired []int
	q.Schedule("k", at(100), func(time.Time) { fired = append(fired, 1) })
	q.Schedule("k", at(500), func(time.Time) { fired = append(fired, 2) })

	q.Advance(at(400))
	if len(fired) != 0 {
		t.Fatalf("replaced timer fired: %v", fired)
	}
	q.Advance(at(500))
	if len(fired) != 1 || fired[0] != 2 {
		t.Errorf("fired = %v, want [2]", fired)
	}
}

func TestQueueCancel(t *testing.T) {
	q := New()
	fired := false
	q.Schedule("k", at(100), func(time.Time) { fired = true })

	if !q.Cancel("k") {
		t.Fatal("Cancel() = false, want true")
	}
	if q.Cancel("k") {
		t.Error("second Cancel() = true, want false")
	}
	q.Advance(at(1000))
	if fired {
		t.Error("cancelled timer fired")
	}
	if s := q.Stats(); s.Cancelled != 1 || s.Fired != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestQueueCancelAll(t *testing.T) {
	q := New()
	count := 0
	for _, k := range []string{"a", "b", "c"} {
		q.Schedule(k, at(10), func(time.Time) { count++ })
	}
	if n := q.CancelAll(); n != 3 {
		t.Errorf("CancelAll() = %d, want 3", n)
	}
	q.Advance(at(100))
	if count != 0 {
		t.Errorf("count = %d after CancelAll, want 0", count)
	}
	if _, ok := q.Next(); ok {
		t.Error("Next() reported a deadline on an empty queue")
	}
}

func TestQueueChainedTimersStayPhaseLocked(t *testing.T) {
	q := New()
	var ticks []time.Time
	var tick Func
	tick = func(when time.Time) {
		ticks = append(ticks, when)
		q.Schedule("tick", when.Add(time.Second), tick)
	}
	q.Schedule("tick", at(1000), tick)

	// A late Advance still observes every tick at its own deadline.
	q.Advance(at(3500))
	if len(ticks) != 3 {
		t.Fatalf("ticks = %d, want 3", len(ticks))
	}
	for i, want := range []time.Time{at(1000), at(2000), at(3000)} {
		if !ticks[i].Equal(want) {
			t.Errorf("tick[%d] = %v, want %v", i, ticks[i], want)
		}
	}
	if d, ok := q.Deadline("tick"); !ok || !d.Equal(at(4000)) {
		t.Errorf("Deadline(tick) = %v, %v; want %v", d, ok, at(4000))
	}
}

func TestQueueCallbackMayCancelOthers(t *testing.T) {
	q := New()
	var fired []string
	q.Schedule("first", at(100), func(time.Time) {
		fired = append(fired, "first")
		q.Cancel("second")
	})
	q.Schedule("second", at(100), func(time.Time) { fired = append(fired, "second") })

	q.Advance(at(100))
	if len(fired) != 1 || fired[0] != "first" {
		t.Errorf("fired = %v, want [first]", fired)
	}
	if q.Pending("second") {
		t.Error("second still pending")
	}
}
