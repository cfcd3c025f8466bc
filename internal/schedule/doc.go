// Package schedule provides a keyed logical timer queue.
//
// Timers are deadlines on a caller-supplied clock rather than runtime timers.
// Nothing fires until the owner calls Advance with the current instant, so a
// single goroutine can drive any number of timers and the firing order for a
// given input trace is fully deterministic:
//
//	q := schedule.New()
//	q.Schedule("scan", start.Add(time.Second), func(at time.Time) { ... })
//	q.Advance(start.Add(3 * time.Second)) // fires every due timer in order
//
// Each key holds at most one pending timer. Scheduling an existing key
// replaces its deadline and callback.
//
// Queue is not safe for concurrent use.
package schedule
