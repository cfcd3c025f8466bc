// Package access implements the scanning-and-cueing access engine.
//
// Raw pointer and switch input flows through three stages that share one
// logical clock:
//
//	RawEvent -> Normalizer -> Debouncer -> Sequencer -> Commit
//
// The Normalizer resolves rendered elements to targets, releases implicit
// pointer capture and suppresses the context menu. The Debouncer keeps one
// dwell timer per hovered target and reports a settled Enter only after the
// pointer has stayed for the hold threshold. The Sequencer is the scan state
// machine: it walks the catalogue hierarchy on its own interval timer and
// turns trigger signals (press, dwell, external switch) into commits.
//
// # Time
//
// Engine never reads the wall clock. Every input carries a timestamp and
// timers are deadlines in a schedule.Queue that fire when Advance moves the
// clock past them, so a recorded trace always replays to the same result:
//
//	eng := access.NewEngine(access.WithStart(t0), access.WithCommitHandler(onCommit))
//	_ = eng.Load(cat, access.DefaultConfig())
//	eng.Switch(access.KindPress, t0.Add(1500*time.Millisecond))
//
// Runner drives an Engine from a live Source on its own goroutine, arming a
// single real timer to the engine's next deadline.
//
// # Thread safety
//
// Engine is not safe for concurrent use. Runner owns its Engine and exposes
// only immutable Snapshots to other goroutines.
package access
