// Package bridge hands committed selections to the action dispatcher.
//
// The access engine reports every commit through a callback. The Bridge
// turns each commit into a Selection, runs the target's OnClick override or
// the generic Dispatcher, and publishes the Selection on the event bus.
// Dispatch is fire-and-forget: failures and panics are logged and counted
// but never retried, and a commit serial is dispatched at most once.
package bridge
