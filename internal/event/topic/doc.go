// Package topic provides hierarchical topic names for the event bus.
//
// Topics use dot notation:
//
//	selection.committed
//	cue.changed
//	catalogue.loaded
//
// Subscription patterns may use "*" for exactly one segment and "**" for
// zero or more segments:
//
//	cue.*        matches cue.changed
//	**           matches everything
package topic
