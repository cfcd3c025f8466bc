// Package trace replays recorded input and records selections, both as
// JSON lines.
//
// An input trace holds one raw event per line. Times are offsets from the
// start of the trace, in milliseconds or as a Go duration string:
//
//	{"at": 0,    "kind": "over", "element": "yes"}
//	{"at": 1500, "kind": "down", "element": "yes", "pointer": 1}
//	{"at": "2s", "kind": "switchdown"}
//	{"at": 5000, "kind": "tick"}
//
// A "tick" line only advances the clock. Blank lines and lines starting
// with # are skipped.
package trace
