// Package cue derives visual cue descriptors from access engine snapshots.
//
// Cues are never stored. A renderer calls ComputeAll at whatever rate it
// draws and gets the cued node with a progress value that rises linearly
// from 0 when the node becomes active to exactly 1 at the instant the scan
// timer fires. Styles (overlay, fill, circle, raw CSS) are alternative
// renderings of the same {Active, Progress} pair and are looked up by key
// in a List.
package cue
