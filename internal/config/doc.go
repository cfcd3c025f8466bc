// Package config loads scanboard settings.
//
// Settings come from three layers, later layers winning:
//
//  1. built-in defaults (Default)
//  2. a TOML file
//  3. environment variables prefixed with SCANBOARD_
//
// Environment names map to dotted paths: SCANBOARD_ACCESS_COMMIT_ON sets
// access.commitOn. Layers are merged as maps with DeepMerge and then decoded
// into the typed Config.
//
// A Watcher reports debounced changes to the config file, the board
// catalogue and the rules script so the application can reload them.
package config
