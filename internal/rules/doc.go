// Package rules runs board actions written in Lua.
//
// A rules script defines either a global function
//
//	function apply_rules(name, gesture, data) ... end
//
// or a table of per-action functions
//
//	rules = { say = function(gesture, data) ... end }
//
// The script runs in a sandboxed gopher-lua state: only the base, table,
// string and math libraries are opened, and loaders such as dofile and
// require are removed. Scripts talk back to the host through the board
// module:
//
//	board.emit(kind, payload)  -- hand an effect to the host
//	board.log(message)         -- write to the host log
//
// Every call runs under a timeout, so a runaway script cannot stall the
// access engine.
package rules
