// Package lua runs INCANT scripts with gopher-lua.
//
// Scripts see a sandboxed interpreter (base, table, string and math
// libraries only) and a global "magic" table bound to the store:
//
//	magic.summon(key, value) -- stores value, returns it
//	magic.conjure(key)       -- returns the value or nil
//	magic.dispel(key, ...)   -- returns the number of keys removed
//	magic.keys()             -- returns an array of every key
//
// Every Eval uses a fresh interpreter state.
package lua
