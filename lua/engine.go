package lua

import (
	"context"
	"fmt"

	"github.com/raniellyferreira/magicdb/storage"
	lua "github.com/yuin/gopher-lua"
)

// Engine executes incantation scripts against a store
type Engine struct {
	storage storage.Store
}

// NewEngine creates a new Lua execution engine
func NewEngine(storage storage.Store) *Engine {
	return &Engine{
		storage: storage,
	}
}

// Eval executes a Lua script and returns the value it returns.
// The script stops when ctx is cancelled.
func (e *Engine) Eval(ctx context.Context, script string) (interface{}, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	if ctx != nil {
		L.SetContext(ctx)
	}

	e.openSafeLibs(L)
	e.setupMagicAPI(L)

	if err := L.DoString(script); err != nil {
		return nil, fmt.Errorf("script execution error: %w", err)
	}

	if L.GetTop() == 0 {
		return nil, nil
	}
	return e.convertLuaValue(L.Get(-1)), nil
}

// openSafeLibs loads the libraries that cannot touch the host
func (e *Engine) openSafeLibs(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// setupMagicAPI registers the magic table
func (e *Engine) setupMagicAPI(L *lua.LState) {
	magicTable := L.NewTable()
	L.SetFuncs(magicTable, map[string]lua.LGFunction{
		"summon":  e.summon,
		"conjure": e.conjure,
		"dispel":  e.dispel,
		"keys":    e.keys,
	})
	L.SetGlobal("magic", magicTable)
}

// summon implements magic.summon(key, value)
func (e *Engine) summon(L *lua.LState) int {
	key := L.CheckString(1)
	value := L.CheckString(2)
	e.storage.Set(key, value)
	L.Push(lua.LString(value))
	return 1
}

// conjure implements magic.conjure(key); absent keys return nil
func (e *Engine) conjure(L *lua.LState) int {
	key := L.CheckString(1)
	value, exists := e.storage.Get(key)
	if !exists {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(value))
	return 1
}

// dispel implements magic.dispel(key, ...) returning the number removed
func (e *Engine) dispel(L *lua.LState) int {
	argc := L.GetTop()
	if argc == 0 {
		L.ArgError(1, "key expected")
		return 0
	}
	keys := make([]string, argc)
	for i := 1; i <= argc; i++ {
		keys[i-1] = L.CheckString(i)
	}
	L.Push(lua.LNumber(e.storage.Del(keys...)))
	return 1
}

// keys implements magic.keys([pattern])
func (e *Engine) keys(L *lua.LState) int {
	keys := e.storage.Keys()
	if L.GetTop() > 0 {
		keys = storage.KeysMatching(e.storage, L.CheckString(1))
	}

	table := L.NewTable()
	for i, key := range keys {
		table.RawSetInt(i+1, lua.LString(key))
	}
	L.Push(table)
	return 1
}

// convertLuaValue converts a Lua value to a Go value
func (e *Engine) convertLuaValue(lv lua.LValue) interface{} {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case *lua.LTable:
		if e.isArrayLikeTable(v) {
			result := make([]interface{}, 0, v.Len())
			for i := 1; i <= v.Len(); i++ {
				result = append(result, e.convertLuaValue(v.RawGetInt(i)))
			}
			return result
		}
		result := make(map[string]interface{})
		v.ForEach(func(k, val lua.LValue) {
			result[k.String()] = e.convertLuaValue(val)
		})
		return result
	default:
		return lv.String()
	}
}

// isArrayLikeTable checks if a Lua table only has keys 1..n
func (e *Engine) isArrayLikeTable(table *lua.LTable) bool {
	length := table.Len()

	arrayLike := true
	table.ForEach(func(k, _ lua.LValue) {
		num, ok := k.(lua.LNumber)
		if !ok {
			arrayLike = false
			return
		}
		idx := int(num)
		if float64(idx) != float64(num) || idx < 1 || idx > length {
			arrayLike = false
		}
	})

	return arrayLike
}
