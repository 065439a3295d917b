// Package lua embeds a sandboxed Lua 5.1 host (github.com/yuin/gopher-lua)
// for operations with script_type "lua" (spec §4.9), installing the
// shared SDK surface as host globals (spec §4.8).
package lua

import (
	"fmt"
	"time"

	luago "github.com/yuin/gopher-lua"

	"github.com/yggdrasil-au/remake-engine/internal/errs"
	"github.com/yggdrasil-au/remake-engine/internal/sdk"
	"github.com/yggdrasil-au/remake-engine/internal/toolmap"
)

// Run executes scriptSource with argv bound to the host's argv global
// and the shared SDK installed, returning true iff the script completed
// without raising (spec §4.9).
func Run(scriptSource string, argv []string, host *sdk.Host, tools *toolmap.Map) (ok bool, err error) {
	L := newSandboxedState()
	defer L.Close()

	installGlobals(L, argv, host, tools)

	if loadErr := L.DoString(scriptSource); loadErr != nil {
		host.Error(fmt.Sprintf("lua script failed: %v", loadErr))
		return false, errs.Wrap(errs.ScriptError, loadErr, "lua script execution")
	}
	return true, nil
}

// newSandboxedState builds a Lua state with only the libraries needed
// by remake scripts — no io, no unrestricted os, no debug.
func newSandboxedState() *luago.LState {
	L := luago.NewState(luago.Options{SkipOpenLibs: true})

	luago.OpenBase(L)
	luago.OpenTable(L)
	luago.OpenString(L)
	luago.OpenMath(L)
	luago.OpenPackage(L)

	osTbl := L.NewTable()
	L.SetField(osTbl, "date", L.NewFunction(func(L *luago.LState) int {
		format := L.OptString(1, "%c")
		t := time.Now()
		if L.GetTop() >= 2 {
			t = time.Unix(int64(L.CheckNumber(2)), 0)
		}
		L.Push(luago.LString(t.Format(format)))
		return 1
	}))
	L.SetField(osTbl, "time", L.NewFunction(func(L *luago.LState) int {
		L.Push(luago.LNumber(time.Now().Unix()))
		return 1
	}))
	L.SetGlobal("os", osTbl)

	L.SetGlobal("dofile", luago.LNil)
	L.SetGlobal("loadfile", luago.LNil)

	return L
}

// installGlobals wires argv, tool(id), emit, warn, error, prompt,
// progress, sdk, sqlite into L (spec §4.9's enumerated host globals).
func installGlobals(L *luago.LState, argv []string, host *sdk.Host, tools *toolmap.Map) {
	argvTbl := L.NewTable()
	for i, a := range argv {
		L.RawSetInt(argvTbl, i+1, luago.LString(a))
	}
	L.SetGlobal("argv", argvTbl)

	L.SetGlobal("tool", L.NewFunction(func(L *luago.LState) int {
		id := L.CheckString(1)
		L.Push(luago.LString(tools.Resolve(id)))
		return 1
	}))

	L.SetGlobal("emit", L.NewFunction(func(L *luago.LState) int {
		msg := L.CheckString(1)
		color := L.OptString(2, "")
		newline := true
		if L.GetTop() >= 3 {
			newline = luago.LVAsBool(L.Get(3))
		}
		host.Print(msg, color, newline)
		return 0
	}))

	L.SetGlobal("warn", L.NewFunction(func(L *luago.LState) int {
		host.Warn(L.CheckString(1))
		return 0
	}))

	L.SetGlobal("error", L.NewFunction(func(L *luago.LState) int {
		host.Error(L.CheckString(1))
		return 0
	}))

	L.SetGlobal("prompt", L.NewFunction(func(L *luago.LState) int {
		message := L.CheckString(1)
		id := L.OptString(2, "")
		secret := false
		if L.GetTop() >= 3 {
			secret = luago.LVAsBool(L.Get(3))
		}
		answer, err := host.Prompt(message, id, secret)
		if err != nil {
			L.Push(luago.LNil)
			L.Push(luago.LString(err.Error()))
			return 2
		}
		L.Push(luago.LString(answer))
		return 1
	}))

	L.SetGlobal("progress", L.NewFunction(func(L *luago.LState) int {
		total := int(L.CheckNumber(1))
		id := L.OptString(2, "")
		label := L.OptString(3, "")
		ph := host.Progress(total, id, label)

		handleTbl := L.NewTable()
		L.SetField(handleTbl, "update", L.NewFunction(func(L *luago.LState) int {
			inc := 1
			if L.GetTop() >= 1 {
				inc = int(L.CheckNumber(1))
			}
			ph.Update(inc)
			return 0
		}))
		L.Push(handleTbl)
		return 1
	}))

	L.SetGlobal("sdk", buildSDKTable(L, host))
	L.SetGlobal("sqlite", buildSQLiteTable(L, host))
}
