// Package js embeds a goja-based JavaScript host for operations with
// script_type "js" (spec §4.9), exposing the same SDK surface as the
// Lua host (spec §4.8) idiomatically bridged to JS exceptions instead
// of boolean/err-string return pairs.
package js

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/yggdrasil-au/remake-engine/internal/errs"
	"github.com/yggdrasil-au/remake-engine/internal/sdk"
	"github.com/yggdrasil-au/remake-engine/internal/toolmap"
)

// Run executes scriptSource with argv bound to the host's argv global
// and the shared SDK installed, returning true iff the script completed
// without throwing (spec §4.9).
func Run(scriptSource string, argv []string, host *sdk.Host, tools *toolmap.Map) (ok bool, err error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	installGlobals(vm, argv, host, tools)

	if _, runErr := vm.RunString(scriptSource); runErr != nil {
		host.Error(fmt.Sprintf("js script failed: %v", runErr))
		return false, errs.Wrap(errs.ScriptError, runErr, "js script execution")
	}
	return true, nil
}

// installGlobals wires argv, tool(id), emit, warn, error, prompt,
// progress, sdk, sqlite into vm (spec §4.9's enumerated host globals).
// goja has no built-in fs/module loader, so the runtime is sandboxed by
// omission — there is no require(), no fs module, nothing to disable.
func installGlobals(vm *goja.Runtime, argv []string, host *sdk.Host, tools *toolmap.Map) {
	vm.Set("argv", argv)

	vm.Set("tool", func(id string) string {
		return tools.Resolve(id)
	})

	vm.Set("emit", func(msg string, rest ...goja.Value) {
		color, newline := optionalPrintArgs(rest)
		host.Print(msg, color, newline)
	})

	vm.Set("warn", func(msg string) {
		host.Warn(msg)
	})

	vm.Set("error", func(msg string) {
		host.Error(msg)
	})

	vm.Set("prompt", func(message string, rest ...goja.Value) (string, error) {
		id, secret := optionalPromptArgs(rest)
		return host.Prompt(message, id, secret)
	})

	vm.Set("progress", func(total int, rest ...goja.Value) map[string]any {
		id, label := optionalProgressArgs(rest)
		ph := host.Progress(total, id, label)
		return map[string]any{
			"update": func(inc ...int) {
				n := 1
				if len(inc) > 0 {
					n = inc[0]
				}
				ph.Update(n)
			},
		}
	})

	vm.Set("sdk", buildSDKObject(host))
	vm.Set("sqlite", buildSQLiteObject(host))
}

func optionalPrintArgs(rest []goja.Value) (color string, newline bool) {
	newline = true
	if len(rest) >= 1 {
		color = rest[0].String()
	}
	if len(rest) >= 2 {
		newline = rest[1].ToBoolean()
	}
	return
}

func optionalPromptArgs(rest []goja.Value) (id string, secret bool) {
	if len(rest) >= 1 {
		id = rest[0].String()
	}
	if len(rest) >= 2 {
		secret = rest[1].ToBoolean()
	}
	return
}

func optionalProgressArgs(rest []goja.Value) (id, label string) {
	if len(rest) >= 1 {
		id = rest[0].String()
	}
	if len(rest) >= 2 {
		label = rest[1].String()
	}
	return
}
