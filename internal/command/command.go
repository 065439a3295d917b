// Package command builds the argument vector for a single operation by
// composing the placeholder context and applying prompt-to-CLI mapping
// (spec §3, §4.5).
package command

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/yggdrasil-au/remake-engine/internal/errs"
	"github.com/yggdrasil-au/remake-engine/internal/manifest"
	"github.com/yggdrasil-au/remake-engine/internal/placeholder"
	"github.com/yggdrasil-au/remake-engine/internal/registry"
)

// Markers returned as argv[0] for script-hosted operations; the
// dispatcher (spec §4.9) recognizes these and never spawns them.
const (
	MarkerLua    = "lua"
	MarkerJS     = "js"
	MarkerEngine = "engine"
	MarkerBMS    = "bms"
)

// pythonInvocation is the legacy fallback argv[0] used only when
// script_type is absent and script ends in .py (spec §4.5 step 3).
func pythonInvocation() string {
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}

// Answers maps prompt Name to the user-supplied answer. An absent key
// falls back to the prompt's Default (spec §4.5 step 5).
type Answers map[string]any

// Build constructs the argv for operation within moduleName, per spec
// §4.5. The placeholder context merges, lowest precedence first: project
// built-ins (from projectRoot), module built-ins, engineConfig, the
// module's config.toml overlay, operation fields, then answers.
func Build(moduleName string, modules map[string]registry.Descriptor, engineConfig placeholder.Context, projectRoot string, op manifest.Operation, answers Answers) ([]string, error) {
	if len(modules) == 0 {
		return nil, errs.New(errs.NoModuleLoaded, "no module loaded")
	}
	mod, ok := modules[moduleName]
	if !ok {
		return nil, errs.New(errs.UnknownModule, "unknown module %q", moduleName)
	}

	moduleOverlay := loadModuleConfigOverlay(mod.Root)

	ctx := placeholder.Merge(
		builtinProjectLayer(projectRoot),
		builtinModuleLayer(mod),
		engineConfig,
		moduleOverlay,
		operationLayer(op),
		answersLayer(answers),
	)

	if op.Script == "" {
		return []string{}, nil
	}
	if op.ScriptType == manifest.ScriptTypeUnset && !strings.EqualFold(filepath.Ext(op.Script), ".py") {
		return nil, errs.New(errs.UnknownScriptType, "operation %q has no script_type", op.Name)
	}
	resolvedScript := placeholder.ResolveString(op.Script, ctx)

	exe0, scriptIsExe := scriptTypeMarker(op, resolvedScript)

	var argv []string
	if scriptIsExe {
		// The manifest's script IS the external program to spawn; there
		// is no separate interpreter marker to place before it.
		argv = []string{exe0}
	} else {
		argv = []string{exe0, resolvedScript}
	}

	for _, a := range op.Args {
		argv = append(argv, placeholder.ResolveString(a, ctx))
	}
	argv = append(argv, promptArgs(op.Prompts, answers, ctx)...)
	return argv, nil
}

// scriptTypeMarker returns argv[0] and whether resolvedScript already IS
// that argv[0] (true for the external-process fallback paths, where the
// manifest's script is the program to execute directly; false for the
// lua/js/engine/bms markers and the legacy python invocation, where the
// script is a distinct interpreter argument) — spec §4.5 step 3.
func scriptTypeMarker(op manifest.Operation, resolvedScript string) (exe0 string, scriptIsExe bool) {
	switch op.ScriptType {
	case manifest.ScriptTypeLua:
		return MarkerLua, false
	case manifest.ScriptTypeJS:
		return MarkerJS, false
	case manifest.ScriptTypeEngine:
		return MarkerEngine, false
	case manifest.ScriptTypeBMS:
		return MarkerBMS, false
	case manifest.ScriptTypeUnset:
		if strings.EqualFold(filepath.Ext(op.Script), ".py") {
			return pythonInvocation(), false
		}
		return resolvedScript, true
	default: // ScriptTypeDefault or any unrecognized literal value
		return resolvedScript, true
	}
}

func promptArgs(prompts []manifest.Prompt, answers Answers, ctx placeholder.Context) []string {
	var argv []string
	for _, p := range prompts {
		if p.Condition != "" && !isTruthy(effectiveAnswer(answers, findPrompt(prompts, p.Condition))) {
			continue
		}

		answer, has := answers[p.Name]
		if !has {
			answer = p.Default
		}

		switch p.Type {
		case manifest.PromptConfirm:
			if isTruthy(answer) && p.CLIArg != "" {
				argv = append(argv, p.CLIArg)
			}
		case manifest.PromptText:
			s, ok := answer.(string)
			if ok && s != "" {
				s = placeholder.ResolveString(s, ctx)
				if p.CLIArgPrefix != "" {
					argv = append(argv, p.CLIArgPrefix, s)
				} else if p.CLIArg != "" {
					argv = append(argv, p.CLIArg, s)
				}
			}
		case manifest.PromptCheckbox:
			values := asStringSlice(answer)
			if len(values) > 0 && p.CLIPrefix != "" {
				argv = append(argv, p.CLIPrefix)
				for _, v := range values {
					argv = append(argv, placeholder.ResolveString(v, ctx))
				}
			}
		}
	}
	return argv
}

func findPrompt(prompts []manifest.Prompt, name string) *manifest.Prompt {
	for i := range prompts {
		if prompts[i].Name == name {
			return &prompts[i]
		}
	}
	return nil
}

func effectiveAnswer(answers Answers, p *manifest.Prompt) any {
	if p == nil {
		return nil
	}
	if v, ok := answers[p.Name]; ok {
		return v
	}
	return p.Default
}

func isTruthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}

func asStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func answersLayer(a Answers) placeholder.Context {
	ctx := make(placeholder.Context, len(a))
	for k, v := range a {
		ctx[k] = v
	}
	return ctx
}

func operationLayer(op manifest.Operation) placeholder.Context {
	ctx := placeholder.Context{
		"Name":   op.Name,
		"Script": op.Script,
	}
	for k, v := range op.Extra {
		ctx[k] = v
	}
	return ctx
}

func builtinModuleLayer(mod registry.Descriptor) placeholder.Context {
	return placeholder.Context{
		"Game_Root": mod.Root,
		"Game": map[string]any{
			"RootPath": mod.Root,
			"Name":     mod.Name,
			"Exe":      mod.Exe,
		},
	}
}

func builtinProjectLayer(projectRoot string) placeholder.Context {
	return placeholder.Context{"Project_Root": projectRoot}
}

// loadModuleConfigOverlay reads a module-local config.toml overlay if
// present (spec §4.5 step 1); absence is not an error.
func loadModuleConfigOverlay(moduleRoot string) placeholder.Context {
	path := filepath.Join(moduleRoot, "config.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return placeholder.Context{}
	}
	var overlay map[string]any
	if _, err := toml.Decode(string(data), &overlay); err != nil {
		return placeholder.Context{}
	}
	return placeholder.Context(overlay)
}
