// Package dispatch resolves a single operation's effective script_type
// and routes it to the matching runner — an embedded script host, a
// built-in action, or a spawned external process (spec §4.9). It is the
// sole place that wires onOutput, onEvent, and stdinProvider into the
// runners/hosts it drives.
package dispatch

import (
	"context"
	"fmt"
	"os"

	"github.com/yggdrasil-au/remake-engine/internal/actions"
	"github.com/yggdrasil-au/remake-engine/internal/command"
	"github.com/yggdrasil-au/remake-engine/internal/event"
	"github.com/yggdrasil-au/remake-engine/internal/logging"
	"github.com/yggdrasil-au/remake-engine/internal/manifest"
	"github.com/yggdrasil-au/remake-engine/internal/placeholder"
	"github.com/yggdrasil-au/remake-engine/internal/policy"
	"github.com/yggdrasil-au/remake-engine/internal/procrunner"
	"github.com/yggdrasil-au/remake-engine/internal/registry"
	"github.com/yggdrasil-au/remake-engine/internal/script/js"
	"github.com/yggdrasil-au/remake-engine/internal/script/lua"
	"github.com/yggdrasil-au/remake-engine/internal/sdk"
	"github.com/yggdrasil-au/remake-engine/internal/toolmap"
)

// Callbacks are the front-end hooks the dispatcher wires into whichever
// runner an operation resolves to (spec §4.9 step 3).
type Callbacks struct {
	OnOutput      procrunner.OutputFunc
	OnEvent       procrunner.EventFunc
	StdinProvider procrunner.StdinProvider
	Input         func() (string, error) // in-process script prompt fallback when StdinProvider is nil
}

// Dependencies bundles the engine-wide state every dispatch needs, held
// by the facade and passed through unchanged (spec §3).
type Dependencies struct {
	EngineConfig placeholder.Context
	ProjectRoot  string
	Tools        *toolmap.Map
	Policy       *policy.Policy
	Paths        *policy.PathPolicy
	PathPrompt   policy.PathPrompt
	AutoAnswers  map[string]string
}

// Run builds and executes operation within moduleName, returning true iff
// it completed successfully (spec §4.9's run contract).
func Run(ctx context.Context, moduleName string, modules map[string]registry.Descriptor, op manifest.Operation, answers command.Answers, deps Dependencies, cb Callbacks, cancel <-chan struct{}) bool {
	log := logging.Get(logging.CategoryDispatch)

	argv, err := command.Build(moduleName, modules, deps.EngineConfig, deps.ProjectRoot, op, answers)
	if err != nil {
		log.Error("build command for %q: %v", op.Name, err)
		emitError(cb, err)
		return false
	}
	if len(argv) == 0 {
		log.Debug("operation %q has no script, treated as a no-op", op.Name)
		return true
	}

	switch argv[0] {
	case command.MarkerLua:
		return runScript(lua.Run, op.Name, argv, deps, cb)
	case command.MarkerJS:
		return runScript(js.Run, op.Name, argv, deps, cb)
	case command.MarkerBMS:
		return runBMS(argv, moduleRoot(modules, moduleName), deps, cb)
	case command.MarkerEngine:
		return runEngineAction(argv, deps, cb)
	default:
		return procrunner.Execute(ctx, argv, op.Name, deps.Policy, procrunner.Options{
			OnOutput:      cb.OnOutput,
			OnEvent:       cb.OnEvent,
			StdinProvider: cb.StdinProvider,
			Cancel:        cancel,
		})
	}
}

// scriptRunner is satisfied by both lua.Run and js.Run.
type scriptRunner func(scriptSource string, argv []string, host *sdk.Host, tools *toolmap.Map) (bool, error)

func runScript(run scriptRunner, opName string, argv []string, deps Dependencies, cb Callbacks) bool {
	log := logging.Get(logging.CategoryDispatch)
	scriptPath, scriptArgs := argv[1], argv[2:]

	source, err := os.ReadFile(scriptPath)
	if err != nil {
		log.Error("read script %s for %q: %v", scriptPath, opName, err)
		emitError(cb, err)
		return false
	}

	host := newHost(deps, cb)
	defer host.Close()

	ok, runErr := run(string(source), scriptArgs, host, deps.Tools)
	if runErr != nil {
		log.Error("script %s for %q: %v", scriptPath, opName, runErr)
	}
	return ok
}

func runBMS(argv []string, moduleRootPath string, deps Dependencies, cb Callbacks) bool {
	log := logging.Get(logging.CategoryDispatch)
	script := argv[1]
	rest := argv[2:]

	var inputDir, outputDir, ext string
	if len(rest) > 0 {
		inputDir = rest[0]
	}
	if len(rest) > 1 {
		outputDir = rest[1]
	}
	if len(rest) > 2 {
		ext = rest[2]
	}

	host := newHost(deps, cb)
	defer host.Close()

	ok, err := actions.ExtractArchive(script, moduleRootPath, deps.ProjectRoot, inputDir, outputDir, ext, host)
	if err != nil {
		log.Error("bms extractor %s: %v", script, err)
	}
	return ok
}

func runEngineAction(argv []string, deps Dependencies, cb Callbacks) bool {
	log := logging.Get(logging.CategoryDispatch)
	actionName, args := argv[1], argv[2:]

	host := newHost(deps, cb)
	defer host.Close()

	ok, err := actions.Run(actionName, args, host)
	if err != nil {
		log.Error("action %s: %v", actionName, err)
	}
	return ok
}

func newHost(deps Dependencies, cb Callbacks) *sdk.Host {
	input := cb.Input
	if input == nil && cb.StdinProvider != nil {
		input = func() (string, error) {
			return cb.StdinProvider(event.Event{Type: event.TypePrompt})
		}
	}
	return sdk.New(sdk.Options{
		Sink:        cb.OnEvent,
		Input:       input,
		AutoAnswers: deps.AutoAnswers,
		Policy:      deps.Policy,
		Paths:       deps.Paths,
		PathPrompt:  deps.PathPrompt,
	})
}

func moduleRoot(modules map[string]registry.Descriptor, name string) string {
	if mod, ok := modules[name]; ok {
		return mod.Root
	}
	return ""
}

func emitError(cb Callbacks, err error) {
	if cb.OnEvent != nil {
		cb.OnEvent(event.Error(fmt.Sprintf("%v", err)))
	}
}
