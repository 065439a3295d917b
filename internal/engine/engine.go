// Package engine is the single entry point front-ends use to drive the
// operation-execution core (spec §4.11): list modules, load operations,
// run one, run a group, and run install. It owns the engine-wide state
// (tool map, policy, project-derived placeholder layer) and threads it
// through to the dispatcher and group runner on every call.
package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/yggdrasil-au/remake-engine/internal/command"
	"github.com/yggdrasil-au/remake-engine/internal/config"
	"github.com/yggdrasil-au/remake-engine/internal/dispatch"
	"github.com/yggdrasil-au/remake-engine/internal/errs"
	"github.com/yggdrasil-au/remake-engine/internal/group"
	"github.com/yggdrasil-au/remake-engine/internal/logging"
	"github.com/yggdrasil-au/remake-engine/internal/manifest"
	"github.com/yggdrasil-au/remake-engine/internal/placeholder"
	"github.com/yggdrasil-au/remake-engine/internal/policy"
	"github.com/yggdrasil-au/remake-engine/internal/procrunner"
	"github.com/yggdrasil-au/remake-engine/internal/registry"
	"github.com/yggdrasil-au/remake-engine/internal/toolmap"

	"github.com/fsnotify/fsnotify"
)

// conventional on-disk layout, relative to a project root.
const (
	projectConfigFileName = "remake.config.json"
	toolMapFileName       = "tools.json"
	settingsFileName      = "remake.settings.yaml"
)

// Engine bundles the read-mostly state every run needs: the module
// registry, the tool resolver, the executable/path policy, and the
// engine project configuration layer of the placeholder context
// (spec §3, §6).
type Engine struct {
	ProjectRoot string
	Settings    *config.Settings

	registry   *registry.Registry
	tools      *toolmap.Map
	policy     *policy.Policy
	paths      *policy.PathPolicy
	pathPrompt policy.PathPrompt
	projectCfg placeholder.Context

	// AutoAnswers preseeds embedded-script sdk.prompt() calls by id,
	// bypassing interactive I/O (spec §4.8's "Auto-response table").
	AutoAnswers map[string]string
}

// Options configures New.
type Options struct {
	// PathPrompt answers out-of-workspace path grant questions
	// (spec §4.7). May be nil, in which case ungranted paths are denied.
	PathPrompt policy.PathPrompt
}

// New constructs an Engine rooted at projectRoot. It reads the engine
// settings file, the tool map, and the project configuration file if
// present; none of these are required to exist (spec §4.3/§4.4/§6).
func New(projectRoot string, opts Options) (*Engine, error) {
	settings, err := config.Load(filepath.Join(projectRoot, settingsFileName))
	if err != nil {
		return nil, errs.Wrap(errs.IOError, err, "load engine settings")
	}
	if err := logging.Initialize(projectRoot, logging.Settings{
		DebugMode:  settings.Logging.DebugMode,
		Level:      settings.Logging.Level,
		JSONFormat: settings.Logging.JSONFormat,
		Categories: settings.Logging.Categories,
	}); err != nil {
		return nil, errs.Wrap(errs.IOError, err, "initialize logging")
	}

	tools, err := toolmap.Load(filepath.Join(projectRoot, toolMapFileName))
	if err != nil {
		return nil, errs.Wrap(errs.IOError, err, "load tool map")
	}

	projectCfg, err := loadProjectConfig(filepath.Join(projectRoot, projectConfigFileName))
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, err, "load engine project configuration")
	}

	return &Engine{
		ProjectRoot: projectRoot,
		Settings:    settings,
		registry:    registry.New(projectRoot),
		tools:       tools,
		policy:      policy.New(tools, settings.AllowedExecutables),
		paths:       policy.NewPathPolicy(),
		pathPrompt:  opts.PathPrompt,
		projectCfg:  projectCfg,
		AutoAnswers: map[string]string{},
	}, nil
}

// loadProjectConfig reads the engine project configuration file (spec
// §6: "JSON object; contents are merged into the placeholder context
// under their own top-level keys"). A missing file is not an error.
func loadProjectConfig(path string) (placeholder.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return placeholder.Context{}, nil
		}
		return nil, err
	}
	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return placeholder.Context(cfg), nil
}

// ReloadProjectConfig re-reads the project configuration file, per
// spec §4.9 step 1 ("reload engine config if the project config file is
// present and parses to a mapping").
func (e *Engine) ReloadProjectConfig() error {
	cfg, err := loadProjectConfig(filepath.Join(e.ProjectRoot, projectConfigFileName))
	if err != nil {
		return errs.Wrap(errs.ParseError, err, "reload engine project configuration")
	}
	e.projectCfg = cfg
	return nil
}

// ListModules enumerates every module under the project's modules
// directory, classified installed/downloaded/not_downloaded (spec §4.3).
func (e *Engine) ListModules() (map[string]registry.Descriptor, error) {
	return e.registry.Discover()
}

// ListInstalled restricts ListModules to installed modules (spec §4.3).
func (e *Engine) ListInstalled() (map[string]registry.Descriptor, error) {
	return e.registry.DiscoverInstalled()
}

// LoadOps parses a manifest's grouped operations (spec §4.2).
func (e *Engine) LoadOps(path string) (manifest.Grouped, []string, error) {
	return manifest.Load(path)
}

// LoadOpsFlat concatenates every group's operations in declaration order
// (spec §4.2).
func (e *Engine) LoadOpsFlat(path string) ([]manifest.Operation, error) {
	return manifest.LoadFlat(path)
}

// dependencies assembles a dispatch.Dependencies snapshot for one run.
func (e *Engine) dependencies() dispatch.Dependencies {
	return dispatch.Dependencies{
		EngineConfig: e.projectCfg,
		ProjectRoot:  e.ProjectRoot,
		Tools:        e.tools,
		Policy:       e.policy,
		Paths:        e.paths,
		PathPrompt:   e.pathPrompt,
		AutoAnswers:  e.AutoAnswers,
	}
}

// RunSingle dispatches a single operation (spec §4.9).
func (e *Engine) RunSingle(ctx context.Context, moduleName string, modules map[string]registry.Descriptor, op manifest.Operation, answers command.Answers, cb dispatch.Callbacks, cancel <-chan struct{}) bool {
	if err := e.ReloadProjectConfig(); err != nil {
		logging.Get(logging.CategoryDispatch).Warn("project config reload: %v", err)
	}
	return dispatch.Run(ctx, moduleName, modules, op, answers, e.dependencies(), cb, cancel)
}

// RunGroup executes an ordered/dependency-partially-ordered group of
// operations (spec §4.10).
func (e *Engine) RunGroup(ctx context.Context, moduleName string, modules map[string]registry.Descriptor, groupName string, operations []manifest.Operation, answers command.Answers, cb dispatch.Callbacks, cancel <-chan struct{}) bool {
	if err := e.ReloadProjectConfig(); err != nil {
		logging.Get(logging.CategoryDispatch).Warn("project config reload: %v", err)
	}
	return group.Run(ctx, moduleName, modules, groupName, operations, answers, e.dependencies(), cb, cancel)
}

// RunInstall runs a manifest's run-all group if present, else its first
// declared group, with every prompt answered by its default (spec §4.10).
func (e *Engine) RunInstall(ctx context.Context, moduleName string, opsFilePath string, cb dispatch.Callbacks, cancel <-chan struct{}) (bool, error) {
	modules, err := e.ListModules()
	if err != nil {
		return false, err
	}
	if _, ok := modules[moduleName]; !ok {
		return false, errs.New(errs.UnknownModule, "unknown module %q", moduleName)
	}

	grouped, order, err := e.LoadOps(opsFilePath)
	if err != nil {
		return false, err
	}
	if err := e.ReloadProjectConfig(); err != nil {
		logging.Get(logging.CategoryDispatch).Warn("project config reload: %v", err)
	}
	return group.RunInstall(ctx, moduleName, modules, grouped, order, e.dependencies(), cb, cancel), nil
}

// BuildCommand exposes the command builder for developer-CLI direct
// execution (spec §4.11).
func (e *Engine) BuildCommand(moduleName string, modules map[string]registry.Descriptor, op manifest.Operation, answers command.Answers) ([]string, error) {
	return command.Build(moduleName, modules, e.projectCfg, e.ProjectRoot, op, answers)
}

// WatchModule wires a manifest hot-reload watcher (SPEC_FULL.md's
// SUPPLEMENTED FEATURES) onto a module descriptor: onChange fires
// whenever its operations file is rewritten, so a long-running front-end
// can invalidate a cached operation list without restarting. Not part of
// the spec's core contract; purely additive ergonomics.
func (e *Engine) WatchModule(desc registry.Descriptor, onChange func()) (*fsnotify.Watcher, error) {
	return registry.Watch(desc, onChange)
}

// ExecuteCommand runs an already-built argv through the process runner
// directly, bypassing the dispatcher's script/action routing — intended
// for developer-CLI callers that built their own argv via BuildCommand
// (spec §4.11's "executeCommand (for developer CLI direct execution)").
func (e *Engine) ExecuteCommand(ctx context.Context, argv []string, title string, cb dispatch.Callbacks, cancel <-chan struct{}) bool {
	if len(argv) == 0 {
		return true
	}
	return procrunner.Execute(ctx, argv, title, e.policy, procrunner.Options{
		OnOutput:      cb.OnOutput,
		OnEvent:       cb.OnEvent,
		StdinProvider: cb.StdinProvider,
		Cancel:        cancel,
	})
}
