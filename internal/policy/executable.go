// Package policy implements the executable allow-list and path-access
// policy (spec §4.7) enforced before any filesystem or process operation
// requested by a runner, built-in action, or embedded script.
package policy

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/yggdrasil-au/remake-engine/internal/logging"
	"github.com/yggdrasil-au/remake-engine/internal/toolmap"
)

// blockedExecutables names system copy/move/archive utilities that must
// never be spawned directly — scripts use the SDK equivalents instead so
// every filesystem mutation passes through path policy (spec §4.7).
var blockedExecutables = map[string]string{
	"cp":       "sdk.copy_file / sdk.copy_dir",
	"copy":     "sdk.copy_file",
	"xcopy":    "sdk.copy_dir",
	"robocopy": "sdk.copy_dir",
	"mv":       "sdk.move_file / sdk.move_dir",
	"move":     "sdk.move_file",
	"rm":       "sdk.remove_file / sdk.remove_dir",
	"del":      "sdk.remove_file",
	"rmdir":    "sdk.remove_dir",
	"rd":       "sdk.remove_dir",
	"tar":      "sdk.archive_extract / sdk.archive_create",
	"zip":      "sdk.archive_create",
	"unzip":    "sdk.archive_extract",
	"rsync":    "sdk.copy_dir",
	"ln":       "sdk.symlink / sdk.hardlink",
}

// defaultAllowed names executables the runner will spawn without an
// explicit tool-map entry — interpreters and conversion tools common to
// remake pipelines.
var defaultAllowed = map[string]bool{
	"python":  false, // explicitly unsupported, spec §1 Non-goals
	"ffmpeg":  true,
	"magick":  true,
	"convert": true,
	"quickbms": true,
	"7z":      true,
	"blender": true,
}

// Policy bundles the executable allow-list with the tool resolver so a
// tool-mapped path is automatically approved (spec §4.7: "plus any value
// returned by the tool resolver for a known tool id").
type Policy struct {
	tools *toolmap.Map
	extra map[string]bool
}

// New builds a Policy. extraAllowed augments the default allow-list
// (e.g. entries from the engine settings file).
func New(tools *toolmap.Map, extraAllowed []string) *Policy {
	extra := make(map[string]bool, len(extraAllowed))
	for _, name := range extraAllowed {
		extra[normalizeExeName(name)] = true
	}
	return &Policy{tools: tools, extra: extra}
}

// CheckExecutable implements spec §4.7's executable allow-list. It
// returns ok=true if argv0 may be spawned, or ok=false plus a
// human-readable reason (naming the SDK equivalent for explicitly
// blocked system utilities) otherwise.
func (p *Policy) CheckExecutable(argv0 string) (ok bool, reason string) {
	log := logging.Get(logging.CategoryPolicy)
	name := normalizeExeName(argv0)

	if alt, blocked := blockedExecutables[name]; blocked {
		log.Warn("blocked executable %s (use %s)", argv0, alt)
		return false, fmt.Sprintf("SECURITY: Executable %s not approved (use %s)", argv0, alt)
	}

	if p.isToolResolved(argv0) {
		return true, ""
	}
	if defaultAllowed[name] {
		return true, ""
	}
	if p.extra[name] {
		return true, ""
	}

	log.Warn("executable %s not on allow-list", argv0)
	return false, fmt.Sprintf("SECURITY: Executable %s not approved", argv0)
}

// isToolResolved reports whether argv0 is the resolved path (or raw id)
// of a known tool-map entry.
func (p *Policy) isToolResolved(argv0 string) bool {
	if p.tools == nil {
		return false
	}
	resolved := p.tools.Resolve(argv0)
	return resolved != argv0 || hasKnownToolID(p.tools, argv0)
}

func hasKnownToolID(m *toolmap.Map, id string) bool {
	_, ok := m.Known(id)
	return ok
}

func normalizeExeName(path string) string {
	base := filepath.Base(path)
	base = strings.ToLower(base)
	if runtime.GOOS == "windows" {
		base = strings.TrimSuffix(base, ".exe")
		base = strings.TrimSuffix(base, ".bat")
		base = strings.TrimSuffix(base, ".cmd")
	}
	return base
}
