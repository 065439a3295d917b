// Package registry discovers modules ("games") on disk and classifies
// them as installed / downloaded / not_downloaded (spec §3, §4.3).
package registry

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/yggdrasil-au/remake-engine/internal/logging"
)

// State is the derived installation state of a Module (spec §3).
type State string

const (
	StateInstalled    State = "installed"
	StateDownloaded   State = "downloaded"
	StateNotDownloaded State = "not_downloaded"
)

const (
	modulesDirName      = "modules"
	opsFileNameJSON     = "operations.json"
	opsFileNameTOML     = "operations.toml"
	gameDescriptorName  = "game.toml"
)

// Descriptor mirrors spec §3's "Module (Game) descriptor".
type Descriptor struct {
	Name    string
	Root    string
	OpsFile string
	Exe     string
	Title   string
	State   State
}

// gameFile is the on-disk shape of game.toml (spec §6: "Module descriptor
// file").
type gameFile struct {
	Title string         `toml:"title"`
	Exe   string         `toml:"exe"`
	Extra map[string]any `toml:"-"`
}

// Registry scans a project root's modules directory. It is read-mostly:
// Discover/DiscoverInstalled always re-read the filesystem (spec §4.3
// "Results are not cached across calls").
type Registry struct {
	projectRoot string
}

// New builds a Registry rooted at projectRoot. No I/O happens here; the
// modules directory is only read when Discover/DiscoverInstalled run.
func New(projectRoot string) *Registry {
	return &Registry{projectRoot: projectRoot}
}

// ModulesDir is the conventional modules directory under the project root.
func (r *Registry) ModulesDir() string {
	return filepath.Join(r.projectRoot, modulesDirName)
}

// Discover enumerates direct children of the modules directory and
// classifies each one (spec §4.3).
func (r *Registry) Discover() (map[string]Descriptor, error) {
	log := logging.Get(logging.CategoryRegistry)
	modulesDir := r.ModulesDir()

	entries, err := os.ReadDir(modulesDir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("modules dir %s does not exist", modulesDir)
			return map[string]Descriptor{}, nil
		}
		return nil, err
	}

	out := make(map[string]Descriptor, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		desc := classify(entry.Name(), filepath.Join(modulesDir, entry.Name()))
		out[desc.Name] = desc
		log.Debug("discovered module %s state=%s", desc.Name, desc.State)
	}
	return out, nil
}

// DiscoverInstalled restricts Discover's result to installed modules
// (spec §4.3).
func (r *Registry) DiscoverInstalled() (map[string]Descriptor, error) {
	all, err := r.Discover()
	if err != nil {
		return nil, err
	}
	installed := make(map[string]Descriptor, len(all))
	for name, desc := range all {
		if desc.State == StateInstalled {
			installed[name] = desc
		}
	}
	return installed, nil
}

// classify derives a Descriptor's state purely from filesystem reads
// (spec §4.3's "State classification is pure over filesystem reads").
func classify(name, root string) Descriptor {
	desc := Descriptor{Name: name, Root: root}

	if opsFile := findOpsFile(root); opsFile != "" {
		desc.OpsFile = opsFile
	}

	gf, gfErr := readGameFile(root)
	if gfErr == nil {
		desc.Title = gf.Title
		if gf.Exe != "" {
			exePath := gf.Exe
			if !filepath.IsAbs(exePath) {
				exePath = filepath.Join(root, exePath)
			}
			if fileExists(exePath) {
				desc.Exe = exePath
				desc.State = StateInstalled
				return desc
			}
		}
	}

	if desc.OpsFile != "" {
		desc.State = StateDownloaded
		return desc
	}

	desc.State = StateNotDownloaded
	return desc
}

func findOpsFile(root string) string {
	for _, name := range []string{opsFileNameTOML, opsFileNameJSON} {
		p := filepath.Join(root, name)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

func readGameFile(root string) (*gameFile, error) {
	path := filepath.Join(root, gameDescriptorName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var gf gameFile
	if _, err := toml.Decode(string(data), &gf); err != nil {
		return nil, err
	}
	return &gf, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
