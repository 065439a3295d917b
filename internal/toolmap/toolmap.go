// Package toolmap translates a logical tool id to an absolute executable
// path (spec §4.4), loaded once from a JSON file if present.
package toolmap

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/yggdrasil-au/remake-engine/internal/logging"
)

// Map is the immutable tool_id -> absolute path mapping (spec §3). Once
// constructed it never changes — Resolve only ever reads it.
type Map struct {
	entries map[string]string
}

// rawEntry supports both shapes spec §6 allows: a bare string, or a
// sub-object with exe/path/command (first present wins).
type rawEntry struct {
	Exe     *string `json:"exe"`
	Path    *string `json:"path"`
	Command *string `json:"command"`
}

// Load reads the tool map file, if present. A missing file yields the
// identity mapping (spec §4.4).
func Load(path string) (*Map, error) {
	log := logging.Get(logging.CategoryRegistry)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("tool map %s absent, using identity mapping", path)
			return &Map{entries: map[string]string{}}, nil
		}
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	entries := make(map[string]string, len(raw))
	for id, msg := range raw {
		if resolved, ok := parseEntry(msg, dir); ok {
			entries[id] = resolved
		}
	}
	return &Map{entries: entries}, nil
}

func parseEntry(msg json.RawMessage, dir string) (string, bool) {
	var asString string
	if err := json.Unmarshal(msg, &asString); err == nil {
		return resolveRelative(asString, dir), true
	}

	var entry rawEntry
	if err := json.Unmarshal(msg, &entry); err != nil {
		return "", false // unknown shape, ignored silently per spec §4.4
	}
	for _, candidate := range []*string{entry.Exe, entry.Path, entry.Command} {
		if candidate != nil {
			return resolveRelative(*candidate, dir), true
		}
	}
	return "", false
}

func resolveRelative(p, dir string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Resolve returns the mapped absolute path for toolID, or toolID
// unchanged if no mapping exists (PATH lookup deferred to the OS, per
// spec §4.4).
func (m *Map) Resolve(toolID string) string {
	if m == nil {
		return toolID
	}
	if p, ok := m.entries[toolID]; ok {
		return p
	}
	return toolID
}

// Known reports whether toolID has an explicit mapping — used by the
// executable allow-list (spec §4.7) to admit tool-resolved paths.
func (m *Map) Known(toolID string) (string, bool) {
	if m == nil {
		return "", false
	}
	p, ok := m.entries[toolID]
	return p, ok
}
