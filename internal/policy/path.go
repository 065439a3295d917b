package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/yggdrasil-au/remake-engine/internal/logging"
)

// PathPrompt is the caller-supplied prompt channel used to ask about a
// path that is neither clearly allowed nor clearly forbidden (spec §4.7).
type PathPrompt func(question string) (bool, error)

// conventionalSubfolders are working-directory subfolders always
// considered allowed, relative to the current working directory.
var conventionalSubfolders = []string{"modules", "tools", "downloads", "output", ".remake"}

// forbiddenRoots are system directories a path must never resolve under.
func forbiddenRoots() []string {
	if runtime.GOOS == "windows" {
		return []string{
			`C:\Windows`,
			`C:\Program Files`,
			`C:\Program Files (x86)`,
		}
	}
	return []string{"/etc", "/bin", "/sbin", "/usr/bin", "/usr/sbin", "/sys", "/proc", "/dev"}
}

// PathPolicy tracks session-wide path grants made via the prompt channel
// (spec §4.7: "grants the path root session-wide allow-list entry").
type PathPolicy struct {
	mu           sync.Mutex
	sessionRoots []string
	cwd          string
}

// NewPathPolicy builds a PathPolicy rooted at the process's current
// working directory.
func NewPathPolicy() *PathPolicy {
	cwd, _ := os.Getwd()
	return &PathPolicy{cwd: cwd}
}

// Check implements spec §4.7's path access decision tree. Symbolic-link
// targets are never dereferenced for classification, per spec.
func (p *PathPolicy) Check(path string, prompt PathPrompt) (bool, error) {
	log := logging.Get(logging.CategoryPolicy)

	if !filepath.IsAbs(path) {
		return true, nil
	}

	clean := filepath.Clean(path)

	for _, root := range forbiddenRoots() {
		if underRoot(clean, root) {
			log.Warn("path %s forbidden (under %s)", path, root)
			return false, nil
		}
	}

	if underRoot(clean, p.cwd) {
		return true, nil
	}
	for _, sub := range conventionalSubfolders {
		if underRoot(clean, filepath.Join(p.cwd, sub)) {
			return true, nil
		}
	}
	if underRoot(clean, os.TempDir()) {
		return true, nil
	}
	if home, err := os.UserHomeDir(); err == nil && underRoot(clean, home) {
		return true, nil
	}

	p.mu.Lock()
	for _, granted := range p.sessionRoots {
		if underRoot(clean, granted) {
			p.mu.Unlock()
			return true, nil
		}
	}
	p.mu.Unlock()

	if prompt == nil {
		log.Warn("path %s outside known roots, no prompt channel available", path)
		return false, nil
	}

	root := pathRoot(clean)
	question := fmt.Sprintf("Allow access to %s and everything under it?", root)
	granted, err := prompt(question)
	if err != nil {
		return false, err
	}
	if !granted {
		return false, nil
	}

	p.mu.Lock()
	p.sessionRoots = append(p.sessionRoots, root)
	p.mu.Unlock()
	log.Info("session-granted path root %s", root)
	return true, nil
}

// pathRoot returns a coarse "root" for the grant — the first two path
// segments below a drive/root, or the whole path if shorter.
func pathRoot(clean string) string {
	vol := filepath.VolumeName(clean)
	rest := strings.TrimPrefix(clean, vol)
	rest = strings.TrimPrefix(rest, string(filepath.Separator))
	segs := strings.Split(rest, string(filepath.Separator))
	if len(segs) <= 2 {
		return clean
	}
	return vol + string(filepath.Separator) + filepath.Join(segs[:2]...)
}

func underRoot(path, root string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}
