// Package actions implements the engine's built-in action set invoked
// when an operation's script_type is "engine" (spec §4.9), plus the
// dedicated bms archive-extractor action invoked for script_type "bms".
// The action set is a closed enum (spec §9 Open Questions) — any other
// name is errs.UnknownAction.
package actions

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yggdrasil-au/remake-engine/internal/errs"
	"github.com/yggdrasil-au/remake-engine/internal/sdk"
)

// Name enumerates the closed set of built-in engine actions.
type Name string

const (
	DownloadTools Name = "download_tools"
	FormatExtract Name = "format-extract"
	FormatConvert Name = "format-convert"
)

// Run dispatches to the named built-in action by its closed-enum name.
// Unknown names return errs.UnknownAction; panics inside an action are
// recovered as errs.ActionError. Both are also emitted through host as
// error events, per spec §4.9 step 2's "Exceptions are caught and
// surfaced as error events."
func Run(name string, args []string, host *sdk.Host) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.New(errs.ActionError, "action %s panicked: %v", name, r)
			host.Error(err.Error())
			ok = false
		}
	}()

	switch Name(name) {
	case DownloadTools:
		return downloadTools(args, host)
	case FormatExtract:
		return formatExtract(args, host)
	case FormatConvert:
		return formatConvert(args, host)
	default:
		err := errs.New(errs.UnknownAction, "unknown built-in action %q", name)
		host.Error(err.Error())
		return false, err
	}
}

// downloadTools fetches url/destination pairs over HTTP (spec's
// download_tools: acquire a tool binary the tool resolver has no entry
// for yet).
func downloadTools(args []string, host *sdk.Host) (bool, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return false, errs.New(errs.ActionError, "download_tools requires url/destination pairs, got %d args", len(args))
	}

	host.Start("download_tools")
	for i := 0; i < len(args); i += 2 {
		url, dest := args[i], args[i+1]
		host.Info(fmt.Sprintf("downloading %s -> %s", url, dest))
		if err := host.Download(url, dest); err != nil {
			host.Error(err.Error())
			return false, err
		}
	}
	return true, nil
}

// formatExtract extracts a single zip archive. Non-zip formats are
// explicitly out of scope for this action (spec §4.8: "other formats
// require an approved external tool").
func formatExtract(args []string, host *sdk.Host) (bool, error) {
	if len(args) < 2 {
		return false, errs.New(errs.ActionError, "format-extract requires <archive> <destDir>")
	}
	archive, destDir := args[0], args[1]

	if ext := strings.ToLower(filepath.Ext(archive)); ext != ".zip" {
		return false, errs.New(errs.ActionError, "format-extract: unsupported archive format %q, use an external tool via the SDK", ext)
	}

	host.Start("format-extract")
	if err := host.ArchiveExtract(archive, destDir); err != nil {
		host.Error(err.Error())
		return false, err
	}
	return true, nil
}

// formatConvert converts a data file between the two structured formats
// the engine already understands (TOML and JSON), inferred from file
// extension.
func formatConvert(args []string, host *sdk.Host) (bool, error) {
	if len(args) < 2 {
		return false, errs.New(errs.ActionError, "format-convert requires <source> <destination>")
	}
	src, dst := args[0], args[1]
	host.Start("format-convert")

	data, err := readByExtension(src, host)
	if err != nil {
		host.Error(err.Error())
		return false, err
	}
	if err := writeByExtension(dst, data, host); err != nil {
		host.Error(err.Error())
		return false, err
	}
	return true, nil
}

func readByExtension(path string, host *sdk.Host) (map[string]any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return host.ReadTOML(path)
	case ".json":
		return host.ReadJSON(path)
	default:
		return nil, errs.New(errs.ActionError, "format-convert: unsupported source extension %q", filepath.Ext(path))
	}
}

func writeByExtension(path string, data map[string]any, host *sdk.Host) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return host.WriteTOML(path, data)
	case ".json":
		return host.WriteJSON(path, data)
	default:
		return errs.New(errs.ActionError, "format-convert: unsupported destination extension %q", filepath.Ext(path))
	}
}

// ExtractArchive is the bms built-in archive-extractor action (spec
// §4.9: "bms -> invoke the built-in archive-extractor action with
// (script, moduleRoot, projectRoot, inputDir, outputDir, ext?)").
// script identifies the bms descriptor for logging; inputDir/outputDir
// are resolved against moduleRoot (falling back to projectRoot) when
// relative.
func ExtractArchive(script, moduleRoot, projectRoot, inputDir, outputDir, ext string, host *sdk.Host) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.New(errs.ActionError, "bms extractor panicked: %v", r)
			ok = false
		}
	}()

	inputDir = resolveAgainst(inputDir, moduleRoot, projectRoot)
	outputDir = resolveAgainst(outputDir, moduleRoot, projectRoot)

	host.Start(fmt.Sprintf("bms:%s", script))
	files, scanErr := host.ScanDir(inputDir)
	if scanErr != nil {
		host.Error(scanErr.Error())
		return false, scanErr
	}

	extracted := 0
	for _, rel := range files {
		if ext != "" && !strings.EqualFold(filepath.Ext(rel), ext) {
			continue
		}
		src := filepath.Join(inputDir, rel)
		dst := filepath.Join(outputDir, strings.TrimSuffix(rel, filepath.Ext(rel)))
		if extractErr := host.ArchiveExtract(src, dst); extractErr != nil {
			host.Warn(fmt.Sprintf("skipping %s: %v", rel, extractErr))
			continue
		}
		extracted++
	}
	host.Info(fmt.Sprintf("bms extracted %d archive(s) from %s into %s", extracted, inputDir, outputDir))
	return true, nil
}

func resolveAgainst(path, moduleRoot, projectRoot string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if moduleRoot != "" {
		return filepath.Join(moduleRoot, path)
	}
	return filepath.Join(projectRoot, path)
}
