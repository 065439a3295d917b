package sdk

import (
	"archive/zip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/yggdrasil-au/remake-engine/internal/errs"
)

// ArchiveCreate zips the contents of srcDir into dstZip (spec §4.8:
// "in-process zip create/extract").
func (h *Host) ArchiveCreate(srcDir, dstZip string) error {
	if err := h.checkPath(srcDir, dstZip); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dstZip), 0o755); err != nil {
		return errs.Wrap(errs.IOError, err, "archive_create mkdir %s", dstZip)
	}
	out, err := os.Create(dstZip)
	if err != nil {
		return errs.Wrap(errs.IOError, err, "archive_create %s", dstZip)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	files, err := scanFiles(srcDir)
	if err != nil {
		return err
	}
	for _, rel := range files {
		if err := addZipEntry(zw, filepath.Join(srcDir, rel), filepath.ToSlash(rel)); err != nil {
			return errs.Wrap(errs.IOError, err, "archive_create add %s", rel)
		}
	}
	return nil
}

func addZipEntry(zw *zip.Writer, srcPath, archiveName string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(archiveName)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// ArchiveExtract extracts srcZip into dstDir, refusing any entry whose
// resolved path would escape dstDir (zip-slip guard).
func (h *Host) ArchiveExtract(srcZip, dstDir string) error {
	if err := h.checkPath(srcZip, dstDir); err != nil {
		return err
	}

	r, err := zip.OpenReader(srcZip)
	if err != nil {
		return errs.Wrap(errs.IOError, err, "archive_extract open %s", srcZip)
	}
	defer r.Close()

	for _, f := range r.File {
		target := filepath.Join(dstDir, f.Name)
		if !isWithin(dstDir, target) {
			return errs.New(errs.DisallowedPath, "archive entry %s escapes %s", f.Name, dstDir)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errs.Wrap(errs.IOError, err, "archive_extract mkdir %s", target)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errs.Wrap(errs.IOError, err, "archive_extract mkdir %s", target)
		}
		if err := extractZipFile(f, target); err != nil {
			return errs.Wrap(errs.IOError, err, "archive_extract %s", f.Name)
		}
	}
	return nil
}

func extractZipFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

func isWithin(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (!filepath.IsAbs(rel) && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..")
}

// ReadTOML decodes path into a generic map (spec §4.8's config-file
// helpers).
func (h *Host) ReadTOML(path string) (map[string]any, error) {
	if err := h.checkPath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, err, "read_toml %s", path)
	}
	var out map[string]any
	if _, err := toml.Decode(string(data), &out); err != nil {
		return nil, errs.Wrap(errs.ParseError, err, "read_toml %s", path)
	}
	return out, nil
}

// WriteTOML encodes data as TOML and writes it to path.
func (h *Host) WriteTOML(path string, data map[string]any) error {
	if err := h.checkPath(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.IOError, err, "write_toml mkdir %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.IOError, err, "write_toml %s", path)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(data)
}

// ReadJSON decodes path into a generic map.
func (h *Host) ReadJSON(path string) (map[string]any, error) {
	if err := h.checkPath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, err, "read_json %s", path)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errs.Wrap(errs.ParseError, err, "read_json %s", path)
	}
	return out, nil
}

// WriteJSON encodes data as indented JSON and writes it to path.
func (h *Host) WriteJSON(path string, data map[string]any) error {
	if err := h.checkPath(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.IOError, err, "write_json mkdir %s", path)
	}
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errs.Wrap(errs.IOError, err, "write_json %s", path)
	}
	return os.WriteFile(path, encoded, 0o644)
}
