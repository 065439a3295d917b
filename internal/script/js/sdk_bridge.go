package js

import (
	"context"
	"time"

	"github.com/yggdrasil-au/remake-engine/internal/sdk"
)

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// buildSDKObject exposes sdk.Host's filesystem, process, archive, and
// config-file helpers as the JS `sdk` global object (spec §4.8). Errors
// are returned as the Go error type, which goja throws as a JS
// exception rather than a boolean/err-string pair — idiomatic for JS,
// unlike the Lua bridge's (ok, err) convention.
func buildSDKObject(host *sdk.Host) map[string]any {
	return map[string]any{
		"copy_file": func(src, dst string) error { return host.CopyFile(src, dst) },
		"copy_dir": func(src, dst string) error {
			return host.CopyDir(src, dst, nil)
		},
		"move_file": func(src, dst string) error { return host.MoveFile(src, dst) },
		"move_dir": func(src, dst string) error {
			return host.MoveDir(src, dst, nil)
		},
		"remove_file": func(path string) error { return host.RemoveFile(path) },
		"remove_dir":  func(path string) error { return host.RemoveDir(path) },
		"symlink":     func(target, link string) error { return host.Symlink(target, link) },
		"hardlink":    func(target, link string) error { return host.Hardlink(target, link) },
		"realpath":    func(path string) (string, error) { return host.Realpath(path) },
		"readlink":    func(path string) (string, error) { return host.Readlink(path) },
		"sha1":        func(path string) (string, error) { return host.SHA1(path) },
		"md5":         func(path string) (string, error) { return host.MD5(path) },
		"scan_dir":    func(root string) ([]string, error) { return host.ScanDir(root) },

		"archive_create": func(srcDir, dstZip string) error { return host.ArchiveCreate(srcDir, dstZip) },
		"archive_extract": func(srcZip, dstDir string) error {
			return host.ArchiveExtract(srcZip, dstDir)
		},

		"exec": func(argv []string) bool {
			return host.Exec(context.Background(), argv, sdk.ExecOpts{})
		},
		"run_process": func(argv []string) (sdk.RunResult, error) {
			return host.RunProcess(argv, sdk.ExecOpts{})
		},
		"spawn_process": func(argv []string) (int64, error) {
			return host.SpawnProcess(argv, sdk.ExecOpts{})
		},
		"poll_process": func(pid int64) (sdk.ProcessStatus, error) {
			return host.PollProcess(pid)
		},
		"wait_process": func(pid int64, timeoutSeconds int) (sdk.ProcessStatus, error) {
			return host.WaitProcess(pid, secondsToDuration(timeoutSeconds))
		},
		"close_process": func(pid int64) error { return host.CloseProcess(pid) },

		"read_toml":  func(path string) (map[string]any, error) { return host.ReadTOML(path) },
		"write_toml": func(path string, data map[string]any) error { return host.WriteTOML(path, data) },
		"read_json":  func(path string) (map[string]any, error) { return host.ReadJSON(path) },
		"write_json": func(path string, data map[string]any) error { return host.WriteJSON(path, data) },
	}
}

// buildSQLiteObject exposes the sqlite.* surface (spec §4.8).
func buildSQLiteObject(host *sdk.Host) map[string]any {
	db := host.SQL()
	return map[string]any{
		"open": func(path string) (int64, error) { return db.Open(path) },
		"exec": func(handle int64, query string, args ...any) (int64, error) {
			return db.Exec(handle, query, args...)
		},
		"query": func(handle int64, query string, args ...any) (any, error) {
			rows, err := db.Query(handle, query, args...)
			if err != nil {
				return nil, err
			}
			out := make([]map[string]any, len(rows))
			for i, row := range rows {
				out[i] = map[string]any(row)
			}
			return out, nil
		},
		"begin":    func(handle int64) (int64, error) { return db.Begin(handle) },
		"commit":   func(txHandle int64) error { return db.Commit(txHandle) },
		"rollback": func(txHandle int64) error { return db.Rollback(txHandle) },
		"close":    func(handle int64) error { return db.Close(handle) },
	}
}
