package lua

import (
	"context"
	"time"

	luago "github.com/yuin/gopher-lua"

	"github.com/yggdrasil-au/remake-engine/internal/sdk"
)

// buildSDKTable exposes sdk.Host's filesystem, process, and config-file
// helpers as the Lua `sdk` global table (spec §4.8).
func buildSDKTable(L *luago.LState, host *sdk.Host) *luago.LTable {
	t := L.NewTable()

	setFn(L, t, "copy_file", func(L *luago.LState) int {
		err := host.CopyFile(L.CheckString(1), L.CheckString(2))
		return pushErr(L, err)
	})
	setFn(L, t, "copy_dir", func(L *luago.LState) int {
		err := host.CopyDir(L.CheckString(1), L.CheckString(2), nil)
		return pushErr(L, err)
	})
	setFn(L, t, "move_file", func(L *luago.LState) int {
		err := host.MoveFile(L.CheckString(1), L.CheckString(2))
		return pushErr(L, err)
	})
	setFn(L, t, "move_dir", func(L *luago.LState) int {
		err := host.MoveDir(L.CheckString(1), L.CheckString(2), nil)
		return pushErr(L, err)
	})
	setFn(L, t, "remove_file", func(L *luago.LState) int {
		err := host.RemoveFile(L.CheckString(1))
		return pushErr(L, err)
	})
	setFn(L, t, "remove_dir", func(L *luago.LState) int {
		err := host.RemoveDir(L.CheckString(1))
		return pushErr(L, err)
	})
	setFn(L, t, "symlink", func(L *luago.LState) int {
		err := host.Symlink(L.CheckString(1), L.CheckString(2))
		return pushErr(L, err)
	})
	setFn(L, t, "hardlink", func(L *luago.LState) int {
		err := host.Hardlink(L.CheckString(1), L.CheckString(2))
		return pushErr(L, err)
	})
	setFn(L, t, "realpath", func(L *luago.LState) int {
		p, err := host.Realpath(L.CheckString(1))
		return pushStrErr(L, p, err)
	})
	setFn(L, t, "readlink", func(L *luago.LState) int {
		p, err := host.Readlink(L.CheckString(1))
		return pushStrErr(L, p, err)
	})
	setFn(L, t, "sha1", func(L *luago.LState) int {
		sum, err := host.SHA1(L.CheckString(1))
		return pushStrErr(L, sum, err)
	})
	setFn(L, t, "md5", func(L *luago.LState) int {
		sum, err := host.MD5(L.CheckString(1))
		return pushStrErr(L, sum, err)
	})
	setFn(L, t, "scan_dir", func(L *luago.LState) int {
		files, err := host.ScanDir(L.CheckString(1))
		if err != nil {
			L.Push(luago.LNil)
			L.Push(luago.LString(err.Error()))
			return 2
		}
		tbl := L.NewTable()
		for i, f := range files {
			L.RawSetInt(tbl, i+1, luago.LString(f))
		}
		L.Push(tbl)
		return 1
	})

	setFn(L, t, "archive_create", func(L *luago.LState) int {
		err := host.ArchiveCreate(L.CheckString(1), L.CheckString(2))
		return pushErr(L, err)
	})
	setFn(L, t, "archive_extract", func(L *luago.LState) int {
		err := host.ArchiveExtract(L.CheckString(1), L.CheckString(2))
		return pushErr(L, err)
	})

	setFn(L, t, "exec", func(L *luago.LState) int {
		argv := stringsFromTable(L.CheckTable(1))
		ok := host.Exec(context.Background(), argv, sdk.ExecOpts{})
		L.Push(luago.LBool(ok))
		return 1
	})
	setFn(L, t, "run_process", func(L *luago.LState) int {
		argv := stringsFromTable(L.CheckTable(1))
		res, err := host.RunProcess(argv, sdk.ExecOpts{})
		if err != nil {
			L.Push(luago.LNil)
			L.Push(luago.LString(err.Error()))
			return 2
		}
		tbl := L.NewTable()
		L.SetField(tbl, "stdout", luago.LString(res.Stdout))
		L.SetField(tbl, "stderr", luago.LString(res.Stderr))
		L.SetField(tbl, "success", luago.LBool(res.Success))
		L.Push(tbl)
		return 1
	})
	setFn(L, t, "spawn_process", func(L *luago.LState) int {
		argv := stringsFromTable(L.CheckTable(1))
		pid, err := host.SpawnProcess(argv, sdk.ExecOpts{})
		if err != nil {
			L.Push(luago.LNil)
			L.Push(luago.LString(err.Error()))
			return 2
		}
		L.Push(luago.LNumber(pid))
		return 1
	})
	setFn(L, t, "poll_process", func(L *luago.LState) int {
		pid := int64(L.CheckNumber(1))
		status, err := host.PollProcess(pid)
		return pushProcessStatus(L, status, err)
	})
	setFn(L, t, "wait_process", func(L *luago.LState) int {
		pid := int64(L.CheckNumber(1))
		timeout := time.Duration(L.OptNumber(2, 0)) * time.Second
		status, err := host.WaitProcess(pid, timeout)
		return pushProcessStatus(L, status, err)
	})
	setFn(L, t, "close_process", func(L *luago.LState) int {
		err := host.CloseProcess(int64(L.CheckNumber(1)))
		return pushErr(L, err)
	})

	setFn(L, t, "read_toml", func(L *luago.LState) int {
		data, err := host.ReadTOML(L.CheckString(1))
		return pushMapErr(L, data, err)
	})
	setFn(L, t, "write_toml", func(L *luago.LState) int {
		err := host.WriteTOML(L.CheckString(1), mapFromTable(L.CheckTable(2)))
		return pushErr(L, err)
	})
	setFn(L, t, "read_json", func(L *luago.LState) int {
		data, err := host.ReadJSON(L.CheckString(1))
		return pushMapErr(L, data, err)
	})
	setFn(L, t, "write_json", func(L *luago.LState) int {
		err := host.WriteJSON(L.CheckString(1), mapFromTable(L.CheckTable(2)))
		return pushErr(L, err)
	})

	return t
}

// buildSQLiteTable exposes the sqlite.* surface (spec §4.8).
func buildSQLiteTable(L *luago.LState, host *sdk.Host) *luago.LTable {
	t := L.NewTable()
	db := host.SQL()

	setFn(L, t, "open", func(L *luago.LState) int {
		handle, err := db.Open(L.CheckString(1))
		if err != nil {
			L.Push(luago.LNil)
			L.Push(luago.LString(err.Error()))
			return 2
		}
		L.Push(luago.LNumber(handle))
		return 1
	})
	setFn(L, t, "exec", func(L *luago.LState) int {
		handle := int64(L.CheckNumber(1))
		query := L.CheckString(2)
		args := luaArgsFrom(L, 3)
		n, err := db.Exec(handle, query, args...)
		if err != nil {
			L.Push(luago.LNil)
			L.Push(luago.LString(err.Error()))
			return 2
		}
		L.Push(luago.LNumber(n))
		return 1
	})
	setFn(L, t, "query", func(L *luago.LState) int {
		handle := int64(L.CheckNumber(1))
		query := L.CheckString(2)
		args := luaArgsFrom(L, 3)
		rows, err := db.Query(handle, query, args...)
		if err != nil {
			L.Push(luago.LNil)
			L.Push(luago.LString(err.Error()))
			return 2
		}
		tbl := L.NewTable()
		for i, row := range rows {
			rowTbl := L.NewTable()
			for col, v := range row {
				L.SetField(rowTbl, col, goValueToLua(L, v))
			}
			L.RawSetInt(tbl, i+1, rowTbl)
		}
		L.Push(tbl)
		return 1
	})
	setFn(L, t, "begin", func(L *luago.LState) int {
		handle, err := db.Begin(int64(L.CheckNumber(1)))
		if err != nil {
			L.Push(luago.LNil)
			L.Push(luago.LString(err.Error()))
			return 2
		}
		L.Push(luago.LNumber(handle))
		return 1
	})
	setFn(L, t, "commit", func(L *luago.LState) int {
		return pushErr(L, db.Commit(int64(L.CheckNumber(1))))
	})
	setFn(L, t, "rollback", func(L *luago.LState) int {
		return pushErr(L, db.Rollback(int64(L.CheckNumber(1))))
	})
	setFn(L, t, "close", func(L *luago.LState) int {
		return pushErr(L, db.Close(int64(L.CheckNumber(1))))
	})

	return t
}

func setFn(L *luago.LState, t *luago.LTable, name string, fn luago.LGFunction) {
	L.SetField(t, name, L.NewFunction(fn))
}

func pushErr(L *luago.LState, err error) int {
	if err != nil {
		L.Push(luago.LBool(false))
		L.Push(luago.LString(err.Error()))
		return 2
	}
	L.Push(luago.LBool(true))
	return 1
}

func pushStrErr(L *luago.LState, s string, err error) int {
	if err != nil {
		L.Push(luago.LNil)
		L.Push(luago.LString(err.Error()))
		return 2
	}
	L.Push(luago.LString(s))
	return 1
}

func pushMapErr(L *luago.LState, m map[string]any, err error) int {
	if err != nil {
		L.Push(luago.LNil)
		L.Push(luago.LString(err.Error()))
		return 2
	}
	tbl := L.NewTable()
	for k, v := range m {
		L.SetField(tbl, k, goValueToLua(L, v))
	}
	L.Push(tbl)
	return 1
}

func pushProcessStatus(L *luago.LState, status sdk.ProcessStatus, err error) int {
	if err != nil {
		L.Push(luago.LNil)
		L.Push(luago.LString(err.Error()))
		return 2
	}
	tbl := L.NewTable()
	L.SetField(tbl, "running", luago.LBool(status.Running))
	L.SetField(tbl, "stdout", luago.LString(status.Stdout))
	L.SetField(tbl, "stderr", luago.LString(status.Stderr))
	L.SetField(tbl, "stdout_delta", luago.LString(status.StdoutDelta))
	L.SetField(tbl, "stderr_delta", luago.LString(status.StderrDelta))
	if status.ExitCode != nil {
		L.SetField(tbl, "exit_code", luago.LNumber(*status.ExitCode))
	}
	L.Push(tbl)
	return 1
}

func stringsFromTable(t *luago.LTable) []string {
	var out []string
	n := t.Len()
	for i := 1; i <= n; i++ {
		out = append(out, t.RawGetInt(i).String())
	}
	return out
}

func mapFromTable(t *luago.LTable) map[string]any {
	out := map[string]any{}
	t.ForEach(func(k, v luago.LValue) {
		if ks, ok := k.(luago.LString); ok {
			out[string(ks)] = luaValueToGo(v)
		}
	})
	return out
}

func luaArgsFrom(L *luago.LState, start int) []any {
	var out []any
	for i := start; i <= L.GetTop(); i++ {
		out = append(out, luaValueToGo(L.Get(i)))
	}
	return out
}

func goValueToLua(L *luago.LState, v any) luago.LValue {
	switch val := v.(type) {
	case nil:
		return luago.LNil
	case bool:
		return luago.LBool(val)
	case string:
		return luago.LString(val)
	case int:
		return luago.LNumber(val)
	case int64:
		return luago.LNumber(val)
	case float64:
		return luago.LNumber(val)
	case []any:
		tbl := L.NewTable()
		for i, item := range val {
			L.RawSetInt(tbl, i+1, goValueToLua(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for k, item := range val {
			L.SetField(tbl, k, goValueToLua(L, item))
		}
		return tbl
	default:
		return luago.LNil
	}
}

func luaValueToGo(v luago.LValue) any {
	switch val := v.(type) {
	case luago.LBool:
		return bool(val)
	case luago.LNumber:
		return float64(val)
	case luago.LString:
		return string(val)
	case *luago.LTable:
		return mapFromTable(val)
	default:
		return nil
	}
}
