// Package sqlitehost implements the sqlite.* surface of the host SDK
// (spec §4.8): open/exec/query/begin/commit/rollback/close, gated by
// path policy and keyed by opaque handles so embedded scripts never see
// a raw *sql.DB.
package sqlitehost

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/yggdrasil-au/remake-engine/internal/errs"
	"github.com/yggdrasil-au/remake-engine/internal/policy"
)

// Row is a single result row keyed by column name.
type Row map[string]any

// Host manages open database and transaction handles for one operation
// run. It is not safe for reuse across runs — CloseAll releases everything.
type Host struct {
	paths *policy.PathPolicy
	path  policy.PathPrompt

	mu   sync.Mutex
	dbs  map[int64]*sql.DB
	txs  map[int64]*sql.Tx
	next int64
}

// New builds a Host. prompt is forwarded to the path policy for any
// database path outside the known-allowed roots.
func New(paths *policy.PathPolicy, prompt policy.PathPrompt) *Host {
	return &Host{
		paths: paths,
		path:  prompt,
		dbs:   map[int64]*sql.DB{},
		txs:   map[int64]*sql.Tx{},
	}
}

// Open opens (creating if absent) a sqlite database at path, returning
// an opaque handle.
func (h *Host) Open(path string) (int64, error) {
	if h.paths != nil {
		ok, err := h.paths.Check(path, h.path)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, errs.New(errs.DisallowedPath, "sqlite path %s not approved", path)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return 0, errs.Wrap(errs.IOError, err, "open sqlite database %s", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return 0, errs.Wrap(errs.IOError, err, "open sqlite database %s", path)
	}

	id := atomic.AddInt64(&h.next, 1)
	h.mu.Lock()
	h.dbs[id] = db
	h.mu.Unlock()
	return id, nil
}

// Exec runs a non-query statement against handle, returning rows affected.
func (h *Host) Exec(handle int64, query string, args ...any) (int64, error) {
	db, err := h.db(handle)
	if err != nil {
		return 0, err
	}
	res, err := db.Exec(query, args...)
	if err != nil {
		return 0, errs.Wrap(errs.IOError, err, "sqlite exec")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Query runs a SELECT against handle, materializing every row.
func (h *Host) Query(handle int64, query string, args ...any) ([]Row, error) {
	db, err := h.db(handle)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, err, "sqlite query")
	}
	defer rows.Close()
	return scanRows(rows)
}

// Begin starts a transaction on handle, returning its own handle id.
func (h *Host) Begin(handle int64) (int64, error) {
	db, err := h.db(handle)
	if err != nil {
		return 0, err
	}
	tx, err := db.Begin()
	if err != nil {
		return 0, errs.Wrap(errs.IOError, err, "sqlite begin")
	}
	id := atomic.AddInt64(&h.next, 1)
	h.mu.Lock()
	h.txs[id] = tx
	h.mu.Unlock()
	return id, nil
}

// Commit commits the transaction identified by txHandle.
func (h *Host) Commit(txHandle int64) error {
	tx, err := h.tx(txHandle)
	if err != nil {
		return err
	}
	h.dropTx(txHandle)
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.IOError, err, "sqlite commit")
	}
	return nil
}

// Rollback rolls back the transaction identified by txHandle.
func (h *Host) Rollback(txHandle int64) error {
	tx, err := h.tx(txHandle)
	if err != nil {
		return err
	}
	h.dropTx(txHandle)
	if err := tx.Rollback(); err != nil {
		return errs.Wrap(errs.IOError, err, "sqlite rollback")
	}
	return nil
}

// Close closes the database identified by handle.
func (h *Host) Close(handle int64) error {
	h.mu.Lock()
	db, ok := h.dbs[handle]
	if ok {
		delete(h.dbs, handle)
	}
	h.mu.Unlock()
	if !ok {
		return errs.New(errs.IOError, "sqlite handle %d not open", handle)
	}
	return db.Close()
}

// CloseAll closes every database and transaction still open on this
// host, used to clean up after an operation exits or panics.
func (h *Host) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, tx := range h.txs {
		tx.Rollback()
		delete(h.txs, id)
	}
	for id, db := range h.dbs {
		db.Close()
		delete(h.dbs, id)
	}
}

func (h *Host) db(handle int64) (*sql.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	db, ok := h.dbs[handle]
	if !ok {
		return nil, errs.New(errs.IOError, "sqlite handle %d not open", handle)
	}
	return db, nil
}

func (h *Host) tx(handle int64) (*sql.Tx, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	tx, ok := h.txs[handle]
	if !ok {
		return nil, errs.New(errs.IOError, "sqlite transaction %d not open", handle)
	}
	return tx, nil
}

func (h *Host) dropTx(handle int64) {
	h.mu.Lock()
	delete(h.txs, handle)
	h.mu.Unlock()
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeSQLValue(vals[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func normalizeSQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
