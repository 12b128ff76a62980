// Package indexdb mirrors the modification log into a sqlite database. Each
// chunk's edits are written as the chunk is evicted and the whole log once
// more at shutdown.
package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"

	"voxelsim/internal/modlog"
	"voxelsim/internal/voxel"
)

// ErrSeedMismatch is returned when a database recorded for one world seed
// is opened for another.
var ErrSeedMismatch = errors.New("index db belongs to a different seed")

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS modifications (
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			lx INTEGER NOT NULL,
			ly INTEGER NOT NULL,
			lz INTEGER NOT NULL,
			block INTEGER NOT NULL,
			PRIMARY KEY (cx, cz, lx, ly, lz)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// BindSeed records seed on first use and rejects a database written for a
// different one.
func (s *Store) BindSeed(ctx context.Context, seed int64) error {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'seed'`).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES('seed', ?)`, strconv.FormatInt(seed, 10))
		return err
	case err != nil:
		return err
	}
	if v != strconv.FormatInt(seed, 10) {
		return fmt.Errorf("%w: have %s, want %d", ErrSeedMismatch, v, seed)
	}
	return nil
}

// SaveChunk replaces the stored edits of one chunk with entries.
func (s *Store) SaveChunk(ctx context.Context, key voxel.ChunkKey, entries []modlog.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := saveChunk(ctx, tx, key, entries); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveLog writes every chunk of l in one transaction. Chunks that are in
// the database but not in l are left alone.
func (s *Store) SaveLog(ctx context.Context, l *modlog.Log) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, key := range l.Keys() {
		if err := saveChunk(ctx, tx, key, l.Chunk(key)); err != nil {
			return fmt.Errorf("chunk %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func saveChunk(ctx context.Context, tx *sql.Tx, key voxel.ChunkKey, entries []modlog.Entry) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM modifications WHERE cx = ? AND cz = ?`, key.CX, key.CZ); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO modifications(cx, cz, lx, ly, lz, block) VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		x, y, z := e.Local.Unpack()
		if _, err := stmt.ExecContext(ctx, key.CX, key.CZ, x, y, z, e.Value); err != nil {
			return err
		}
	}
	return nil
}

// LoadLog reads every stored edit into a new log. Rows whose cell does not
// fit a packed key or whose value is not a block id are skipped, logged and
// counted.
func (s *Store) LoadLog(ctx context.Context) (*modlog.Log, int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cx, cz, lx, ly, lz, block FROM modifications`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	l := modlog.New()
	skipped := 0
	for rows.Next() {
		var cx, cz, x, y, z int
		var v int32
		if err := rows.Scan(&cx, &cz, &x, &y, &z, &v); err != nil {
			return nil, 0, err
		}
		key := voxel.ChunkKey{CX: cx, CZ: cz}
		local, err := modlog.LocalKeyOf(x, y, z)
		if err != nil || v < modlog.Removed {
			log.Printf("indexdb: chunk %s: skipping row %d,%d,%d = %d", key, x, y, z, v)
			skipped++
			continue
		}
		l.Set(key, local, v)
	}
	return l, skipped, rows.Err()
}

// Count returns the number of stored edits.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM modifications`).Scan(&n)
	return n, err
}
