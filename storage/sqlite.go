package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tolelom/monchain/core"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	k BLOB PRIMARY KEY,
	v BLOB NOT NULL
) WITHOUT ROWID`

// SQLiteDB implements DB on a single SQLite table.
type SQLiteDB struct {
	sqlDB *sql.DB
}

// OpenSQLiteDB opens (or creates) the database file at path.
func OpenSQLiteDB(path string) (*SQLiteDB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite: path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer; the state buffer already serialises access.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &SQLiteDB{sqlDB: sqlDB}, nil
}

func (s *SQLiteDB) Get(key []byte) ([]byte, error) {
	var v []byte
	err := s.sqlDB.QueryRow(`SELECT v FROM kv WHERE k = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %q: %w", key, err)
	}
	return v, nil
}

func (s *SQLiteDB) Set(key, value []byte) error {
	_, err := s.sqlDB.Exec(`INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, key, value)
	return err
}

func (s *SQLiteDB) Delete(key []byte) error {
	_, err := s.sqlDB.Exec(`DELETE FROM kv WHERE k = ?`, key)
	return err
}

// NewIterator reads the whole prefix range up front so no statement stays
// open on the single connection.
func (s *SQLiteDB) NewIterator(prefix []byte) Iterator {
	var (
		rows *sql.Rows
		err  error
	)
	if end := prefixEnd(prefix); end != nil {
		rows, err = s.sqlDB.Query(`SELECT k, v FROM kv WHERE k >= ? AND k < ? ORDER BY k`, prefix, end)
	} else {
		rows, err = s.sqlDB.Query(`SELECT k, v FROM kv WHERE k >= ? ORDER BY k`, prefix)
	}
	if err != nil {
		return &sliceIter{idx: -1, err: fmt.Errorf("sqlite: scan %q: %w", prefix, err)}
	}
	defer rows.Close()

	var pairs []kvPair
	for rows.Next() {
		var p kvPair
		if err := rows.Scan(&p.k, &p.v); err != nil {
			return &sliceIter{idx: -1, err: err}
		}
		pairs = append(pairs, p)
	}
	return &sliceIter{pairs: pairs, idx: -1, err: rows.Err()}
}

func (s *SQLiteDB) NewBatch() Batch {
	return &sqliteBatch{db: s}
}

func (s *SQLiteDB) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// prefixEnd returns the smallest key greater than every key with prefix,
// or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

type sqliteBatch struct {
	db  *SQLiteDB
	ops []kvPair // nil v means delete
}

func (b *sqliteBatch) Set(key, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	b.ops = append(b.ops, kvPair{k: append([]byte(nil), key...), v: v})
}

func (b *sqliteBatch) Delete(key []byte) {
	b.ops = append(b.ops, kvPair{k: append([]byte(nil), key...)})
}

func (b *sqliteBatch) Reset() { b.ops = nil }

func (b *sqliteBatch) Write() (err error) {
	if len(b.ops) == 0 {
		return nil
	}
	tx, err := b.db.sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, op := range b.ops {
		if op.v == nil {
			_, err = tx.Exec(`DELETE FROM kv WHERE k = ?`, op.k)
		} else {
			_, err = tx.Exec(`INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, op.k, op.v)
		}
		if err != nil {
			return fmt.Errorf("sqlite: write batch: %w", err)
		}
	}
	return tx.Commit()
}
