package fitter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// 持久化到 sqlite 文件的参数表，启动时整表读入内存匹配
type SQLiteCheckpoint struct {
	path    string
	problem string

	mu  sync.Mutex
	db  *sql.DB
	mem *MemoryCheckpoint
}

func NewSQLiteCheckpoint(path, problem string) *SQLiteCheckpoint {
	return &SQLiteCheckpoint{path: path, problem: problem}
}

func (s *SQLiteCheckpoint) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS evaluations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			problem TEXT NOT NULL,
			params TEXT NOT NULL,
			err REAL NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return err
	}

	mem := NewMemoryCheckpoint()
	rows, err := db.QueryContext(ctx, `SELECT params, err FROM evaluations WHERE problem = ? ORDER BY id`, s.problem)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var payload string
		var e float64
		if err := rows.Scan(&payload, &e); err != nil {
			_ = db.Close()
			return err
		}
		var params []float64
		if err := json.Unmarshal([]byte(payload), &params); err != nil {
			_ = db.Close()
			return fmt.Errorf("decode params %s: %w", payload, err)
		}
		_ = mem.Record(ctx, params, e)
	}
	if err := rows.Err(); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	s.mem = mem
	return nil
}

func (s *SQLiteCheckpoint) Lookup(ctx context.Context, params []float64) (float64, bool, error) {
	mem, _, err := s.get()
	if err != nil {
		return 0, false, err
	}
	return mem.Lookup(ctx, params)
}

func (s *SQLiteCheckpoint) Record(ctx context.Context, params []float64, e float64) error {
	mem, db, err := s.get()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO evaluations (problem, params, err) VALUES (?, ?, ?)`,
		s.problem, string(payload), e); err != nil {
		return err
	}
	return mem.Record(ctx, params, e)
}

func (s *SQLiteCheckpoint) Entries() ([]Entry, error) {
	mem, _, err := s.get()
	if err != nil {
		return nil, err
	}
	return mem.Entries(), nil
}

func (s *SQLiteCheckpoint) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.mem = nil
	return err
}

func (s *SQLiteCheckpoint) get() (*MemoryCheckpoint, *sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, nil, errors.New("sqlite checkpoint is not initialized")
	}
	return s.mem, s.db, nil
}
