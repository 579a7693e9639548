package fitter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"

	"github.com/spf13/cast"
)

// 已求值参数表，用于中断后重启时跳过重复计算
type Checkpoint interface {
	Lookup(ctx context.Context, params []float64) (float64, bool, error)
	Record(ctx context.Context, params []float64, err float64) error
}

// 参数匹配的相对、绝对容差
const (
	matchRelTol = 1e-5
	matchAbsTol = 1e-8
)

type Entry struct {
	Params []float64
	Err    float64
}

func matches(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > matchAbsTol+matchRelTol*math.Abs(b[i]) {
			return false
		}
	}
	return true
}

// 内存中的参数表
type MemoryCheckpoint struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryCheckpoint() *MemoryCheckpoint {
	return &MemoryCheckpoint{}
}

func (m *MemoryCheckpoint) Lookup(_ context.Context, params []float64) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if matches(params, e.Params) {
			return e.Err, true, nil
		}
	}
	return 0, false, nil
}

func (m *MemoryCheckpoint) Record(_ context.Context, params []float64, err float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Params: append([]float64(nil), params...), Err: err})
	return nil
}

func (m *MemoryCheckpoint) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Entry(nil), m.entries...)
}

func (m *MemoryCheckpoint) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// 读取 "p1,...,pn,err" 格式的历史记录，返回导入行数
func LoadCheckpointCSV(ctx context.Context, r io.Reader, into Checkpoint) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	n := 0
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("fitter: checkpoint line %d: %w", line, err)
		}
		if len(rec) < 2 {
			return n, fmt.Errorf("fitter: checkpoint line %d: need parameters and error, got %d fields", line, len(rec))
		}
		row := make([]float64, len(rec))
		for i, field := range rec {
			v, err := cast.ToFloat64E(field)
			if err != nil {
				return n, fmt.Errorf("fitter: checkpoint line %d field %d: %w", line, i+1, err)
			}
			row[i] = v
		}
		if err := into.Record(ctx, row[:len(row)-1], row[len(row)-1]); err != nil {
			return n, err
		}
		n++
	}
}

func WriteCheckpointCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	for _, e := range entries {
		rec := make([]string, 0, len(e.Params)+1)
		for _, p := range e.Params {
			rec = append(rec, strconv.FormatFloat(p, 'g', -1, 64))
		}
		rec = append(rec, strconv.FormatFloat(e.Err, 'g', -1, 64))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
