package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

type Table struct {
	Columns []string
	Rows    [][]float64
}

func NewTable(columns []string, rows int) *Table {
	return &Table{Columns: columns, Rows: make([][]float64, rows)}
}

func (t *Table) index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func (t *Table) Column(name string) ([]float64, error) {
	j := t.index(name)
	if j < 0 {
		return nil, fmt.Errorf("sweep: no column %q", name)
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[j]
	}
	return out, nil
}

func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for j, v := range row {
			rec[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(rec[:len(row)]); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
