package sweep

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/spf13/cast"
)

const (
	ColTime      = "ts"
	ColRetention = "Total_retention_volume_1"
)

// 第 id 个陷阱的总量列名
func TrapColumn(id string) string {
	return "Total_" + id + "_volume_1"
}

// 外部求解器输出的一个 derived_quantities.csv，按列名存放
type Derived struct {
	Columns map[string][]float64
}

func (dq *Derived) Column(name string) ([]float64, error) {
	col, ok := dq.Columns[name]
	if !ok {
		return nil, fmt.Errorf("sweep: no column %q", name)
	}
	return col, nil
}

// 列的最后一个值，即模拟结束时刻的量
func (dq *Derived) Final(name string) (float64, error) {
	col, err := dq.Column(name)
	if err != nil {
		return 0, err
	}
	if len(col) == 0 {
		return 0, fmt.Errorf("sweep: column %q is empty", name)
	}
	return col[len(col)-1], nil
}

func LoadDerived(path string) (*Derived, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dq, err := ReadDerived(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dq, nil
}

// 首行为列名，ts 与 Total_retention_volume_1 必须存在
func ReadDerived(r io.Reader) (*Derived, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	dq := &Derived{Columns: make(map[string][]float64, len(header))}
	for _, h := range header {
		dq.Columns[h] = nil
	}
	for _, required := range []string{ColTime, ColRetention} {
		if _, ok := dq.Columns[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for j, field := range rec {
			v, err := cast.ToFloat64E(strings.TrimSpace(field))
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, header[j], err)
			}
			dq.Columns[header[j]] = append(dq.Columns[header[j]], v)
		}
	}
	return dq, nil
}

// 读取网格上每个工况点的结果文件，取 column 的末值；缺失或损坏的文件记为 NaN 并跳过
func (d *Driver) Collect(ctx context.Context, root string, temps, dpas []float64, column string) (*Table, error) {
	if column == "" {
		column = ColRetention
	}
	columns := []string{ColTemperature, ColDamage, column}
	logger := d.logger().WithField("root", root)
	return d.run(ctx, "collect", columns, len(temps)*len(dpas), func(i int) ([]float64, error) {
		dpa, T := dpas[i/len(temps)], temps[i%len(temps)]
		row := []float64{T, dpa, math.NaN()}
		path := ResultPath(root, dpa, T)
		dq, err := LoadDerived(path)
		if err != nil {
			logger.WithError(err).WithField("path", path).Warn("skipping result")
			return row, nil
		}
		v, err := dq.Final(column)
		if err != nil {
			logger.WithError(err).WithField("path", path).Warn("skipping result")
			return row, nil
		}
		row[2] = v
		return row, nil
	})
}
