package fitter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
)

// 读取两列 CSV 参考数据，首行无法解析为数字时视为表头
func LoadReference(path string) (model.ReferenceDataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.ReferenceDataset{}, err
	}
	defer f.Close()
	ds, err := ReadReference(f)
	if err != nil {
		return ds, fmt.Errorf("%s: %w", path, err)
	}
	ds.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ds, nil
}

func ReadReference(r io.Reader) (model.ReferenceDataset, error) {
	var ds model.ReferenceDataset
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return ds, err
	}
	for i, rec := range records {
		if len(rec) < 2 {
			return ds, fmt.Errorf("line %d: need 2 columns, got %d", i+1, len(rec))
		}
		x, errX := cast.ToFloat64E(rec[0])
		y, errY := cast.ToFloat64E(rec[1])
		if errX != nil || errY != nil {
			if i == 0 {
				continue
			}
			return ds, fmt.Errorf("line %d: not numeric: %v", i+1, rec)
		}
		ds.X = append(ds.X, x)
		ds.Y = append(ds.Y, y)
	}
	if len(ds.X) == 0 {
		return ds, fmt.Errorf("no data rows")
	}
	return ds, nil
}
