// Package sweep 在温度与损伤速率网格上批量运行模型，并汇总外部求解器的输出
package sweep

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
)

// 外部求解器每个工况点输出的文件名
const DerivedQuantities = "derived_quantities.csv"

func Linspace(lo, hi float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// 等比网格，lo 和 hi 须为正
func Geomspace(lo, hi float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{lo}
	}
	return floats.LogSpan(make([]float64, n), lo, hi)
}

// 外层为损伤速率，内层为温度
func Points(temps, dpas []float64) []model.OperatingPoint {
	points := make([]model.OperatingPoint, 0, len(temps)*len(dpas))
	for _, dpa := range dpas {
		for _, T := range temps {
			points = append(points, model.OperatingPoint{DamageRate: model.DPAPerFPY(dpa), Temperature: T})
		}
	}
	return points
}

// 工况点结果目录：root/dpa=1.00e+01/T=761
func ResultDir(root string, dpa, T float64) string {
	return filepath.Join(root, fmt.Sprintf("dpa=%.2e", dpa), fmt.Sprintf("T=%.0f", T))
}

func ResultPath(root string, dpa, T float64) string {
	return filepath.Join(ResultDir(root, dpa, T), DerivedQuantities)
}
