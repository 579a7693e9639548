package fitter

import (
	"fmt"
	"math"
	"strings"
)

// 搜索空间到物理参数的变换
type Transform int

const (
	Linear Transform = iota
	Log
)

func ParseTransform(s string) (Transform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear":
		return Linear, nil
	case "log":
		return Log, nil
	}
	return Linear, fmt.Errorf("fitter: unknown %q norm", s)
}

func (t Transform) String() string {
	if t == Log {
		return "log"
	}
	return "linear"
}

func (t Transform) Apply(x float64) float64 {
	if t == Log {
		return math.Pow(10, x)
	}
	return x
}

// 物理参数回到搜索空间
func (t Transform) Inverse(p float64) float64 {
	if t == Log {
		return math.Log10(p)
	}
	return p
}

func ApplyAll(ts []Transform, x []float64) []float64 {
	p := make([]float64, len(x))
	for i, v := range x {
		p[i] = ts[i].Apply(v)
	}
	return p
}
