package fitter

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// 分段线性插值，区间外按两端线段斜率外推
func Interpolate(xs, ys, at []float64) ([]float64, error) {
	if len(xs) != len(ys) {
		return nil, &ShapeError{Name: "model output", Got: len(ys), Want: len(xs)}
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("fitter: need at least 2 points to interpolate, got %d", len(xs))
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("fitter: interpolate: %w", err)
	}

	n := len(xs)
	out := make([]float64, len(at))
	for i, x := range at {
		switch {
		case x < xs[0]:
			out[i] = ys[0] + (x-xs[0])*(ys[1]-ys[0])/(xs[1]-xs[0])
		case x > xs[n-1]:
			out[i] = ys[n-1] + (x-xs[n-1])*(ys[n-1]-ys[n-2])/(xs[n-1]-xs[n-2])
		default:
			out[i] = pl.Predict(x)
		}
	}
	return out, nil
}
