package fitter

import (
	"fmt"
	"math"
)

// x 落在 (Lo, Hi] 内的点误差乘以 Weight
type WeightBound struct {
	Lo     float64
	Hi     float64
	Weight float64
}

// ShapeError 表示参与比较的数组长度不一致
type ShapeError struct {
	Name string
	Got  int
	Want int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("fitter: %s has length %d, want %d", e.Name, e.Got, e.Want)
}

// 加权平均绝对误差 mean(|p - r| * w)
func MeanAbsoluteError(predicted, reference, x []float64, bounds []WeightBound) (float64, error) {
	if len(predicted) != len(reference) {
		return 0, &ShapeError{Name: "predicted", Got: len(predicted), Want: len(reference)}
	}
	if (x != nil || len(bounds) > 0) && len(x) != len(reference) {
		return 0, &ShapeError{Name: "x", Got: len(x), Want: len(reference)}
	}
	if len(reference) == 0 {
		return 0, nil
	}

	var sum float64
	for i := range reference {
		w := 1.0
		for _, b := range bounds {
			if x[i] > b.Lo && x[i] <= b.Hi {
				w = b.Weight
			}
		}
		sum += math.Abs(predicted[i]-reference[i]) * w
	}
	return sum / float64(len(reference)), nil
}
