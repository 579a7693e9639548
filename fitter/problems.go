package fitter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/kinetics"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/ode"
)

// 退火实验：损伤后在不同温度退火 1 h，剩余陷阱 2 密度（以钨原子密度归一）
func EtienneTrap2() model.ReferenceDataset {
	return model.ReferenceDataset{
		Name: "etienne_trap_2",
		X:    []float64{298, 600, 800, 1000, 1200},
		Y:    []float64{0.28, 0.23, 0.19, 0.15, 0.05},
	}
}

// 370 K 辐照 24 h 后各损伤陷阱密度 (m^-3) 随损伤量 (dpa) 的变化
func SelingerTrap(i int) (model.ReferenceDataset, error) {
	dpa := []float64{0, 0.001, 0.005, 0.023, 0.1, 0.23, 0.5, 2.5}
	var y []float64
	switch i {
	case 1:
		y = []float64{0, 3.5e24, 5e24, 1.75e25, 3.7e25, 4.1e25, 4.2e25, 4.8e25}
	case 2:
		y = []float64{0, 1e24, 2.4e24, 1e25, 2.5e25, 2.8e25, 2.9e25, 3.3e25}
	case 3:
		y = []float64{0, 1e24, 1.5e24, 6.0e24, 1.7e25, 2.1e25, 2.4e25, 2.5e25}
	case 4:
		y = []float64{0, 1e24, 2.5e24, 2e25, 4.3e25, 5.0e25, 5.7e25, 6.1e25}
	default:
		return model.ReferenceDataset{}, fmt.Errorf("fitter: no damaged trap %d, want 1-4", i)
	}
	return model.ReferenceDataset{Name: fmt.Sprintf("selinger_trap_%d", i), X: dpa, Y: y}, nil
}

// 拟合退火参数 (A0, EA)，beta 为 true 时拟合 (A0, beta, EA)
func AnnealingProblem(ref model.ReferenceDataset, beta bool, opts *ode.Options) *Problem {
	n0 := 0.28 * model.TungstenDensity
	p := &Problem{
		Name:      "annealing",
		Reference: ref,
		Bounds:    []WeightBound{{Lo: 590, Hi: 610, Weight: 5}},
		FAtol:     1e-5,
		XAtol:     1e-5,
	}
	normalise := func(ns []float64) []float64 {
		floats.Scale(1/model.TungstenDensity, ns)
		return ns
	}
	if beta {
		p.Name = "annealing_beta"
		p.ModelX = floats.Span(make([]float64, 20), 1, 1400)
		p.Transforms = []Transform{Linear, Linear, Linear}
		p.InitialGuess = []float64{kinetics.OptimisedA0, 1, kinetics.OptimisedEA}
		p.Model = func(params []float64) ([]float64, error) {
			ns, err := kinetics.AnnealingSimBeta(params[0], params[1], params[2], p.ModelX, n0, kinetics.AnnealDuration, opts)
			if err != nil {
				return nil, err
			}
			return normalise(ns), nil
		}
		return p
	}
	p.ModelX = floats.Span(make([]float64, 100), 1, 1400)
	p.Transforms = []Transform{Linear, Linear}
	p.InitialGuess = []float64{kinetics.OptimisedA0, kinetics.OptimisedEA}
	p.Model = func(params []float64) ([]float64, error) {
		ns, err := kinetics.AnnealingSim(params[0], params[1], p.ModelX, n0, kinetics.AnnealDuration, opts)
		if err != nil {
			return nil, err
		}
		return normalise(ns), nil
	}
	return p
}

// 拟合损伤陷阱产生参数 (K, nMax)，在对数空间搜索
func DamagingProblem(ref model.ReferenceDataset, opts *ode.Options) *Problem {
	p := &Problem{
		Name:         "damaging",
		Reference:    ref,
		ModelX:       floats.Span(make([]float64, 50), 0, 3),
		Transforms:   []Transform{Log, Log},
		Bounds:       []WeightBound{{Lo: 2, Hi: 3, Weight: 1.75}},
		InitialGuess: []float64{math.Log10(4e27), math.Log10(4.5e25)},
		FAtol:        1e19,
		XAtol:        1e19,
	}
	p.Model = func(params []float64) ([]float64, error) {
		return kinetics.DamagingSim(params[0], params[1], kinetics.OptimisedA0, kinetics.OptimisedEA,
			kinetics.DamageTemperature, p.ModelX, kinetics.DamageDuration, opts)
	}
	return p
}
