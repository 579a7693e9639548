package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/kinetics"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/retention"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/steady"
)

var ErrTooFewTimes = errors.New("sweep: need at least two output times")

// 各工况点的密度轨迹，Densities[i] 对应 Summary.Rows[i]
type TransientSweep struct {
	Summary   *Table
	Times     []float64
	Densities [][]float64
}

// 从 n=0 积分单一损伤陷阱，记录末态密度、稳态密度和饱和时间（未饱和为 NaN）
func (d *Driver) TrapTransient(ctx context.Context, p kinetics.Params, temps, dpas, ts []float64) (*TransientSweep, error) {
	if len(ts) < 2 {
		return nil, ErrTooFewTimes
	}
	points := Points(temps, dpas)
	out := &TransientSweep{Times: ts, Densities: make([][]float64, len(points))}
	columns := []string{ColTemperature, ColDamage, "n_end", "n_steady", "t_saturation"}
	threshold := d.threshold()

	t, err := d.run(ctx, "transient", columns, len(points), func(i int) ([]float64, error) {
		point := points[i]
		ns, err := kinetics.Transient(p, point, 0, ts, d.ODE)
		if err != nil {
			return nil, fmt.Errorf("T=%g dpa/fpy=%g: %w", point.Temperature, point.DamageRate.PerFPY(), err)
		}
		out.Densities[i] = ns
		tSat, ok := kinetics.SaturationTime(ts, ns, threshold)
		if !ok {
			tSat = math.NaN()
		}
		nSteady := steady.TrapDensity(point.Temperature, point.DamageRate.PerSecond(), p.K, p.NMax, p.A0, p.EA)
		return []float64{point.Temperature, point.DamageRate.PerFPY(), ns[len(ns)-1], nSteady, tSat}, nil
	})
	if err != nil {
		return nil, err
	}
	out.Summary = t
	return out, nil
}

// 解析饱和时间：陷阱密度从 0 达到稳态值 threshold 倍所需时间，无损伤的点为 NaN
func (d *Driver) CharacteristicTimes(ctx context.Context, p kinetics.Params, temps, dpas []float64) (*Table, error) {
	points := Points(temps, dpas)
	threshold := d.threshold()
	columns := []string{ColTemperature, ColDamage, "t_characteristic", "n_steady"}
	return d.run(ctx, "chartime", columns, len(points), func(i int) ([]float64, error) {
		point := points[i]
		phi := point.DamageRate.PerSecond()
		return []float64{
			point.Temperature,
			point.DamageRate.PerFPY(),
			kinetics.AnalyticalSaturationTime(threshold, p.K, p.NMax, phi, p.A0, p.EA, point.Temperature),
			steady.TrapDensity(point.Temperature, phi, p.K, p.NMax, p.A0, p.EA),
		}, nil
	})
}

// 损伤陷阱密度取曝露 duration 秒后的瞬态值，本征陷阱不变，其余与稳态模型相同
func (d *Driver) TransientRetention(ctx context.Context, m *retention.Model, temps, dpas []float64,
	duration float64) (*Table, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("sweep: duration must be positive, got %g", duration)
	}
	names := m.Names()
	columns := []string{ColTemperature, ColDamage, "retention", "mobile", "trapped"}
	columns = append(columns, speciesColumns("n_", names)...)
	columns = append(columns, speciesColumns("fr_", names)...)

	points := Points(temps, dpas)
	ts := []float64{0, duration}
	return d.run(ctx, "transient_retention", columns, len(points), func(i int) ([]float64, error) {
		point := points[i]
		densities := make([]float64, len(m.Species))
		for j, s := range m.Species {
			if s.Intrinsic() {
				densities[j] = s.MaxDensity
				continue
			}
			ns, err := kinetics.Transient(kinetics.ParamsOf(s), point, 0, ts, d.ODE)
			if err != nil {
				return nil, fmt.Errorf("%s at T=%g: %w", s.Name, point.Temperature, err)
			}
			densities[j] = ns[len(ns)-1]
		}
		s, err := m.EvaluateWithDensities(point.Temperature, densities)
		if err != nil {
			return nil, err
		}
		row := []float64{point.Temperature, point.DamageRate.PerFPY(), s.Total, s.Mobile, s.Trapped}
		row = append(row, s.Densities...)
		return append(row, s.FillingRatios...), nil
	})
}
