package kinetics

import (
	"fmt"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/exposure"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/ode"
)

// 拟合中使用的实验条件
const (
	DamageDuration    = 3600 * 24 // s
	DamageTemperature = 370       // K
	AnnealDuration    = 3600      // s

	// 退火拟合得到的参数
	OptimisedA0 = 6.1838e-03
	OptimisedEA = 0.2792
)

// 标量方程右端
type RHS func(n, t float64) float64

// 在 ts 上积分，返回各时刻的 n
func Integrate(rhs RHS, n0 float64, ts []float64, opts *ode.Options) ([]float64, error) {
	f := func(t float64, y, dydt []float64) {
		dydt[0] = rhs(y[0], t)
	}
	sol, err := ode.Solve(f, []float64{n0}, ts, opts)
	if err != nil {
		return nil, err
	}
	ns := make([]float64, len(sol.Y))
	for i, y := range sol.Y {
		ns[i] = y[0]
	}
	return ns, nil
}

func Transient(p Params, point model.OperatingPoint, n0 float64, ts []float64, opts *ode.Options) ([]float64, error) {
	phi, T := point.DamageRate.PerSecond(), point.Temperature
	return Integrate(func(n, t float64) float64 {
		return CreationRate(n, t, phi, p.K, p.NMax, p.A0, p.EA, T)
	}, n0, ts, opts)
}

func TransientBeta(p Params, point model.OperatingPoint, n0 float64, ts []float64, opts *ode.Options) ([]float64, error) {
	phi, T := point.DamageRate.PerSecond(), point.Temperature
	return Integrate(func(n, t float64) float64 {
		return CreationRateWithBeta(n, t, phi, p.K, p.NMax, p.A0, p.Beta, p.EA, T)
	}, n0, ts, opts)
}

// 多阶段辐照历史，阶段切换时刻作为积分断点
func Scheduled(p Params, s *exposure.Schedule, n0 float64, ts []float64, opts *ode.Options) ([]float64, error) {
	var o ode.Options
	if opts != nil {
		o = *opts
	}
	o.Critical = append(append([]float64(nil), o.Critical...), s.Breakpoints()...)
	return Integrate(func(n, t float64) float64 {
		return ScheduledRate(n, t, p, s)
	}, n0, ts, &o)
}

func DamageThenAnneal(p Params, tDamage float64, phi model.DamageRate, TDamage, TAnneal, n0 float64,
	ts []float64, opts *ode.Options) ([]float64, error) {
	return Scheduled(p, exposure.NewDamageThenAnneal(tDamage, phi, TDamage, TAnneal), n0, ts, opts)
}

// 每个温度下无损伤退火 tAnneal 秒，返回退火结束时的陷阱密度
func AnnealingSim(A0, EA float64, temps []float64, n0, tAnneal float64, opts *ode.Options) ([]float64, error) {
	return annealingSim(Params{NMax: 1, A0: A0, EA: EA}, temps, n0, tAnneal, opts, Transient)
}

func AnnealingSimBeta(A0, beta, EA float64, temps []float64, n0, tAnneal float64, opts *ode.Options) ([]float64, error) {
	return annealingSim(Params{NMax: 1, A0: A0, EA: EA, Beta: beta}, temps, n0, tAnneal, opts, TransientBeta)
}

type transientFunc func(Params, model.OperatingPoint, float64, []float64, *ode.Options) ([]float64, error)

func annealingSim(p Params, temps []float64, n0, tAnneal float64, opts *ode.Options, run transientFunc) ([]float64, error) {
	out := make([]float64, len(temps))
	ts := []float64{0, tAnneal}
	for i, T := range temps {
		ns, err := run(p, model.OperatingPoint{Temperature: T}, n0, ts, opts)
		if err != nil {
			return nil, fmt.Errorf("annealing at T=%g: %w", T, err)
		}
		out[i] = ns[len(ns)-1]
	}
	return out, nil
}

// 每个损伤量在 tDamage 内均匀施加，返回辐照结束时的陷阱密度
func DamagingSim(K, nMax, A0, EA, T float64, dpas []float64, tDamage float64, opts *ode.Options) ([]float64, error) {
	p := Params{K: K, NMax: nMax, A0: A0, EA: EA}
	out := make([]float64, len(dpas))
	ts := []float64{0, tDamage}
	for i, dpa := range dpas {
		point := model.OperatingPoint{DamageRate: model.DPAPerSecond(dpa / tDamage), Temperature: T}
		ns, err := Transient(p, point, 0, ts, opts)
		if err != nil {
			return nil, fmt.Errorf("damaging to %g dpa: %w", dpa, err)
		}
		out[i] = ns[len(ns)-1]
	}
	return out, nil
}
