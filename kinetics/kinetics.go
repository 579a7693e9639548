// Package kinetics 描述中子损伤陷阱密度随时间的演化：
// 损伤产生陷阱、陷阱趋于饱和、热退火消除陷阱。
//
//	dn/dt = phi*K*(1 - n/nMax) - A(T)*n
package kinetics

import (
	"math"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/exposure"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/rate"
)

// 陷阱产生与退火参数
type Params struct {
	K    float64 // m^-3 dpa^-1
	NMax float64 // m^-3
	A0   float64 // s^-1
	EA   float64 // eV
	// 仅用于 T^beta 修正的退火
	Beta float64
}

func ParamsOf(s model.TrapSpecies) Params {
	return Params{
		K:    s.CreationFactor,
		NMax: s.MaxDensity,
		A0:   s.AnnealingPrefactor,
		EA:   s.AnnealingEnergy,
	}
}

// dn/dt，phi 单位 dpa/s
func CreationRate(n, t, phi, K, nMax, A0, EA, T float64) float64 {
	return phi*K*(1-n/nMax) - rate.Annealing(A0, EA, T)*n
}

// 退火前因子乘以 T^beta
func CreationRateWithBeta(n, t, phi, K, nMax, A0, beta, EA, T float64) float64 {
	return phi*K*(1-n/nMax) - rate.AnnealingWithBeta(A0, beta, EA, T)*n
}

// t < tDamage 时为 (phi, TDamage)，之后为 (0, TAnneal)
func DamageThenAnnealing(n, t, tDamage, phi, K, nMax, A0, EA, TDamage, TAnneal float64) float64 {
	if t < tDamage {
		return CreationRate(n, t, phi, K, nMax, A0, EA, TDamage)
	}
	return CreationRate(n, t, 0, K, nMax, A0, EA, TAnneal)
}

// 按辐照历史取当前阶段的 (phi, T)
func ScheduledRate(n, t float64, p Params, s *exposure.Schedule) float64 {
	point := s.At(t)
	return CreationRate(n, t, point.DamageRate.PerSecond(), p.K, p.NMax, p.A0, p.EA, point.Temperature)
}

// phi 和 T 恒定时的解析解，F + A*nMax 为 0 时返回 n0
func Analytical(t, K, nMax, phi, A0, EA, T, n0 float64) float64 {
	F := phi * K
	A := rate.Annealing(A0, EA, T)
	den := F + A*nMax
	if den == 0 {
		return n0
	}
	return F*nMax/den + (F*n0-F*nMax+A*n0*nMax)*math.Exp(t*(-F/nMax-A))/den
}

// 从 0 增长到稳态值 threshold 倍所需时间的解析值，无损伤 (phi == 0) 时没有定义，返回 NaN
func AnalyticalSaturationTime(threshold, K, nMax, phi, A0, EA, T float64) float64 {
	if phi == 0 {
		return math.NaN()
	}
	lambda := phi*K/nMax + rate.Annealing(A0, EA, T)
	if lambda == 0 {
		return math.Inf(1)
	}
	return -math.Log(1-threshold) / lambda
}

// 第一个满足 n/n(t_end) > threshold 的时刻
func SaturationTime(ts, ns []float64, threshold float64) (float64, bool) {
	if len(ts) == 0 || len(ts) != len(ns) {
		return 0, false
	}
	final := ns[len(ns)-1]
	if final == 0 {
		return 0, false
	}
	for i, n := range ns {
		if n/final > threshold {
			return ts[i], true
		}
	}
	return 0, false
}
