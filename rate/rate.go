// Package rate 提供阿伦尼乌斯形式的速率公式，温度单位 K，能量单位 eV
package rate

import "math"

// 玻尔兹曼常数，eV/K
const KB = 8.617333e-5

// prefactor * exp(-E / (k_B * T))，要求 T > 0，不做检查
func Arrhenius(prefactor, energy, T float64) float64 {
	return prefactor * math.Exp(-energy/(KB*T))
}

// 俘获速率 m^3 s^-1
func Trapping(prefactor, energy, T float64) float64 {
	return Arrhenius(prefactor, energy, T)
}

// 脱陷速率 s^-1
func Detrapping(prefactor, energy, T float64) float64 {
	return Arrhenius(prefactor, energy, T)
}

// 退火速率 s^-1
func Annealing(prefactor, energy, T float64) float64 {
	return Arrhenius(prefactor, energy, T)
}

// 前因子带 T^beta 修正的退火速率
func AnnealingWithBeta(prefactor, beta, energy, T float64) float64 {
	return Arrhenius(prefactor*math.Pow(T, beta), energy, T)
}

// 扩散系数 m^2 s^-1
func DiffusionCoefficient(D0, ED, T float64) float64 {
	return Arrhenius(D0, ED, T)
}
