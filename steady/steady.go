// Package steady 给出陷阱密度、可动氢浓度与被俘获氢浓度的稳态解析解
package steady

import (
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/rate"
)

// 不考虑退火时传入的退火参数
const (
	NoAnnealingPrefactor = 0.0
	NoAnnealingEnergy    = 1.0
)

// 稳态陷阱密度 m^-3，phi 单位 dpa/s，phi 为 0 时严格返回 0
func TrapDensity(T, phi, K, nMax, A0, EA float64) float64 {
	if phi == 0 {
		return 0
	}
	A := rate.Annealing(A0, EA, T)
	return 1 / (A/(phi*K) + 1/nMax)
}

// 可动氢浓度 m^-3
func MobileConcentration(T, flux, rangeParam, D0, ED float64) float64 {
	return flux * rangeParam / rate.DiffusionCoefficient(D0, ED, T)
}

// 被俘获氢浓度 m^-3 及填充率
func TrappedConcentration(T, cm, kT0, ET, pD0, ED, density, A0, EA float64) (float64, float64) {
	A := rate.Annealing(A0, EA, T)
	vt := rate.Trapping(kT0, ET, T)
	vdt := rate.Detrapping(pD0, ED, T)

	fillingRatio := 1 / (1 + (vdt+A)/(vt*cm))
	return fillingRatio * density, fillingRatio
}

// 总滞留量 m^-2
func TotalRetention(cm, ctSum, thickness float64) float64 {
	return thickness * (cm + ctSum)
}

// 某一陷阱在工况点下的稳态密度，本征陷阱返回常数密度
func SpeciesDensity(s model.TrapSpecies, p model.OperatingPoint) float64 {
	if s.Intrinsic() {
		return s.MaxDensity
	}
	return TrapDensity(p.Temperature, p.DamageRate.PerSecond(), s.CreationFactor, s.MaxDensity,
		s.AnnealingPrefactor, s.AnnealingEnergy)
}

// 某一陷阱的被俘获浓度和填充率，本征陷阱不计退火
func SpeciesTrapped(s model.TrapSpecies, T, cm, density float64) (float64, float64) {
	A0, EA := s.AnnealingPrefactor, s.AnnealingEnergy
	if s.Intrinsic() {
		A0, EA = NoAnnealingPrefactor, NoAnnealingEnergy
	}
	return TrappedConcentration(T, cm, s.TrappingPrefactor, s.TrappingEnergy,
		s.DetrappingPrefactor, s.DetrappingEnergy, density, A0, EA)
}
