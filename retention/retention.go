// Package retention 把各陷阱的稳态结果汇总为总氢滞留量
package retention

import (
	"fmt"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/material"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/steady"
)

// 在 (T, phi) 下计算可动浓度、各陷阱密度与填充率、被俘获浓度之和及总滞留量
func Aggregate(T float64, phi model.DamageRate, species []model.TrapSpecies, imp model.Implantation,
	thickness float64) model.RetentionState {
	point := model.OperatingPoint{DamageRate: phi, Temperature: T}
	densities := make([]float64, len(species))
	for i, s := range species {
		densities[i] = steady.SpeciesDensity(s, point)
	}
	return withDensities(T, species, densities, imp, thickness)
}

// ShapeError 表示给定的密度个数与陷阱种类数不一致
type ShapeError struct {
	Species   int
	Densities int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("retention: %d densities for %d trap species", e.Densities, e.Species)
}

// 陷阱密度已知（例如由瞬态积分得到）时计算滞留量
func WithDensities(T float64, species []model.TrapSpecies, densities []float64, imp model.Implantation,
	thickness float64) (model.RetentionState, error) {
	if len(densities) != len(species) {
		return model.RetentionState{}, &ShapeError{Species: len(species), Densities: len(densities)}
	}
	return withDensities(T, species, densities, imp, thickness), nil
}

func withDensities(T float64, species []model.TrapSpecies, densities []float64, imp model.Implantation,
	thickness float64) model.RetentionState {
	state := model.RetentionState{
		Densities:     densities,
		FillingRatios: make([]float64, len(species)),
	}
	state.Mobile = steady.MobileConcentration(T, imp.Flux, imp.Range, imp.D0, imp.ED)
	for i, s := range species {
		ct, fr := steady.SpeciesTrapped(s, T, state.Mobile, densities[i])
		state.FillingRatios[i] = fr
		state.Trapped += ct
	}
	state.Total = steady.TotalRetention(state.Mobile, state.Trapped, thickness)
	return state
}

// 由一组陷阱、注入条件和厚度构成的模型
type Model struct {
	Species      []model.TrapSpecies
	Implantation model.Implantation
	Thickness    float64
}

func FromMaterial(m *material.Material) *Model {
	return &Model{
		Species:      m.Species,
		Implantation: m.Implantation,
		Thickness:    m.Thickness,
	}
}

func (m *Model) Evaluate(p model.OperatingPoint) model.RetentionState {
	return Aggregate(p.Temperature, p.DamageRate, m.Species, m.Implantation, m.Thickness)
}

func (m *Model) EvaluateWithDensities(T float64, densities []float64) (model.RetentionState, error) {
	return WithDensities(T, m.Species, densities, m.Implantation, m.Thickness)
}

func (m *Model) Names() []string {
	names := make([]string, len(m.Species))
	for i, s := range m.Species {
		names[i] = s.Name
	}
	return names
}
