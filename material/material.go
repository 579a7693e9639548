// Package material 提供钨材料的陷阱参数组合，包括内置的几组文献参数
// 以及从 TOML 文件读取的自定义参数
package material

import (
	"fmt"
	"sort"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
)

const (
	// 钨中氢扩散参数
	D0 = 4.1e-7 // m^2 s^-1
	ED = 0.39   // eV

	// 默认注入条件与厚度
	ImplantationFlux  = 1e20 // m^-2 s^-1
	ImplantationRange = 3e-9 // m
	Thickness         = 0.002

	DetrappingPrefactor = 1e13 // s^-1

	// 损伤陷阱退火参数
	AnnealingPrefactor = 6.18e-3
	AnnealingEnergy    = 0.28
)

const (
	Analytical5Trap       = "analytical_5trap"
	SchwartzSelinger6Trap = "schwartz_selinger_6trap"
	Festim6Trap           = "festim_6trap"
	Frauenfelder2Trap     = "frauenfelder_2trap"
)

type Material struct {
	Name         string              `toml:"name"`
	Thickness    float64             `toml:"thickness"`
	Implantation model.Implantation  `toml:"implantation"`
	Species      []model.TrapSpecies `toml:"species"`
}

func Names() []string {
	names := []string{Analytical5Trap, SchwartzSelinger6Trap, Festim6Trap, Frauenfelder2Trap}
	sort.Strings(names)
	return names
}

// 根据名称获取内置参数组合
func Preset(name string) (*Material, error) {
	m := &Material{
		Name:         name,
		Thickness:    Thickness,
		Implantation: DefaultImplantation(),
	}
	switch name {
	case Analytical5Trap:
		m.Species = append([]model.TrapSpecies{
			intrinsic("trap_1", 0.87, 5.22e-17, 2e22),
		}, damaged(5.22e-17, AnnealingPrefactor, AnnealingEnergy)...)
	case SchwartzSelinger6Trap:
		m.Species = append([]model.TrapSpecies{
			intrinsic("trap_1", 0.87, 5.22e-17, 8.22e25),
			intrinsic("trap_2", 1.00, 8.93e-17, 2.53e25),
		}, damaged(5.22e-17, AnnealingPrefactor, AnnealingEnergy)...)
	case Festim6Trap:
		m.Species = append(frauenfelder(), damaged(festimTrappingPrefactor(), 6.1838e-3, 0.2792)...)
	case Frauenfelder2Trap:
		m.Species = frauenfelder()
	default:
		return nil, fmt.Errorf("material: unknown preset %q, available: %v", name, Names())
	}
	return m, nil
}

func DefaultImplantation() model.Implantation {
	return model.Implantation{
		Flux:  ImplantationFlux,
		Range: ImplantationRange,
		D0:    D0,
		ED:    ED,
	}
}

func intrinsic(name string, ep, k0, density float64) model.TrapSpecies {
	return model.TrapSpecies{
		Name:                name,
		DetrappingEnergy:    ep,
		TrappingPrefactor:   k0,
		TrappingEnergy:      ED,
		DetrappingPrefactor: DetrappingPrefactor,
		MaxDensity:          density,
	}
}

// 四种中子损伤陷阱
func damaged(k0, A0, EA float64) []model.TrapSpecies {
	params := []struct {
		name    string
		ep      float64
		K, nMax float64
	}{
		{"trap_d1", 1.15, 1.5e28, 5.2e25},
		{"trap_d2", 1.35, 4.0e27, 4.5e25},
		{"trap_d3", 1.65, 3.0e27, 4.0e25},
		{"trap_d4", 1.85, 9.0e27, 4.2e25},
	}
	species := make([]model.TrapSpecies, len(params))
	for i, p := range params {
		species[i] = model.TrapSpecies{
			Name:                p.name,
			DetrappingEnergy:    p.ep,
			TrappingPrefactor:   k0,
			TrappingEnergy:      ED,
			DetrappingPrefactor: DetrappingPrefactor,
			MaxDensity:          p.nMax,
			CreationFactor:      p.K,
			AnnealingPrefactor:  A0,
			AnnealingEnergy:     EA,
		}
	}
	return species
}

// 晶格常数 1.1e-10 m，每个原子 6 个间隙位
func festimTrappingPrefactor() float64 {
	return D0 / (1.1e-10 * 1.1e-10 * 6 * model.TungstenDensity)
}

func frauenfelder() []model.TrapSpecies {
	k0 := festimTrappingPrefactor()
	return []model.TrapSpecies{
		intrinsic("trap_w1", 0.87, k0, 1.3e-3*model.TungstenDensity),
		intrinsic("trap_w2", 1.00, k0, 4e-4*model.TungstenDensity),
	}
}
