package model

// 陷阱种类参数，构造后不再修改
type TrapSpecies struct {
	Name                string  `json:"name" toml:"name"`
	DetrappingEnergy    float64 `json:"detrapping_energy" toml:"detrapping_energy"`       // eV
	TrappingPrefactor   float64 `json:"trapping_prefactor" toml:"trapping_prefactor"`     // m^3 s^-1
	TrappingEnergy      float64 `json:"trapping_energy" toml:"trapping_energy"`           // eV
	DetrappingPrefactor float64 `json:"detrapping_prefactor" toml:"detrapping_prefactor"` // s^-1
	MaxDensity          float64 `json:"max_density" toml:"max_density"`                   // m^-3
	CreationFactor      float64 `json:"creation_factor" toml:"creation_factor"`           // m^-3 dpa^-1
	AnnealingPrefactor  float64 `json:"annealing_prefactor" toml:"annealing_prefactor"`   // s^-1
	AnnealingEnergy     float64 `json:"annealing_energy" toml:"annealing_energy"`         // eV
}

// 本征陷阱：不随损伤产生，密度恒为 MaxDensity
func (s TrapSpecies) Intrinsic() bool {
	return s.CreationFactor == 0
}

// 工况点 (phi, T)
type OperatingPoint struct {
	DamageRate  DamageRate `json:"damage_rate"`
	Temperature float64    `json:"temperature"`
}

// 注入参数
type Implantation struct {
	Flux  float64 `json:"flux" toml:"flux"`   // m^-2 s^-1
	Range float64 `json:"range" toml:"range"` // m
	D0    float64 `json:"d0" toml:"d0"`       // m^2 s^-1
	ED    float64 `json:"ed" toml:"ed"`       // eV
}

// 滞留量计算结果，每次重新计算
type RetentionState struct {
	Total         float64   `json:"total"`
	Mobile        float64   `json:"mobile"`
	Trapped       float64   `json:"trapped"`
	Densities     []float64 `json:"densities"`
	FillingRatios []float64 `json:"filling_ratios"`
}

// 拟合参考数据，只读
type ReferenceDataset struct {
	Name string    `json:"name"`
	X    []float64 `json:"x"`
	Y    []float64 `json:"y"`
}

// 前后端通信消息结构
type Msg struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}
