package model

// 全局常量

const (
	// 满功率年，单位 s
	FPY = 3600 * 24 * 365.25

	// 钨原子密度，单位 m^-3
	TungstenDensity = 6.3e28
)

// 损伤速率，统一以 dpa/s 存储，其他单位只在构造和读取时换算
type DamageRate float64

func DPAPerSecond(x float64) DamageRate {
	return DamageRate(x)
}

func DPAPerFPY(x float64) DamageRate {
	return DamageRate(x / FPY)
}

func (d DamageRate) PerSecond() float64 {
	return float64(d)
}

func (d DamageRate) PerFPY() float64 {
	return float64(d) * FPY
}
